package model

import (
	"fmt"
	"strings"
)

// Role 用户角色（封闭枚举，仅在 Token 解码处解析一次）
type Role string

const (
	RoleCandidate Role = "candidate"
	RoleTrainer   Role = "trainer"
	RoleRecruiter Role = "recruiter"
	RoleAdmin     Role = "admin"
)

// roleAliases 历史角色别名
var roleAliases = map[string]Role{
	"agent": RoleRecruiter,
}

// ParseRole 将 Token 中的原始角色字符串解析为 Role
func ParseRole(raw string) (Role, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch r := Role(s); r {
	case RoleCandidate, RoleTrainer, RoleRecruiter, RoleAdmin:
		return r, nil
	}
	if r, ok := roleAliases[s]; ok {
		return r, nil
	}
	return "", fmt.Errorf("未知角色: %q", raw)
}

// Caller 当前请求的调用方身份（由认证中间件注入）
type Caller struct {
	UserID string
	Role   Role
}

// IsAdmin 是否管理员
func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }
