package errors

import "errors"

// ── 错误分类 ──
// 业务错误通过 fmt.Errorf("%w: ...", ErrXxx) 包装分类，
// Handler 层先匹配具体错误，再按分类兜底映射 HTTP 状态码。

var (
	// ErrValidation 入参不合法（400）
	ErrValidation = errors.New("参数校验失败")
	// ErrAuthorization 角色不符或非资源所有者（403）
	ErrAuthorization = errors.New("无权限执行该操作")
	// ErrNotFound 资源不存在（404）
	ErrNotFound = errors.New("资源不存在")
	// ErrConflict 与现有数据冲突（409）
	ErrConflict = errors.New("数据冲突")
	// ErrState 当前状态不允许该流转（409）
	ErrState = errors.New("当前状态不允许该操作")
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")
