package model

// User 用户表：对应 users
// 账号与凭证由外部身份服务管理，这里只保存业务所需的资料
type User struct {
	UserID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name   string `gorm:"type:varchar(100);not null"                     json:"name"`
	Email  string `gorm:"type:varchar(255);not null"                     json:"email"`
	Role   Role   `gorm:"type:varchar(20);not null"                      json:"role"`
	VersionedModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }
