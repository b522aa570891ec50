// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// 口味偏好常量
// 用于 saltiness / sweetness / spiciness 三个偏好字段
const (
	PreferenceLow    = "low"    // 清淡
	PreferenceNormal = "normal" // 普通
	PreferenceHigh   = "high"   // 浓厚
)

// User 用户模型
// 对应数据库表 users
// 存储用户的基本信息、认证凭据和菜谱生成偏好
type User struct {
	// ID 用户唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// Username 用户名，用于登录，全局唯一
	Username string `gorm:"size:50;uniqueIndex;not null" json:"username"`

	// PasswordHash 密码的 bcrypt 哈希值
	// 永远不要存储明文密码！
	PasswordHash string `gorm:"size:255;not null" json:"-"`

	// Email 用户邮箱，可选
	Email *string `gorm:"size:100;uniqueIndex" json:"email,omitempty"`

	// Avatar 用户头像 URL，可选
	Avatar *string `gorm:"size:500" json:"avatar,omitempty"`

	// Status 账号状态
	// 1: 正常
	// 0: 禁用
	Status int8 `gorm:"default:1" json:"status"`

	// ==================== 菜谱生成偏好 ====================
	// 这些字段作为菜谱生成任务参数的默认值

	// ServingSize 用餐人数
	ServingSize int `gorm:"default:1" json:"serving_size"`

	// Saltiness 盐味偏好: low / normal / high
	Saltiness string `gorm:"size:10;default:normal" json:"saltiness"`

	// Sweetness 甜味偏好: low / normal / high
	Sweetness string `gorm:"size:10;default:normal" json:"sweetness"`

	// Spiciness 辣味偏好: low / normal / high
	Spiciness string `gorm:"size:10;default:normal" json:"spiciness"`

	// CookingTime 期望的调理时间，如 "30分以内"
	CookingTime *string `gorm:"size:50" json:"cooking_time,omitempty"`

	// DislikedIngredients 不喜欢的食材（逗号分隔）
	DislikedIngredients *string `gorm:"type:text" json:"disliked_ingredients,omitempty"`

	// LastLogin 最后登录时间
	LastLogin *time.Time `json:"last_login,omitempty"`

	// CreatedAt 创建时间，由 GORM 自动填充
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 更新时间，由 GORM 自动更新
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// UserRecipes 用户收藏/生成的菜谱关联（一对多关系）
	UserRecipes []UserRecipe `gorm:"foreignKey:UserID" json:"user_recipes,omitempty"`
}

// TableName 指定表名
func (User) TableName() string {
	return "users"
}
