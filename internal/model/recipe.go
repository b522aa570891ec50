// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// RecipeStatus 菜谱状态常量
const (
	RecipeStatusGenerated = 1 // 生成完成（初始状态）
	RecipeStatusEdited    = 2 // 用户编辑过
	RecipeStatusArchived  = 3 // 已归档
)

// Recipe 菜谱模型
// 对应数据库表 recipes
// 由后台生成任务从视频中提取，或用户手动创建
type Recipe struct {
	// ID 菜谱唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// Name 菜谱名称
	Name string `gorm:"size:255;not null" json:"name"`

	// URL 来源视频的 URL
	URL string `gorm:"size:1000" json:"url"`

	// StatusID 菜谱状态，见 RecipeStatus 常量
	StatusID int `gorm:"default:1;index" json:"status_id"`

	// ExternalServiceID 外部服务（如视频平台）上的标识，可选
	ExternalServiceID *string `gorm:"size:255" json:"external_service_id,omitempty"`

	// Keyword 生成任务提取的关键词（逗号分隔）
	Keyword string `gorm:"size:500" json:"keyword"`

	// Genre 菜系/类别，如 "和食"、"中華"
	Genre string `gorm:"size:100" json:"genre"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Ingredients 菜谱的材料列表（一对多关系）
	Ingredients []Ingredient `gorm:"foreignKey:RecipeID" json:"ingredients,omitempty"`

	// Steps 菜谱的调理步骤（一对多关系）
	Steps []RecipeStep `gorm:"foreignKey:RecipeID" json:"steps,omitempty"`
}

// TableName 指定表名
func (Recipe) TableName() string {
	return "recipes"
}

// Ingredient 材料模型
// 对应数据库表 ingredients
type Ingredient struct {
	// ID 材料唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// RecipeID 所属菜谱ID，外键关联 recipes.id
	RecipeID int64 `gorm:"index;not null" json:"recipe_id"`

	// Name 材料名，如 "豚ロース"
	Name string `gorm:"size:255;not null" json:"name"`

	// Amount 分量，如 "200g"、"大さじ2"
	Amount string `gorm:"size:100" json:"amount"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Ingredient) TableName() string {
	return "ingredients"
}

// RecipeStep 调理步骤模型
// 对应数据库表 recipe_steps
type RecipeStep struct {
	// ID 步骤唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// RecipeID 所属菜谱ID，外键关联 recipes.id
	RecipeID int64 `gorm:"index;not null" json:"recipe_id"`

	// StepNumber 步骤序号，从 1 开始
	StepNumber int `gorm:"not null" json:"step_number"`

	// Description 步骤说明
	Description string `gorm:"type:text;not null" json:"description"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (RecipeStep) TableName() string {
	return "recipe_steps"
}

// UserRecipe 用户与菜谱的关联模型
// 对应数据库表 user_recipes
// 记录菜谱归属和收藏状态
type UserRecipe struct {
	// ID 关联唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// UserID 用户ID，外键关联 users.id
	UserID int64 `gorm:"index;not null" json:"user_id"`

	// RecipeID 菜谱ID，外键关联 recipes.id
	RecipeID int64 `gorm:"index;not null" json:"recipe_id"`

	// IsFavorite 是否收藏
	IsFavorite bool `gorm:"default:false" json:"is_favorite"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Recipe 关联的菜谱（多对一关系）
	Recipe *Recipe `gorm:"foreignKey:RecipeID" json:"recipe,omitempty"`
}

// TableName 指定表名
func (UserRecipe) TableName() string {
	return "user_recipes"
}
