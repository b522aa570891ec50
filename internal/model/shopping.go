// Package model 定义了与数据库表对应的数据结构
package model

import (
	"time"
)

// ShoppingList 购物清单模型
// 对应数据库表 shopping_lists
// 通常由一个菜谱的材料生成，也可以手动创建
type ShoppingList struct {
	// ID 清单唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// UserID 所属用户ID，外键关联 users.id
	UserID int64 `gorm:"index;not null" json:"user_id"`

	// RecipeID 来源菜谱ID，可选
	RecipeID *int64 `gorm:"index" json:"recipe_id,omitempty"`

	// Name 清单名称
	Name string `gorm:"size:255;not null" json:"name"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Items 清单中的条目（一对多关系）
	Items []ShoppingItem `gorm:"foreignKey:ListID" json:"items,omitempty"`
}

// TableName 指定表名
func (ShoppingList) TableName() string {
	return "shopping_lists"
}

// ShoppingItem 购物条目模型
// 对应数据库表 shopping_items
type ShoppingItem struct {
	// ID 条目唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// ListID 所属清单ID，外键关联 shopping_lists.id
	ListID int64 `gorm:"index;not null" json:"list_id"`

	// Ingredient 材料名
	Ingredient string `gorm:"size:255;not null" json:"ingredient"`

	// Amount 数量，如 "200g"
	Amount string `gorm:"size:100" json:"amount"`

	// IsChecked 是否已购买
	IsChecked bool `gorm:"default:false" json:"is_checked"`

	// CreatedAt 创建时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (ShoppingItem) TableName() string {
	return "shopping_items"
}
