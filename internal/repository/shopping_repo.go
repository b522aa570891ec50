// Package repository 提供数据访问层的实现
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"bae-recipe-server/internal/model"
)

// ShoppingRepository 购物清单数据访问层
type ShoppingRepository struct {
	db *gorm.DB
}

// NewShoppingRepository 创建 ShoppingRepository 实例
func NewShoppingRepository(db *gorm.DB) *ShoppingRepository {
	return &ShoppingRepository{db: db}
}

// CreateList 创建购物清单（含条目）
func (r *ShoppingRepository) CreateList(ctx context.Context, list *model.ShoppingList) error {
	return r.db.WithContext(ctx).Create(list).Error
}

// GetListByID 根据 ID 获取清单（含条目）
// 未找到时返回 (nil, nil)
func (r *ShoppingRepository) GetListByID(ctx context.Context, id int64) (*model.ShoppingList, error) {
	var list model.ShoppingList
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&list, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &list, nil
}

// ListByUserWithPagination 分页获取用户的购物清单
func (r *ShoppingRepository) ListByUserWithPagination(ctx context.Context, userID int64, page, pageSize int, keyword string) ([]model.ShoppingList, int64, error) {
	var lists []model.ShoppingList
	var total int64

	query := r.db.WithContext(ctx).Model(&model.ShoppingList{}).Where("user_id = ?", userID)
	if keyword != "" {
		query = query.Where("name LIKE ?", "%"+keyword+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&lists).Error

	return lists, total, err
}

// UpdateList 更新清单信息
func (r *ShoppingRepository) UpdateList(ctx context.Context, list *model.ShoppingList) error {
	return r.db.WithContext(ctx).Save(list).Error
}

// DeleteList 删除清单及其所有条目
func (r *ShoppingRepository) DeleteList(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("list_id = ?", id).Delete(&model.ShoppingItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.ShoppingList{}, id).Error
	})
}

// CreateItem 添加清单条目
func (r *ShoppingRepository) CreateItem(ctx context.Context, item *model.ShoppingItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// GetItemByID 根据 ID 获取条目
// 未找到时返回 (nil, nil)
func (r *ShoppingRepository) GetItemByID(ctx context.Context, id int64) (*model.ShoppingItem, error) {
	var item model.ShoppingItem
	err := r.db.WithContext(ctx).First(&item, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// UpdateItem 更新条目
func (r *ShoppingRepository) UpdateItem(ctx context.Context, item *model.ShoppingItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

// DeleteItem 删除条目
func (r *ShoppingRepository) DeleteItem(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.ShoppingItem{}, id).Error
}
