// Package repository 提供数据访问层的实现
package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"bae-recipe-server/internal/model"
)

// RecipeRepository 菜谱数据访问层
// 负责菜谱、材料、步骤、用户菜谱关联的所有数据库操作
type RecipeRepository struct {
	db *gorm.DB
}

// NewRecipeRepository 创建 RecipeRepository 实例
func NewRecipeRepository(db *gorm.DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

// Create 创建新菜谱
func (r *RecipeRepository) Create(ctx context.Context, recipe *model.Recipe) error {
	return r.db.WithContext(ctx).Create(recipe).Error
}

// CreateIngredients 批量创建材料
func (r *RecipeRepository) CreateIngredients(ctx context.Context, ingredients []model.Ingredient) error {
	if len(ingredients) == 0 {
		return nil
	}
	// 分批插入，避免单次插入过多数据
	return r.db.WithContext(ctx).CreateInBatches(ingredients, 100).Error
}

// CreateSteps 批量创建调理步骤
func (r *RecipeRepository) CreateSteps(ctx context.Context, steps []model.RecipeStep) error {
	if len(steps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(steps, 100).Error
}

// CreateUserRecipe 创建用户与菜谱的关联
func (r *RecipeRepository) CreateUserRecipe(ctx context.Context, userRecipe *model.UserRecipe) error {
	return r.db.WithContext(ctx).Create(userRecipe).Error
}

// GetByID 根据 ID 获取菜谱（含材料和步骤）
// 未找到时返回 (nil, nil)
func (r *RecipeRepository) GetByID(ctx context.Context, id int64) (*model.Recipe, error) {
	var recipe model.Recipe
	err := r.db.WithContext(ctx).
		Preload("Ingredients").
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		}).
		First(&recipe, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &recipe, nil
}

// GetUserRecipe 获取用户与菜谱的关联
// 用于验证菜谱所有权，未找到时返回 (nil, nil)
func (r *RecipeRepository) GetUserRecipe(ctx context.Context, userID, recipeID int64) (*model.UserRecipe, error) {
	var userRecipe model.UserRecipe
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		First(&userRecipe).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &userRecipe, nil
}

// ListByUserWithPagination 分页获取用户的菜谱
// 参数:
//   - page: 页码，从 1 开始
//   - pageSize: 每页数量
//   - favoriteOnly: 仅返回收藏的菜谱
//
// 返回:
//   - []model.UserRecipe: 关联列表（预加载菜谱），按创建时间倒序
//   - int64: 总数量
func (r *RecipeRepository) ListByUserWithPagination(ctx context.Context, userID int64, page, pageSize int, favoriteOnly bool) ([]model.UserRecipe, int64, error) {
	var userRecipes []model.UserRecipe
	var total int64

	query := r.db.WithContext(ctx).Model(&model.UserRecipe{}).Where("user_id = ?", userID)
	if favoriteOnly {
		query = query.Where("is_favorite = ?", true)
	}

	// 获取总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	offset := (page - 1) * pageSize
	err := query.
		Preload("Recipe").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&userRecipes).Error

	return userRecipes, total, err
}

// SetFavorite 设置收藏状态
func (r *RecipeRepository) SetFavorite(ctx context.Context, userID, recipeID int64, favorite bool) error {
	return r.db.WithContext(ctx).
		Model(&model.UserRecipe{}).
		Where("user_id = ? AND recipe_id = ?", userID, recipeID).
		Update("is_favorite", favorite).Error
}

// Delete 删除菜谱及其材料和步骤
func (r *RecipeRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("recipe_id = ?", id).Delete(&model.Ingredient{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&model.RecipeStep{}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&model.UserRecipe{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Recipe{}, id).Error
	})
}
