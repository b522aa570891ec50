// Package service 提供业务逻辑层的实现
package service

import (
	"context"
	"errors"

	"bae-recipe-server/internal/model"
	"bae-recipe-server/internal/repository"
)

// 菜谱服务相关错误
var (
	ErrRecipeNotFound  = errors.New("菜谱不存在")
	ErrRecipeForbidden = errors.New("无权操作该菜谱")
)

// RecipeService 菜谱服务
// 处理菜谱的查询、收藏、删除，以及生成任务完成后的落库
type RecipeService struct {
	recipeRepo *repository.RecipeRepository
}

// NewRecipeService 创建 RecipeService 实例
func NewRecipeService(recipeRepo *repository.RecipeRepository) *RecipeService {
	return &RecipeService{recipeRepo: recipeRepo}
}

// GeneratedIngredient 生成结果中的材料
type GeneratedIngredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// GeneratedRecipe 生成任务完成后 Worker 上报的菜谱内容
type GeneratedRecipe struct {
	Name        string                `json:"name"`
	URL         string                `json:"url"`
	Keyword     string                `json:"keyword"`
	Genre       string                `json:"genre"`
	Ingredients []GeneratedIngredient `json:"ingredients"`
	Steps       []string              `json:"steps"`
}

// CreateFromGeneration 持久化一份生成完成的菜谱
// 先写菜谱主体，再批量写材料和步骤，最后建立用户关联
// userID 为 0 时只落菜谱，不建立关联
func (s *RecipeService) CreateFromGeneration(ctx context.Context, userID int64, generated *GeneratedRecipe) (*model.Recipe, error) {
	recipe := &model.Recipe{
		Name:     generated.Name,
		URL:      generated.URL,
		StatusID: model.RecipeStatusGenerated,
		Keyword:  generated.Keyword,
		Genre:    generated.Genre,
	}
	if err := s.recipeRepo.Create(ctx, recipe); err != nil {
		return nil, err
	}

	if len(generated.Ingredients) > 0 {
		ingredients := make([]model.Ingredient, 0, len(generated.Ingredients))
		for _, ing := range generated.Ingredients {
			ingredients = append(ingredients, model.Ingredient{
				RecipeID: recipe.ID,
				Name:     ing.Name,
				Amount:   ing.Amount,
			})
		}
		if err := s.recipeRepo.CreateIngredients(ctx, ingredients); err != nil {
			return nil, err
		}
		recipe.Ingredients = ingredients
	}

	if len(generated.Steps) > 0 {
		steps := make([]model.RecipeStep, 0, len(generated.Steps))
		for i, desc := range generated.Steps {
			steps = append(steps, model.RecipeStep{
				RecipeID:    recipe.ID,
				StepNumber:  i + 1,
				Description: desc,
			})
		}
		if err := s.recipeRepo.CreateSteps(ctx, steps); err != nil {
			return nil, err
		}
		recipe.Steps = steps
	}

	if userID > 0 {
		userRecipe := &model.UserRecipe{
			UserID:   userID,
			RecipeID: recipe.ID,
		}
		if err := s.recipeRepo.CreateUserRecipe(ctx, userRecipe); err != nil {
			return nil, err
		}
	}

	return recipe, nil
}

// GetRecipe 获取菜谱详情
// 校验菜谱归属于当前用户
func (s *RecipeService) GetRecipe(ctx context.Context, userID, recipeID int64) (*model.Recipe, error) {
	if err := s.checkOwnership(ctx, userID, recipeID); err != nil {
		return nil, err
	}

	recipe, err := s.recipeRepo.GetByID(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if recipe == nil {
		return nil, ErrRecipeNotFound
	}
	return recipe, nil
}

// RecipeListResult 菜谱列表查询结果
type RecipeListResult struct {
	Recipes  []model.UserRecipe `json:"recipes"`
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// ListRecipes 分页获取用户的菜谱
func (s *RecipeService) ListRecipes(ctx context.Context, userID int64, page, pageSize int, favoriteOnly bool) (*RecipeListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	userRecipes, total, err := s.recipeRepo.ListByUserWithPagination(ctx, userID, page, pageSize, favoriteOnly)
	if err != nil {
		return nil, err
	}

	return &RecipeListResult{
		Recipes:  userRecipes,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// SetFavorite 设置菜谱收藏状态
func (s *RecipeService) SetFavorite(ctx context.Context, userID, recipeID int64, favorite bool) error {
	if err := s.checkOwnership(ctx, userID, recipeID); err != nil {
		return err
	}
	return s.recipeRepo.SetFavorite(ctx, userID, recipeID, favorite)
}

// DeleteRecipe 删除菜谱及其材料和步骤
func (s *RecipeService) DeleteRecipe(ctx context.Context, userID, recipeID int64) error {
	if err := s.checkOwnership(ctx, userID, recipeID); err != nil {
		return err
	}
	return s.recipeRepo.Delete(ctx, recipeID)
}

// checkOwnership 校验菜谱归属
func (s *RecipeService) checkOwnership(ctx context.Context, userID, recipeID int64) error {
	userRecipe, err := s.recipeRepo.GetUserRecipe(ctx, userID, recipeID)
	if err != nil {
		return err
	}
	if userRecipe == nil {
		return ErrRecipeNotFound
	}
	return nil
}
