// Package service 提供业务逻辑层的实现
package service

import (
	"context"
	"errors"

	"bae-recipe-server/internal/model"
	"bae-recipe-server/internal/repository"
	"bae-recipe-server/pkg/util"
)

// 购物清单服务相关错误
var (
	ErrListNotFound = errors.New("购物清单不存在")
	ErrItemNotFound = errors.New("购物条目不存在")
)

// ShoppingService 购物清单服务
type ShoppingService struct {
	shoppingRepo *repository.ShoppingRepository
	recipeRepo   *repository.RecipeRepository
}

// NewShoppingService 创建 ShoppingService 实例
func NewShoppingService(
	shoppingRepo *repository.ShoppingRepository,
	recipeRepo *repository.RecipeRepository,
) *ShoppingService {
	return &ShoppingService{
		shoppingRepo: shoppingRepo,
		recipeRepo:   recipeRepo,
	}
}

// CreateListRequest 创建清单请求
type CreateListRequest struct {
	Name  string              `json:"name" binding:"required,max=255"`
	Items []CreateItemRequest `json:"items"`
}

// CreateItemRequest 创建条目请求
type CreateItemRequest struct {
	Ingredient string `json:"ingredient" binding:"required,max=255"`
	Amount     string `json:"amount"`
}

// UpdateItemRequest 更新条目请求
type UpdateItemRequest struct {
	Ingredient *string `json:"ingredient"`
	Amount     *string `json:"amount"`
	IsChecked  *bool   `json:"is_checked"`
}

// CreateList 手动创建购物清单
func (s *ShoppingService) CreateList(ctx context.Context, userID int64, req *CreateListRequest) (*model.ShoppingList, error) {
	list := &model.ShoppingList{
		UserID: userID,
		Name:   req.Name,
	}
	for _, item := range req.Items {
		list.Items = append(list.Items, model.ShoppingItem{
			Ingredient: item.Ingredient,
			Amount:     item.Amount,
		})
	}

	if err := s.shoppingRepo.CreateList(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateListFromRecipe 从菜谱的材料生成购物清单
func (s *ShoppingService) CreateListFromRecipe(ctx context.Context, userID, recipeID int64) (*model.ShoppingList, error) {
	userRecipe, err := s.recipeRepo.GetUserRecipe(ctx, userID, recipeID)
	if err != nil {
		return nil, err
	}
	if userRecipe == nil {
		return nil, ErrRecipeNotFound
	}

	recipe, err := s.recipeRepo.GetByID(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if recipe == nil {
		return nil, ErrRecipeNotFound
	}

	list := &model.ShoppingList{
		UserID:   userID,
		RecipeID: util.Int64Ptr(recipeID),
		Name:     recipe.Name,
	}
	for _, ing := range recipe.Ingredients {
		list.Items = append(list.Items, model.ShoppingItem{
			Ingredient: ing.Name,
			Amount:     ing.Amount,
		})
	}

	if err := s.shoppingRepo.CreateList(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetList 获取清单详情（含条目）
func (s *ShoppingService) GetList(ctx context.Context, userID, listID int64) (*model.ShoppingList, error) {
	list, err := s.shoppingRepo.GetListByID(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list == nil || list.UserID != userID {
		return nil, ErrListNotFound
	}
	return list, nil
}

// ListResult 清单列表查询结果
type ListResult struct {
	Lists    []model.ShoppingList `json:"lists"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// ListLists 分页获取用户的购物清单
func (s *ShoppingService) ListLists(ctx context.Context, userID int64, page, pageSize int, keyword string) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	lists, total, err := s.shoppingRepo.ListByUserWithPagination(ctx, userID, page, pageSize, keyword)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Lists:    lists,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// RenameList 重命名清单
func (s *ShoppingService) RenameList(ctx context.Context, userID, listID int64, name string) (*model.ShoppingList, error) {
	list, err := s.GetList(ctx, userID, listID)
	if err != nil {
		return nil, err
	}

	list.Name = name
	if err := s.shoppingRepo.UpdateList(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// DeleteList 删除清单及其所有条目
func (s *ShoppingService) DeleteList(ctx context.Context, userID, listID int64) error {
	if _, err := s.GetList(ctx, userID, listID); err != nil {
		return err
	}
	return s.shoppingRepo.DeleteList(ctx, listID)
}

// AddItem 向清单追加条目
func (s *ShoppingService) AddItem(ctx context.Context, userID, listID int64, req *CreateItemRequest) (*model.ShoppingItem, error) {
	if _, err := s.GetList(ctx, userID, listID); err != nil {
		return nil, err
	}

	item := &model.ShoppingItem{
		ListID:     listID,
		Ingredient: req.Ingredient,
		Amount:     req.Amount,
	}
	if err := s.shoppingRepo.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem 更新条目（名称、数量、勾选状态）
func (s *ShoppingService) UpdateItem(ctx context.Context, userID, itemID int64, req *UpdateItemRequest) (*model.ShoppingItem, error) {
	item, err := s.getOwnedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	if req.Ingredient != nil {
		item.Ingredient = *req.Ingredient
	}
	if req.Amount != nil {
		item.Amount = *req.Amount
	}
	if req.IsChecked != nil {
		item.IsChecked = *req.IsChecked
	}

	if err := s.shoppingRepo.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem 删除条目
func (s *ShoppingService) DeleteItem(ctx context.Context, userID, itemID int64) error {
	item, err := s.getOwnedItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	return s.shoppingRepo.DeleteItem(ctx, item.ID)
}

// getOwnedItem 获取条目并校验其所属清单归属于当前用户
func (s *ShoppingService) getOwnedItem(ctx context.Context, userID, itemID int64) (*model.ShoppingItem, error) {
	item, err := s.shoppingRepo.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrItemNotFound
	}

	list, err := s.shoppingRepo.GetListByID(ctx, item.ListID)
	if err != nil {
		return nil, err
	}
	if list == nil || list.UserID != userID {
		return nil, ErrItemNotFound
	}
	return item, nil
}
