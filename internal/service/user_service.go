// Package service 提供业务逻辑层的实现
package service

import (
	"context"

	"bae-recipe-server/internal/model"
	"bae-recipe-server/internal/repository"
	"bae-recipe-server/pkg/util"
)

// UserService 用户服务
// 处理用户资料和菜谱生成偏好
type UserService struct {
	userRepo *repository.UserRepository
}

// NewUserService 创建 UserService 实例
func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

// UpdateProfileRequest 更新资料请求
// 指针字段为 nil 表示不修改
type UpdateProfileRequest struct {
	Email               *string `json:"email"`
	Avatar              *string `json:"avatar"`
	ServingSize         *int    `json:"serving_size"`
	Saltiness           *string `json:"saltiness"`
	Sweetness           *string `json:"sweetness"`
	Spiciness           *string `json:"spiciness"`
	CookingTime         *string `json:"cooking_time"`
	DislikedIngredients *string `json:"disliked_ingredients"`
}

// ChangePasswordRequest 修改密码请求
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// GetProfile 获取用户资料
func (s *UserService) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile 更新用户资料和生成偏好
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req *UpdateProfileRequest) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if req.Email != nil {
		user.Email = req.Email
	}
	if req.Avatar != nil {
		user.Avatar = req.Avatar
	}
	if req.ServingSize != nil && *req.ServingSize > 0 {
		user.ServingSize = *req.ServingSize
	}
	if req.Saltiness != nil {
		user.Saltiness = *req.Saltiness
	}
	if req.Sweetness != nil {
		user.Sweetness = *req.Sweetness
	}
	if req.Spiciness != nil {
		user.Spiciness = *req.Spiciness
	}
	if req.CookingTime != nil {
		user.CookingTime = req.CookingTime
	}
	if req.DislikedIngredients != nil {
		user.DislikedIngredients = req.DislikedIngredients
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword 修改密码
func (s *UserService) ChangePassword(ctx context.Context, userID int64, req *ChangePasswordRequest) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	if !util.CheckPassword(req.OldPassword, user.PasswordHash) {
		return ErrPasswordWrong
	}

	newHash, err := util.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	return s.userRepo.UpdatePassword(ctx, userID, newHash)
}

// GenerationParams 根据用户偏好构造默认的生成参数
// WebSocket 连接没有携带 recipe_params 时使用
func (s *UserService) GenerationParams(user *model.User) map[string]interface{} {
	params := map[string]interface{}{
		"peopleCount": user.ServingSize,
		"saltiness":   user.Saltiness,
		"sweetness":   user.Sweetness,
		"spiciness":   user.Spiciness,
	}
	if user.CookingTime != nil {
		params["cookingTime"] = *user.CookingTime
	}
	if user.DislikedIngredients != nil {
		params["dislikedIngredients"] = *user.DislikedIngredients
	}
	return params
}
