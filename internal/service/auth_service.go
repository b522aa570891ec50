// Package service 提供业务逻辑层的实现
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"bae-recipe-server/internal/cache"
	"bae-recipe-server/internal/model"
	"bae-recipe-server/internal/repository"
	"bae-recipe-server/pkg/jwt"
	"bae-recipe-server/pkg/util"
)

// 认证服务相关错误
var (
	ErrUserExists    = errors.New("用户名已存在")
	ErrUserNotFound  = errors.New("用户不存在")
	ErrPasswordWrong = errors.New("密码错误")
	ErrUserDisabled  = errors.New("账号已被禁用")
	ErrInvalidToken  = errors.New("token 无效或已过期")
)

// AuthService 认证服务
// 处理注册、登录、Token 刷新和登出
type AuthService struct {
	userRepo   *repository.UserRepository
	cache      *cache.RedisCache
	jwtService *jwt.JWTService
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	userRepo *repository.UserRepository,
	redisCache *cache.RedisCache,
	jwtService *jwt.JWTService,
) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		cache:      redisCache,
		jwtService: jwtService,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	Username string  `json:"username" binding:"required,min=3,max=50"`
	Password string  `json:"password" binding:"required,min=8"`
	Email    *string `json:"email"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse 认证成功的响应
type TokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"` // Access Token 有效期（秒）
	User         *model.User `json:"user"`
}

// Register 注册新用户
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*TokenResponse, error) {
	// 检查用户名是否已存在
	existing, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	// 哈希密码
	passwordHash, err := util.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     req.Username,
		PasswordHash: passwordHash,
		Email:        req.Email,
		Status:       1,
		ServingSize:  1,
		Saltiness:    model.PreferenceNormal,
		Sweetness:    model.PreferenceNormal,
		Spiciness:    model.PreferenceNormal,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	return s.issueTokens(user)
}

// Login 用户登录
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Status != 1 {
		return nil, ErrUserDisabled
	}

	if !util.CheckPassword(req.Password, user.PasswordHash) {
		return nil, ErrPasswordWrong
	}

	// 更新最后登录时间，失败不影响登录
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		log.Printf("Failed to update last login: %v", err)
	}

	return s.issueTokens(user)
}

// RefreshToken 使用 Refresh Token 换取新的 Token 对
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.Status != 1 {
		return nil, ErrUserDisabled
	}

	return s.issueTokens(user)
}

// Logout 登出
// 将当前 Token 加入黑名单直至其自然过期
func (s *AuthService) Logout(ctx context.Context, tokenHash string, expireAt time.Time) error {
	return s.cache.BlacklistToken(ctx, tokenHash, expireAt)
}

// issueTokens 为用户签发 Token 对
func (s *AuthService) issueTokens(user *model.User) (*TokenResponse, error) {
	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtService.GetAccessExpire().Seconds()),
		User:         user,
	}, nil
}
