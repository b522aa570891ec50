// Package main 是服务端的入口点
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"bae-recipe-server/internal/cache"
	"bae-recipe-server/internal/config"
	"bae-recipe-server/internal/handler"
	"bae-recipe-server/internal/middleware"
	"bae-recipe-server/internal/model"
	"bae-recipe-server/internal/queue"
	"bae-recipe-server/internal/repository"
	"bae-recipe-server/internal/service"
	"bae-recipe-server/internal/websocket"
	"bae-recipe-server/pkg/jwt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load("./configs")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}

	// 自动迁移数据库表
	if err := autoMigrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// 初始化 Redis
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		log.Fatalf("Failed to init redis: %v", err)
	}

	// 初始化 JWT 服务
	jwtService := jwt.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.AccessExpire,
		cfg.JWT.RefreshExpire,
	)

	// 初始化 Repository 层
	userRepo := repository.NewUserRepository(db)
	recipeRepo := repository.NewRecipeRepository(db)
	shoppingRepo := repository.NewShoppingRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// 初始化 Service 层
	authService := service.NewAuthService(userRepo, redisCache, jwtService)
	userService := service.NewUserService(userRepo)
	recipeService := service.NewRecipeService(recipeRepo)
	shoppingService := service.NewShoppingService(shoppingRepo, recipeRepo)
	sessionService := service.NewSessionService(sessionRepo, messageRepo)

	// 任务队列生产者复用 Redis 连接池
	producer := queue.NewProducer(redisCache.Client(), cfg.Queue.Name, cfg.Queue.TaskExpire)

	// 初始化 WebSocket 注册表和 Handler
	registry := websocket.NewRegistry()
	wsHandler := websocket.NewHandler(
		registry,
		sessionService,
		producer,
		recipeService,
		userService,
		redisCache,
		cfg.JWT.Secret,
	)

	// 初始化 Handler 层
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	recipeHandler := handler.NewRecipeHandler(recipeService)
	shoppingHandler := handler.NewShoppingHandler(shoppingService)
	sessionHandler := handler.NewSessionHandler(sessionService, producer, registry)

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建 Gin 引擎
	router := gin.New()

	// 全局中间件
	router.Use(middleware.RecoveryMiddleware()) // 恢复 panic
	router.Use(middleware.LoggerMiddleware())   // 请求日志
	router.Use(middleware.CORSMiddleware())     // CORS

	// 注册路由
	registerRoutes(router, jwtService, redisCache,
		authHandler, userHandler, recipeHandler, shoppingHandler, sessionHandler, wsHandler)

	// 创建 HTTP 服务器
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// 在 goroutine 中启动服务器
	go func() {
		log.Printf("Server starting on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	// 关闭 Redis 连接
	if err := redisCache.Close(); err != nil {
		log.Printf("Failed to close redis: %v", err)
	}

	log.Println("Server exited")
}

// initDatabase 初始化数据库连接
func initDatabase(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		cfg.MySQL.Username,
		cfg.MySQL.Password,
		cfg.MySQL.Host,
		cfg.MySQL.Port,
		cfg.MySQL.Database,
		cfg.MySQL.Charset,
	)

	// 配置 GORM logger
	gormLogger := logger.Default.LogMode(logger.Info)
	if cfg.Server.Mode == "release" {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MySQL.MaxLifetime) * time.Second)

	log.Println("Database connected successfully")
	return db, nil
}

// autoMigrate 自动迁移数据库表
func autoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(
		&model.User{},
		&model.Recipe{},
		&model.Ingredient{},
		&model.RecipeStep{},
		&model.UserRecipe{},
		&model.ShoppingList{},
		&model.ShoppingItem{},
		&model.Session{},
		&model.SessionMessage{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	log.Println("Database migrations completed")
	return nil
}

// registerRoutes 注册所有路由
func registerRoutes(
	router *gin.Engine,
	jwtService *jwt.JWTService,
	redisCache *cache.RedisCache,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	recipeHandler *handler.RecipeHandler,
	shoppingHandler *handler.ShoppingHandler,
	sessionHandler *handler.SessionHandler,
	wsHandler *websocket.Handler,
) {
	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 路由组
	v1 := router.Group("/api/v1")

	// 认证相关（无需登录）
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
	}

	// 登出需要有效 Token
	v1.POST("/auth/logout", middleware.AuthMiddleware(jwtService, redisCache), authHandler.Logout)

	// 用户相关（需要登录）
	users := v1.Group("/users")
	users.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		users.GET("/me", userHandler.GetProfile)
		users.PUT("/me", userHandler.UpdateProfile)
		users.PUT("/me/password", userHandler.ChangePassword)
	}

	// 菜谱相关（需要登录）
	recipes := v1.Group("/recipes")
	recipes.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		recipes.GET("", recipeHandler.List)
		recipes.GET("/:id", recipeHandler.Get)
		recipes.PUT("/:id/favorite", recipeHandler.SetFavorite)
		recipes.DELETE("/:id", recipeHandler.Delete)
		recipes.POST("/:id/shopping-list", shoppingHandler.CreateListFromRecipe)
	}

	// 购物清单相关（需要登录）
	lists := v1.Group("/shopping-lists")
	lists.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		lists.GET("", shoppingHandler.ListLists)
		lists.POST("", shoppingHandler.CreateList)
		lists.GET("/:id", shoppingHandler.GetList)
		lists.PUT("/:id", shoppingHandler.RenameList)
		lists.DELETE("/:id", shoppingHandler.DeleteList)
		lists.POST("/:id/items", shoppingHandler.AddItem)
	}

	items := v1.Group("/shopping-items")
	items.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		items.PUT("/:itemId", shoppingHandler.UpdateItem)
		items.DELETE("/:itemId", shoppingHandler.DeleteItem)
	}

	// 会话与任务相关（需要登录）
	sessions := v1.Group("/sessions")
	sessions.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		sessions.GET("/active", sessionHandler.GetActiveSession)
		sessions.GET("/history", sessionHandler.GetHistory)
		sessions.GET("/:sessionId", sessionHandler.GetSession)
		sessions.DELETE("/:sessionId", sessionHandler.DeleteSession)
	}

	tasks := v1.Group("/tasks")
	tasks.Use(middleware.AuthMiddleware(jwtService, redisCache))
	{
		tasks.GET("/:taskId", sessionHandler.GetTaskStatus)
		tasks.POST("/:taskId/cancel", sessionHandler.CancelTask)
	}

	// WebSocket 路由
	wsHandler.RegisterRoutes(router)
}
