package main

import (
	"context"

	"atelier/internal/config"
	"atelier/internal/database"
	"atelier/internal/handler"
	"atelier/internal/middleware"
	"atelier/internal/notifier"
	"atelier/internal/repository"
	"atelier/internal/service"
	"atelier/internal/websocket"
	"atelier/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{Env: cfg.App.Env})

	db, err := database.NewConnection(cfg.DB.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	log.Info().Str("db", cfg.DB.Name).Msg("connected to PostgreSQL")

	// Live activity feed for superadmins
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Repository -> Service -> Handler
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	clientRepo := repository.NewClientRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	projectRepo := repository.NewProjectRepository(db)

	mailer := notifier.NewMailer(notifier.MailerConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	auditService := service.NewAuditService(auditRepo, wsHub, log)
	roleService := service.NewRoleService(roleRepo, catalogRepo, auditService, txManager, log)
	userService := service.NewUserService(userRepo, roleRepo, auditService, mailer, txManager, log)
	clientService := service.NewClientService(clientRepo, auditService, txManager, log)
	projectService := service.NewProjectService(projectRepo, clientRepo, auditService, txManager, log)

	ctx := context.Background()
	if err := roleService.SeedDefaults(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to seed catalog and superadmin role")
	}
	if err := userService.BootstrapSuperAdmin(ctx, cfg.Bootstrap.SuperAdminEmail); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap superadmin account")
	}

	middleware.InitPermissionMiddleware(db)

	roleHandler := handler.NewRoleHandler(roleService)
	userHandler := handler.NewUserHandler(userService)
	clientHandler := handler.NewClientHandler(clientService)
	auditHandler := handler.NewAuditHandler(auditService)
	projectHandler := handler.NewProjectHandler(projectService)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	api := router.Group("/api/v1")
	roleHandler.RegisterRoutes(api)
	userHandler.RegisterRoutes(api)
	clientHandler.RegisterRoutes(api)
	auditHandler.RegisterRoutes(api)
	projectHandler.RegisterRoutes(api)

	log.Info().Str("addr", cfg.HTTP.Addr()).Msg("starting HTTP server")
	if err := router.Run(cfg.HTTP.Addr()); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
