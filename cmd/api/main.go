package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"driftchat/config"
	"driftchat/internal/handler"
	"driftchat/internal/middleware"
	"driftchat/internal/outbox"
	driftredis "driftchat/internal/redis"
	"driftchat/internal/repository"
	"driftchat/internal/services"
	"driftchat/internal/storage"
	"driftchat/internal/websocket"
	"driftchat/pkg/database"
	"driftchat/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Server.Environment)
	defer log.Sync()
	logger.SetGlobalLogger(log)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Errorf("open database: %v", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		log.Errorf("migrate: %v", err)
		os.Exit(1)
	}

	redisClient, err := driftredis.NewClient(cfg.Redis)
	if err != nil {
		log.Errorf("connect redis: %v", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories
	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	callRepo := repository.NewCallRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)

	// Live channel
	publisher := driftredis.NewPublisher(redisClient)
	subscriber := driftredis.NewSubscriber(redisClient)
	mirror := driftredis.NewMirrorStore(redisClient)
	notifications := driftredis.NewNotificationStore(redisClient)
	presence := driftredis.NewPresenceStore(redisClient, publisher, cfg.Presence.TTL)
	typing := driftredis.NewTypingStore(redisClient, publisher)
	callbox := driftredis.NewCallBoxStore(redisClient, publisher)

	// Outbox processor mirrors durable writes into the live channel.
	processor := outbox.NewProcessor(outboxRepo, publisher, mirror, notifications, msgRepo, log,
		cfg.Outbox.BatchSize, cfg.Outbox.Interval, cfg.Outbox.MaxRetries)
	outbox.NewRunner(processor).Start(ctx)

	// Presence reaper catches sessions that died without a goodbye.
	go func() {
		ticker := time.NewTicker(cfg.Presence.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := presence.ReapStale(ctx, cfg.Presence.TTL); err != nil {
					log.Warnf("presence reaper: %v", err)
				}
			}
		}
	}()

	// Services
	authService := services.NewAuthService(userRepo, cfg.Auth)
	userService := services.NewUserService(userRepo, presence)
	convService := services.NewConversationService(convRepo, userRepo, publisher, log)
	msgService := services.NewMessageService(msgRepo, convRepo)
	callService := services.NewCallService(callbox, callRepo, userRepo)
	presenceService := services.NewPresenceService(presence, typing)
	notifService := services.NewNotificationService(notifications)

	var uploadService *services.UploadService
	if s3Client, err := storage.NewClient(ctx, cfg.S3); err != nil {
		log.Warnf("s3 disabled: %v", err)
		uploadService = services.NewUploadService(nil)
	} else {
		uploadService = services.NewUploadService(s3Client)
	}

	// Websocket hub bridged to Redis pub/sub
	hub := websocket.NewHub()
	go hub.Run(ctx)
	bridge := websocket.NewRedisBridge(subscriber, hub)
	go func() {
		for ctx.Err() == nil {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				log.Warnf("redis bridge dropped: %v", err)
				time.Sleep(time.Second)
			}
		}
	}()
	authorizer := websocket.NewChannelAuthorizer(convRepo, callbox)
	wsHandler := websocket.NewHandler(authService, presenceService, authorizer, hub, log)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, presenceService)
	userHandler := handler.NewUserHandler(userService)
	convHandler := handler.NewConversationHandler(convService)
	msgHandler := handler.NewMessageHandler(msgService)
	callHandler := handler.NewCallHandler(callService)
	typingHandler := handler.NewTypingHandler(presenceService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	notifHandler := handler.NewNotificationHandler(notifService)

	if cfg.Server.Environment == logger.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(log))
	r.Use(middleware.ErrorHandler(log))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
			auth.POST("/verify-email", authHandler.VerifyEmail)
		}

		authed := api.Group("")
		authed.Use(middleware.AuthMiddleware(authService))
		{
			authed.POST("/auth/logout", authHandler.Logout)

			authed.GET("/users", userHandler.List)
			authed.GET("/users/me", userHandler.Me)

			authed.GET("/conversations", convHandler.List)
			authed.GET("/conversations/:id", convHandler.Get)
			authed.POST("/conversations/find-or-create", convHandler.OpenDirect)
			authed.POST("/conversations/create-group", convHandler.CreateGroup)
			authed.DELETE("/conversations/:id", convHandler.DeleteGroup)

			authed.GET("/messages/:id", msgHandler.List)
			authed.POST("/messages/send/:id", msgHandler.Send)
			authed.PATCH("/messages/:id/seen", msgHandler.MarkSeen)

			authed.POST("/calls/start", callHandler.Start)
			authed.POST("/calls/accept", callHandler.Accept)
			authed.POST("/calls/decline", callHandler.Decline)
			authed.POST("/calls/hangup", callHandler.Hangup)
			authed.POST("/callhistory/log", callHandler.Log)
			authed.GET("/callhistory", callHandler.History)

			authed.GET("/notifications", notifHandler.List)
			authed.PATCH("/notifications/:id/read", notifHandler.MarkRead)
			authed.DELETE("/notifications", notifHandler.Clear)

			authed.POST("/typing/start", typingHandler.Start)
			authed.POST("/typing/stop", typingHandler.Stop)

			authed.POST("/upload", uploadHandler.Presign)
		}

		api.GET("/ws", wsHandler.Connect)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		log.Infof("listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown: %v", err)
	}
}
