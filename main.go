package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/cache"
	"chat-gateway/internal/chat"
	"chat-gateway/internal/config"
	"chat-gateway/internal/db"
	"chat-gateway/internal/handlers"
	"chat-gateway/internal/identity"
	"chat-gateway/internal/media"
	"chat-gateway/internal/middleware"
	"chat-gateway/internal/observability"
	"chat-gateway/internal/presence"
	"chat-gateway/internal/rabbitmq"
	"chat-gateway/internal/repositories"
	"chat-gateway/internal/telemetry"
	"chat-gateway/internal/ws"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, "chat-gateway", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	if shutdownTracing != nil {
		defer shutdownTracing(ctx)
	}

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pg.Close()

	mdb, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mdb.Client().Disconnect(ctx)

	if publisher, pubErr := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); pubErr != nil {
		log.Printf("amqp events disabled: %v", pubErr)
	} else {
		observability.SetPublisher(publisher)
		defer publisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit.chat", "chat-gateway", cfg.Environment)

	userRepo := repositories.NewUserRepo(pg)
	chatUserRepo := repositories.NewChatUserRepo(mdb)
	convRepo := repositories.NewConversationRepo(mdb)
	msgRepo := repositories.NewMessageRepo(mdb)

	var profileCache identity.ProfileCache
	if pc := cache.NewProfileCache(cfg.RedisAddr); pc != nil {
		profileCache = pc
	}
	bridge := identity.NewBridge(userRepo, chatUserRepo, profileCache)

	store := chat.NewStore(convRepo, msgRepo)
	storage := media.NewDiskStorage(cfg.UploadsDir)
	processor := media.NewProcessor(storage, cfg.AttachmentThreshold)
	tracker := presence.NewTracker()
	hub := ws.NewHub()

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	gateway := ws.NewGateway(hub, store, bridge, chatUserRepo, verifier, processor, tracker)
	chatHandler := handlers.NewChatHandler(store, bridge, processor, hub, audit)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chat-gateway"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.GET("/chats", authMiddleware, chatHandler.ListChats)
	router.POST("/chats", authMiddleware, chatHandler.StartChat)
	router.GET("/chats/:chat_id", authMiddleware, chatHandler.GetChat)
	router.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetChatMessages)
	router.POST("/chats/:chat_id/messages", authMiddleware, chatHandler.PostChatMessage)
	router.POST("/chats/:chat_id/upload", authMiddleware, chatHandler.UploadAttachment)
	router.PATCH("/chats/:chat_id/messages/:message_id", authMiddleware, chatHandler.EditMessage)
	router.DELETE("/chats/:chat_id/messages/:message_id", authMiddleware, chatHandler.DeleteMessageForAll)
	router.DELETE("/chats/:chat_id/messages/:message_id/me", authMiddleware, chatHandler.DeleteMessageForMe)
	router.DELETE("/chats/:chat_id/me", authMiddleware, chatHandler.DeleteChatForMe)

	router.GET("/ws", gateway.Handle)

	router.Static("/uploads", cfg.UploadsDir)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, tracker, cfg.Environment == "development")

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
