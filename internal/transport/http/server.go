package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"docwell/internal/ai"
	appsvc "docwell/internal/app"
	"docwell/internal/bootstrap"
	"docwell/internal/cache"
	"docwell/internal/index"
	"docwell/internal/platform/rabbitmq"
	"docwell/internal/repository"
	"docwell/internal/transport/http/handler"
	"docwell/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	llmClient := ai.NewOpenAICompatibleClient()
	embedder := ai.NewEmbeddingClient(llmClient, ai.EmbeddingConfig{
		BaseURL: app.Config.LLM.BaseURL,
		APIKey:  app.Config.LLM.APIKey,
		Model:   app.Config.LLM.EmbeddingModel,
	})
	generator := ai.NewGenerationClient(llmClient, ai.ChatConfig{
		BaseURL: app.Config.LLM.BaseURL,
		APIKey:  app.Config.LLM.APIKey,
		Model:   app.Config.LLM.Model,
	})

	idx := index.New(embedder)
	assistantService := appsvc.NewAssistantService(idx, generator, appsvc.RAGSettings{
		ChunkSize:       app.Config.RAG.ChunkSize,
		ChunkOverlap:    app.Config.RAG.ChunkOverlap,
		TopK:            app.Config.RAG.TopK,
		Threshold:       app.Config.RAG.Threshold,
		MaxContextChars: app.Config.RAG.MaxContextChars,
	})

	conversationRepo := repository.NewConversationRepository(app.MySQL)
	conversationPublisher := rabbitmq.NewConversationPublisher(app.MQConn, app.Config.RabbitMQ.ConversationPersistQueue)
	conversationCache := cache.NewConversationCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	conversationService := appsvc.NewConversationService(conversationRepo, conversationPublisher, conversationCache)

	documentHandler := handler.NewDocumentHandler(assistantService)
	askHandler := handler.NewAskHandler(assistantService, conversationService)
	conversationHandler := handler.NewConversationHandler(conversationService)
	healthHandler := handler.NewHealthHandler(app, assistantService)

	router.GET("/healthz", healthHandler.Check)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	v1.POST("/documents", documentHandler.Create)
	v1.POST("/documents/upload", documentHandler.Upload)
	v1.GET("/documents", documentHandler.List)
	v1.DELETE("/documents/:id", documentHandler.Delete)
	v1.POST("/ask", askHandler.Ask)
	v1.GET("/conversations", conversationHandler.List)

	return router
}
