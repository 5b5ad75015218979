package http

import (
	"github.com/gin-gonic/gin"

	appsvc "docqa/internal/app"
	"docqa/internal/bootstrap"
	"docqa/internal/transport/http/handler"
	"docqa/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)

	info := handler.HealthInfo{
		App:       app.Config.App.Name,
		Env:       app.Config.App.Env,
		StartedAt: app.StartedAt,
		Checks: []handler.DependencyCheck{
			{Name: app.Config.Storage.Driver, Check: app.RAG.Ping},
		},
	}
	if app.EmbeddingCache != nil {
		info.Checks = append(info.Checks, handler.DependencyCheck{Name: "redis", Check: app.EmbeddingCache.Ping})
	}
	if app.Ollama != nil {
		info.Checks = append(info.Checks, handler.DependencyCheck{Name: "ollama", Check: app.Ollama.Heartbeat})
	}
	if app.Publisher != nil {
		info.Checks = append(info.Checks, handler.DependencyCheck{Name: "rabbitmq", Check: app.Publisher.Ping})
	}

	return newRouter(app.RAG, info)
}

func newRouter(ragService *appsvc.RAGService, info handler.HealthInfo) *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestID(), gin.Logger(), gin.Recovery())
	router.MaxMultipartMemory = ragService.MaxUploadBytes() + 1<<20

	healthHandler := handler.NewHealthHandler(info, ragService)
	documentHandler := handler.NewDocumentHandler(ragService)
	chatHandler := handler.NewChatHandler(ragService)
	settingsHandler := handler.NewSettingsHandler(ragService)
	eventHandler := handler.NewEventHandler(ragService)

	router.GET("/health", healthHandler.Check)

	router.POST("/upload", documentHandler.Upload)
	router.GET("/documents", documentHandler.List)
	router.DELETE("/documents/:name", documentHandler.Delete)
	router.POST("/documents/reload", documentHandler.Reload)
	router.DELETE("/clear", documentHandler.Clear)

	router.POST("/chat", chatHandler.Chat)
	router.POST("/compare-models", chatHandler.Compare)
	router.POST("/suggested-questions", chatHandler.SuggestQuestions)

	router.GET("/config", settingsHandler.GetConfig)
	router.PUT("/settings", settingsHandler.Update)

	router.GET("/events", eventHandler.List)

	return router
}
