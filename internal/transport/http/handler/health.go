package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docqa/internal/app"
)

// DependencyCheck probes one backing service. Optional dependencies that are
// disabled are simply not registered.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthInfo struct {
	App       string
	Env       string
	StartedAt time.Time
	Checks    []DependencyCheck
}

type HealthHandler struct {
	info       HealthInfo
	ragService *app.RAGService
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(info HealthInfo, ragService *app.RAGService) *HealthHandler {
	return &HealthHandler{info: info, ragService: ragService}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	allOK := true
	deps := make(gin.H, len(h.info.Checks))
	for _, dep := range h.info.Checks {
		status := dependencyStatus{OK: true}
		if err := dep.Check(ctx); err != nil {
			status = dependencyStatus{OK: false, Message: err.Error()}
			allOK = false
		}
		deps[dep.Name] = status
	}

	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}

	list := h.ragService.ListDocuments()
	cfg := h.ragService.Config()
	c.JSON(statusCode, gin.H{
		"app":        h.info.App,
		"env":        h.info.Env,
		"uptime_sec": int(time.Since(h.info.StartedAt).Seconds()),
		"index": gin.H{
			"documents":      list.TotalDocuments,
			"chunks":         list.TotalChunks,
			"model":          cfg.Model,
			"embeddingModel": cfg.EmbeddingModel,
			"configVersion":  cfg.Version,
		},
		"dependencies": deps,
	})
}
