package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"docqa/internal/app"
	"docqa/internal/transport/http/response"
)

type EventHandler struct {
	ragService *app.RAGService
}

func NewEventHandler(ragService *app.RAGService) *EventHandler {
	return &EventHandler{ragService: ragService}
}

func (h *EventHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := h.ragService.ListEvents(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err, nil, "list events failed")
		return
	}
	response.OK(c, gin.H{"events": events})
}
