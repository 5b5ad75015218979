package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa/internal/app"
	"docqa/internal/model"
	"docqa/internal/transport/http/response"
)

const defaultSuggestedQuestions = 5

type ChatHandler struct {
	ragService *app.RAGService
}

type ChatRequest struct {
	Question string       `json:"question" binding:"required"`
	TopK     *int         `json:"topK"`
	History  []model.Turn `json:"history" binding:"max=50"`
}

type CompareRequest struct {
	Question string   `json:"question" binding:"required"`
	TopK     *int     `json:"topK"`
	Models   []string `json:"models" binding:"max=5"`
}

type SuggestRequest struct {
	NumQuestions int `json:"numQuestions"`
}

func NewChatHandler(ragService *app.RAGService) *ChatHandler {
	return &ChatHandler{ragService: ragService}
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	topK, err := requestTopK(req.TopK)
	if err != nil {
		writeError(c, err, nil, "chat failed")
		return
	}

	result, err := h.ragService.Chat(c.Request.Context(), app.ChatInput{
		Question: req.Question,
		TopK:     topK,
		History:  req.History,
	})
	if err != nil {
		writeError(c, err, result, "chat failed")
		return
	}
	response.OK(c, result)
}

func (h *ChatHandler) Compare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	topK, err := requestTopK(req.TopK)
	if err != nil {
		writeError(c, err, nil, "compare models failed")
		return
	}

	cmp, err := h.ragService.CompareModels(c.Request.Context(), app.CompareInput{
		Question: req.Question,
		TopK:     topK,
		Models:   req.Models,
	})
	if err != nil {
		writeError(c, err, cmp, "compare models failed")
		return
	}
	response.OK(c, cmp)
}

func (h *ChatHandler) SuggestQuestions(c *gin.Context) {
	var req SuggestRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
			return
		}
	}
	// larger requests are clamped by the generator rather than rejected
	if req.NumQuestions < 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "numQuestions must not be negative")
		return
	}
	if req.NumQuestions == 0 {
		req.NumQuestions = defaultSuggestedQuestions
	}

	suggested, err := h.ragService.SuggestQuestions(c.Request.Context(), req.NumQuestions)
	if err != nil {
		writeError(c, err, nil, "suggest questions failed")
		return
	}
	response.OK(c, gin.H{"questions": suggested})
}

// requestTopK maps an absent topK to 0 (configured default) and rejects an
// explicit out-of-range value, zero included.
func requestTopK(topK *int) (int, error) {
	if topK == nil {
		return 0, nil
	}
	if err := model.ValidateTopK(*topK); err != nil {
		return 0, err
	}
	return *topK, nil
}
