package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa/internal/model"
	"docqa/internal/transport/http/response"
)

type errorData struct {
	Field string `json:"field,omitempty"`
}

// writeError maps the model error taxonomy onto HTTP status and envelope
// code. data rides along for generation failures so callers still see the
// retrieved sources.
func writeError(c *gin.Context, err error, data interface{}, fallback string) {
	var cfgErr *model.ConfigError
	switch {
	case errors.As(err, &cfgErr):
		response.ErrorWithData(c, http.StatusBadRequest, response.CodeInvalidConfiguration, cfgErr.Error(), errorData{Field: cfgErr.Field})
	case errors.Is(err, model.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, model.ErrUnsupportedFormat):
		response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFormat, err.Error())
	case errors.Is(err, model.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, model.ErrIndexCorrupt):
		response.Error(c, http.StatusInternalServerError, response.CodeIndexCorrupt, err.Error())
	case errors.Is(err, model.ErrGenerationTimeout):
		response.ErrorWithData(c, http.StatusGatewayTimeout, response.CodeGenerationTimeout, "answer generation timed out", data)
	case errors.Is(err, model.ErrGenerationFailed):
		response.ErrorWithData(c, http.StatusBadGateway, response.CodeGenerationFailed, "answer generation failed", data)
	case errors.Is(err, model.ErrEmbeddingUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeEmbeddingUnavailable, "embedding service unavailable")
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}
