package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa/internal/app"
	"docqa/internal/model"
	"docqa/internal/settings"
	"docqa/internal/transport/http/response"
)

type SettingsHandler struct {
	ragService *app.RAGService
}

type configView struct {
	model.RuntimeConfig
	SettingsApplyTo string `json:"settingsApplyTo"`
}

func NewSettingsHandler(ragService *app.RAGService) *SettingsHandler {
	return &SettingsHandler{ragService: ragService}
}

func (h *SettingsHandler) GetConfig(c *gin.Context) {
	response.OK(c, configView{RuntimeConfig: h.ragService.Config(), SettingsApplyTo: settings.ApplyTo})
}

// Update applies a partial RuntimeConfig. Unknown fields are rejected so a
// misspelled setting never silently succeeds.
func (h *SettingsHandler) Update(c *gin.Context) {
	var patch model.RuntimeConfigPatch
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid settings payload: "+err.Error())
		return
	}

	cfg, err := h.ragService.UpdateSettings(patch)
	if err != nil {
		writeError(c, err, nil, "update settings failed")
		return
	}
	response.OK(c, configView{RuntimeConfig: cfg, SettingsApplyTo: settings.ApplyTo})
}
