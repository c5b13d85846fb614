package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/graphrag-backend/internal/platform/apierr"
	"github.com/yungbote/graphrag-backend/internal/platform/logger"
	"github.com/yungbote/graphrag-backend/internal/services"
)

type ResetHandler struct {
	log   *logger.Logger
	reset services.ResetService
}

func NewResetHandler(log *logger.Logger, reset services.ResetService) *ResetHandler {
	return &ResetHandler{log: log.With("handler", "ResetHandler"), reset: reset}
}

type resetRequest struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
}

// Reset accepts user_id and tenant_id as query parameters, or as a JSON
// body when the query parameters are absent.
func (h *ResetHandler) Reset(c *gin.Context) {
	userID := c.Query("user_id")
	tenantID := c.Query("tenant_id")
	if userID == "" && tenantID == "" {
		var req resetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, h.log, apierr.New(http.StatusBadRequest, "invalid_body", fmt.Errorf("reset: bind: %w", err)))
			return
		}
		userID, tenantID = req.UserID, req.TenantID
	}
	userID, tenantID = identityDefaults(userID, tenantID)

	result, aerr := h.reset.Reset(c.Request.Context(), userID, tenantID)
	if aerr != nil {
		respondError(c, h.log, aerr)
		return
	}
	respondOK(c, result)
}
