package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/graphrag-backend/internal/platform/apierr"
	"github.com/yungbote/graphrag-backend/internal/platform/logger"
	"github.com/yungbote/graphrag-backend/internal/services"
)

type QueryHandler struct {
	log   *logger.Logger
	query services.QueryService
}

func NewQueryHandler(log *logger.Logger, query services.QueryService) *QueryHandler {
	return &QueryHandler{log: log.With("handler", "QueryHandler"), query: query}
}

type queryRequest struct {
	TenantID string `json:"tenant_id"`
	Query    string `json:"query"`
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

func (r queryRequest) question() string {
	if r.Query != "" {
		return r.Query
	}
	return r.Question
}

// Ask answers one question over both retrieval paths. The question is
// read from "query", with "question" kept as an accepted alias.
func (h *QueryHandler) Ask(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, h.log, apierr.New(http.StatusBadRequest, "invalid_body", fmt.Errorf("query: bind: %w", err)))
		return
	}

	result, aerr := h.query.Query(c.Request.Context(), req.TenantID, req.question(), req.TopK)
	if aerr != nil {
		respondError(c, h.log, aerr)
		return
	}
	respondOK(c, result)
}
