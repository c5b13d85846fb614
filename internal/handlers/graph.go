package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/graphrag-backend/internal/platform/logger"
	"github.com/yungbote/graphrag-backend/internal/services"
)

type GraphHandler struct {
	log         *logger.Logger
	exploration services.ExplorationService
}

func NewGraphHandler(log *logger.Logger, exploration services.ExplorationService) *GraphHandler {
	return &GraphHandler{log: log.With("handler", "GraphHandler"), exploration: exploration}
}

// Visualization renders the tenant's subgraph as nodes and links.
func (h *GraphHandler) Visualization(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	graph, aerr := h.exploration.Visualization(c.Request.Context(), c.Query("tenant_id"), limit)
	if aerr != nil {
		respondError(c, h.log, aerr)
		return
	}
	respondOK(c, graph)
}

// Nodes reports per-label node counts for the tenant.
func (h *GraphHandler) Nodes(c *gin.Context) {
	counts, aerr := h.exploration.NodeCounts(c.Request.Context(), c.Query("tenant_id"))
	if aerr != nil {
		respondError(c, h.log, aerr)
		return
	}
	respondOK(c, gin.H{"nodes": counts})
}

// VectorChunks shows the raw retrieval for a query without answering it.
func (h *GraphHandler) VectorChunks(c *gin.Context) {
	topK, _ := strconv.Atoi(c.Query("top_k"))

	previews, aerr := h.exploration.VectorChunks(c.Request.Context(), c.Query("tenant_id"), c.Query("query"), topK)
	if aerr != nil {
		respondError(c, h.log, aerr)
		return
	}
	respondOK(c, gin.H{"chunks": previews})
}
