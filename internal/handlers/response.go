// Package handlers adapts the service layer to the HTTP surface. Each
// handler extracts identity and parameters, delegates, and maps the
// service's typed error onto a status and a stable error code.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/graphrag-backend/internal/platform/apierr"
	"github.com/yungbote/graphrag-backend/internal/platform/logger"
)

func respondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondError logs the underlying cause and returns the status, a
// stable error code and a readable message to the client. Internal
// detail stays in the logs.
func respondError(c *gin.Context, log *logger.Logger, aerr *apierr.Error) {
	status := aerr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	code := aerr.Code
	if code == "" {
		code = "internal_error"
	}

	log.Error("Request failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", status,
		"code", code,
		"error", aerr.Error(),
	)
	c.AbortWithStatusJSON(status, gin.H{
		"error":   code,
		"message": strings.ReplaceAll(code, "_", " "),
	})
}
