package apiserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codex-monitor/go-monitor/pkg/logger"
)

// 统一响应辅助 (DRY: 所有 handler 共用)。

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"code": code, "message": message}})
}

func serverError(c *gin.Context, err error) {
	logger.Error("internal error", logger.FieldError, err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": gin.H{"code": "internal_error", "message": "服务器内部错误"}})
}
