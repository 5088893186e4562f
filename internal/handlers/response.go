package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ProNet/internal/services"
)

// ok 统一成功响应
func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "success",
		"data":    data,
	})
}

// fail 按错误分类映射 HTTP 状态码：
// NotFound→404、Forbidden→403、InvalidState→409、Validation→400，其余 500。
func fail(c *gin.Context, op string, err error) {
	log.Printf("%s: service error: %v", op, err)

	status := http.StatusInternalServerError
	switch {
	case services.IsNotFound(err):
		status = http.StatusNotFound
	case services.IsForbidden(err):
		status = http.StatusForbidden
	case services.IsInvalidState(err):
		status = http.StatusConflict
	case services.IsValidation(err):
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}

// currentUser 从认证中间件写入的上下文取当前用户ID
func currentUser(c *gin.Context) (uint, bool) {
	userID, exists := c.Get("userID")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "unauthorized",
		})
		return 0, false
	}
	return userID.(uint), true
}
