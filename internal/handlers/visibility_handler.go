package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ProNet/internal/services"
)

// VisibilityHandler 个人可见性处理器：隐藏/取消隐藏、历史清除、通知开关
type VisibilityHandler struct {
	visibilityService *services.VisibilityService
}

// NewVisibilityHandler 创建可见性处理器实例
func NewVisibilityHandler(visibilityService *services.VisibilityService) *VisibilityHandler {
	return &VisibilityHandler{
		visibilityService: visibilityService,
	}
}

// HideGroup 隐藏私聊会话
func (h *VisibilityHandler) HideGroup(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}

	if err := h.visibilityService.HideGroup(userID, groupID); err != nil {
		fail(c, "HideGroup", err)
		return
	}

	ok(c, nil)
}

// ShowGroup 取消隐藏
func (h *VisibilityHandler) ShowGroup(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}

	if err := h.visibilityService.ShowGroup(userID, groupID); err != nil {
		fail(c, "ShowGroup", err)
		return
	}

	ok(c, nil)
}

// DeleteHistory 清除个人读取历史
func (h *VisibilityHandler) DeleteHistory(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}

	if err := h.visibilityService.DeleteHistory(userID, groupID); err != nil {
		fail(c, "DeleteHistory", err)
		return
	}

	ok(c, nil)
}

// ToggleNotifications 开关本群通知
func (h *VisibilityHandler) ToggleNotifications(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}

	type toggleRequest struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}

	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("ToggleNotifications: JSON binding error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	if err := h.visibilityService.ToggleNotifications(userID, groupID, *req.Enabled); err != nil {
		fail(c, "ToggleNotifications", err)
		return
	}

	ok(c, nil)
}
