package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ProNet/internal/services"
)

// MessageHandler 消息处理器
type MessageHandler struct {
	messageService *services.MessageService
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(messageService *services.MessageService) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
	}
}

// SendMessage 向群组发送消息（HTTP 同步路径，WS 路径走 Kafka）
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}

	var req services.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("SendMessage: JSON binding error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	msg, err := h.messageService.SendMessage(userID, groupID, &req)
	if err != nil {
		fail(c, "SendMessage", err)
		return
	}

	ok(c, msg)
}

// GetMessages 获取群组消息列表（按请求者的历史横线过滤）
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}

	limit := 50
	offset := 0
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	if o := c.Query("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	messages, err := h.messageService.GetMessages(userID, groupID, limit, offset)
	if err != nil {
		fail(c, "GetMessages", err)
		return
	}

	ok(c, gin.H{
		"messages": messages,
		"total":    len(messages),
	})
}

// DeleteMessage 删除消息（作者本人或版主/管理员）
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}

	messageID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid message id",
		})
		return
	}

	msg, err := h.messageService.DeleteMessage(userID, messageID)
	if err != nil {
		fail(c, "DeleteMessage", err)
		return
	}

	ok(c, msg)
}
