package services

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/Gopher0727/ProNet/internal/models"
	"github.com/Gopher0727/ProNet/internal/repositories"
	"github.com/Gopher0727/ProNet/utils/snowflake"
)

// 成员/角色事件类型，也是实时广播的事件名
const (
	EventMemberAdded      = "member_added"
	EventMemberRemoved    = "member_removed"
	EventMemberLeft       = "member_left"
	EventModeratorGranted = "moderator_granted"
	EventModeratorRevoked = "moderator_revoked"
	EventGroupUpdated     = "group_updated"
	EventGroupDeleted     = "group_deleted"
)

// SystemMessageEmitter 为每次成功的成员/角色变更合成一条系统消息，
// 写入普通消息流：按 created_at 自然排序进会话历史，
// 其时间戳同样算作"新活动"，会让隐藏的会话重新浮现。
type SystemMessageEmitter struct {
	userRepo    *repositories.UserRepository
	messageRepo *repositories.MessageRepository
	idGen       *snowflake.Generator
}

// NewSystemMessageEmitter 创建系统消息发射器
func NewSystemMessageEmitter(userRepo *repositories.UserRepository, messageRepo *repositories.MessageRepository, idGen *snowflake.Generator) *SystemMessageEmitter {
	return &SystemMessageEmitter{
		userRepo:    userRepo,
		messageRepo: messageRepo,
		idGen:       idGen,
	}
}

// SystemMessageText 生成事件的固定文案，主语为受影响的用户
func SystemMessageText(event, displayName string) string {
	switch event {
	case EventMemberAdded:
		return fmt.Sprintf("%s joined the group", displayName)
	case EventMemberRemoved:
		return fmt.Sprintf("%s was removed", displayName)
	case EventMemberLeft:
		return fmt.Sprintf("%s left the group", displayName)
	case EventModeratorGranted:
		return fmt.Sprintf("%s promoted to moderator", displayName)
	case EventModeratorRevoked:
		return fmt.Sprintf("%s is no longer a moderator", displayName)
	}
	return ""
}

// Emit 在当前事务内写入一条系统消息并返回。
// subjectID 是事件中受影响的用户（不是操作者）。
func (e *SystemMessageEmitter) Emit(tx *gorm.DB, groupID, subjectID uint, event string) (*models.Message, error) {
	name := e.resolveName(subjectID)

	id, err := e.idGen.NextID()
	if err != nil {
		return nil, fmt.Errorf("生成消息ID失败: %w", err)
	}

	msg := &models.Message{
		ID:      id,
		GroupID: groupID,
		// 系统消息无作者
		SenderID: 0,
		Content:  SystemMessageText(event, name),
		MsgType:  models.MsgTypeSystem,
	}
	if err := e.messageRepo.Create(tx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (e *SystemMessageEmitter) resolveName(userID uint) string {
	user, err := e.userRepo.GetByID(userID)
	if err != nil {
		// 展示层兜底，不因用户目录不可达阻断成员变更
		log.Printf("解析用户 %d 展示名失败: %v", userID, err)
		return fmt.Sprintf("user %d", userID)
	}
	return user.DisplayName()
}
