package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/ProNet/internal/models"
	"github.com/Gopher0727/ProNet/internal/repositories"
	"github.com/Gopher0727/ProNet/utils/snowflake"
)

// MessageService 消息服务
// 写入走这里（HTTP 同步路径与 Kafka 消费路径共用），
// 读取按请求者的历史清除横线做个人过滤。
type MessageService struct {
	messageRepo *repositories.MessageRepository
	groupRepo   *repositories.GroupRepository
	userRepo    *repositories.UserRepository
	idGen       *snowflake.Generator
	notifier    *Notifier
}

// NewMessageService 创建消息服务实例
func NewMessageService(messageRepo *repositories.MessageRepository, groupRepo *repositories.GroupRepository, userRepo *repositories.UserRepository, idGen *snowflake.Generator, notifier *Notifier) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		groupRepo:   groupRepo,
		userRepo:    userRepo,
		idGen:       idGen,
		notifier:    notifier,
	}
}

// SendMessageRequest 发送消息请求
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
	NodeID  string `json:"node_id,omitempty"` // 经一致性哈希路由的接入节点，便于下游分桶
}

// MessageDTO 消息数据传输对象
// 已删除的消息只暴露删除原因，正文被屏蔽。
type MessageDTO struct {
	ID            int64     `json:"id"`
	GroupID       uint      `json:"group_id"`
	SenderID      uint      `json:"sender_id"`
	SenderName    string    `json:"sender_name,omitempty"`
	Content       string    `json:"content"`
	MsgType       string    `json:"msg_type"`
	IsDeleted     bool      `json:"is_deleted"`
	DeletedReason string    `json:"deleted_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toMessageDTO(m *models.Message, sender *models.User) MessageDTO {
	dto := MessageDTO{
		ID:        m.ID,
		GroupID:   m.GroupID,
		SenderID:  m.SenderID,
		MsgType:   m.MsgType,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if sender != nil {
		dto.SenderName = sender.DisplayName()
	}
	if m.IsDeleted {
		dto.IsDeleted = true
		dto.DeletedReason = m.DeletedReason
		dto.Content = ""
	}
	return dto
}

// SendMessage 发送普通消息
// 实现逻辑：校验成员资格，生成 snowflake ID，落库后向群组广播完整消息。
// 普通消息广播与失效事件不同，直接携带消息体（客户端无需回查）。
func (s *MessageService) SendMessage(userID, groupID uint, req *SendMessageRequest) (*MessageDTO, error) {
	isMember, err := s.groupRepo.IsMember(groupID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotMember
	}

	id, err := s.idGen.NextID()
	if err != nil {
		return nil, fmt.Errorf("生成消息ID失败: %w", err)
	}

	msg := &models.Message{
		ID:       id,
		GroupID:  groupID,
		SenderID: userID,
		Content:  req.Content,
		MsgType:  models.MsgTypeText,
	}
	if err := s.messageRepo.Create(s.groupRepo.DB(), msg); err != nil {
		return nil, err
	}

	sender, _ := s.userRepo.GetByID(userID)
	dto := toMessageDTO(msg, sender)

	// 三条写入路径（HTTP、Kafka 消费、WS 降级）共用这里的扇出
	s.notifier.NewMessage(groupID, &dto)
	return &dto, nil
}

// UserGroupIDs 获取用户所属的全部群组ID（WebSocket 订阅用，不过可见性过滤：
// 隐藏的会话也要收到新消息才能重新浮现）
func (s *MessageService) UserGroupIDs(userID uint) ([]uint, error) {
	memberships, err := s.groupRepo.ListMemberships(userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(memberships))
	for i := range memberships {
		ids = append(ids, memberships[i].GroupID)
	}
	return ids, nil
}

// GetMessages 获取群组消息列表
// 实现逻辑：校验成员资格；若该成员清除过历史，只返回横线之后的消息。
// 其他成员的视图与共享历史不受影响。
func (s *MessageService) GetMessages(userID, groupID uint, limit, offset int) ([]MessageDTO, error) {
	member, err := s.groupRepo.GetMember(s.groupRepo.DB(), groupID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 读路径上非成员不暴露群组存在性
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	msgs, err := s.messageRepo.ListGroupMessages(groupID, member.HistoryClearedAt, limit, offset)
	if err != nil {
		return nil, err
	}

	// 批量解析发送者展示名
	senderIDs := make([]uint, 0, len(msgs))
	for _, m := range msgs {
		if m.SenderID != 0 {
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	senders, err := s.userRepo.GetByIDs(senderIDs)
	if err != nil {
		return nil, err
	}

	resp := make([]MessageDTO, 0, len(msgs))
	for i := range msgs {
		resp = append(resp, toMessageDTO(&msgs[i], senders[msgs[i].SenderID]))
	}
	return resp, nil
}

// DeleteMessage 删除消息（作者本人或版主/管理员）
// 实现逻辑：授权经审核门面判定，自删与代删写入不同的删除原因，
// 前端据此展示 "message deleted" 或 "deleted by a moderator/administrator"。
func (s *MessageService) DeleteMessage(actorID uint, messageID int64) (*MessageDTO, error) {
	msg, err := s.messageRepo.GetByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	group, err := s.groupRepo.GetByID(msg.GroupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	actor, err := s.groupRepo.GetMember(s.groupRepo.DB(), msg.GroupID, actorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}

	reason, err := CheckMessageDelete(group, actor, actorID, msg)
	if err != nil {
		return nil, err
	}

	if err := s.messageRepo.MarkDeleted(messageID, reason); err != nil {
		return nil, err
	}
	msg.IsDeleted = true
	msg.DeletedReason = reason

	dto := toMessageDTO(msg, nil)

	// 尽力而为的失效广播
	s.notifier.GroupEvent("message_deleted", msg.GroupID, actorID, msg.SenderID, nil)

	return &dto, nil
}
