package services

import (
	"log"

	"github.com/google/uuid"

	"github.com/Gopher0727/ProNet/internal/models"
)

// Broadcaster 实时通道抽象（ws.Hub 实现）。
// Topic 分两类：群组广播与个人通道；JoinGroup/LeaveGroup 维护
// 在线用户的房间订阅，成员变更后无需重连即可生效。
type Broadcaster interface {
	BroadcastToGroup(groupID uint, message any)
	BroadcastToUser(userID uint, message any)
	JoinGroup(userID, groupID uint)
	LeaveGroup(userID, groupID uint)
}

// GroupEvent 实时失效信号。刻意保持"瘦"：
// 不携带群组快照，客户端收到后必须走常规读路径重新拉取权威状态，
// 避免并发写下出现两份真相。
type GroupEvent struct {
	ID            string      `json:"id"` // 事件去重用
	Type          string      `json:"type"`
	GroupID       uint        `json:"group_id"`
	ActorID       uint        `json:"actor_id"`
	UserID        uint        `json:"user_id,omitempty"` // 受影响的用户
	SystemMessage *MessageDTO `json:"system_message,omitempty"`
}

// Notifier 在写操作成功后做尽力而为的事件扇出。
// 广播失败只记日志，绝不让已提交的变更回滚或报错。
type Notifier struct {
	broadcaster Broadcaster
}

// NewNotifier 创建通知器，broadcaster 可为 nil（禁用实时推送）
func NewNotifier(broadcaster Broadcaster) *Notifier {
	return &Notifier{broadcaster: broadcaster}
}

// GroupEvent 向群组通道广播事件
func (n *Notifier) GroupEvent(event string, groupID, actorID, userID uint, sysMsg *models.Message) {
	if n == nil || n.broadcaster == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("广播群组事件失败（忽略）: %v", r)
		}
	}()

	n.broadcaster.BroadcastToGroup(groupID, n.buildEvent(event, groupID, actorID, userID, sysMsg))
}

// UserEvent 向受影响用户的个人通道广播事件（踢出、移出后的成员收不到群组广播）
func (n *Notifier) UserEvent(event string, groupID, actorID, userID uint, sysMsg *models.Message) {
	if n == nil || n.broadcaster == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("广播个人事件失败（忽略）: %v", r)
		}
	}()

	n.broadcaster.BroadcastToUser(userID, n.buildEvent(event, groupID, actorID, userID, sysMsg))
}

// NewMessage 向群组房间广播完整消息体。
// 与失效事件不同，普通消息直接携带正文，客户端无需回查；
// HTTP 同步路径、Kafka 消费路径与 WS 降级路径共用这一个出口。
func (n *Notifier) NewMessage(groupID uint, msg *MessageDTO) {
	if n == nil || n.broadcaster == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("广播新消息失败（忽略）: %v", r)
		}
	}()

	n.broadcaster.BroadcastToGroup(groupID, msg)
}

// JoinGroup 入群后把在线用户订阅进群组通道
func (n *Notifier) JoinGroup(userID, groupID uint) {
	if n == nil || n.broadcaster == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("更新房间订阅失败（忽略）: %v", r)
		}
	}()

	n.broadcaster.JoinGroup(userID, groupID)
}

// LeaveGroup 被移出或退群后取消群组通道订阅
func (n *Notifier) LeaveGroup(userID, groupID uint) {
	if n == nil || n.broadcaster == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("更新房间订阅失败（忽略）: %v", r)
		}
	}()

	n.broadcaster.LeaveGroup(userID, groupID)
}

func (n *Notifier) buildEvent(event string, groupID, actorID, userID uint, sysMsg *models.Message) *GroupEvent {
	evt := &GroupEvent{
		ID:      uuid.New().String(),
		Type:    event,
		GroupID: groupID,
		ActorID: actorID,
		UserID:  userID,
	}
	if sysMsg != nil {
		dto := toMessageDTO(sysMsg, nil)
		evt.SystemMessage = &dto
	}
	return evt
}
