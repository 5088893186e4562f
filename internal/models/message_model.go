package models

import "time"

const (
	MsgTypeText   = "text"
	MsgTypeSystem = "system"

	// 删除消息时写入 DeletedReason，前端据此展示不同文案
	DeletedBySelf      = "message deleted"
	DeletedByModerator = "deleted by a moderator/administrator"
)

// Message 消息模型。ID 由 snowflake 生成。
// 系统消息 (MsgType == system) 由成员/角色变更自动生成，SenderID 为 0，
// 与普通消息一同按 created_at 排序，也参与隐藏会话的"重新浮现"判定。
// (group_id, created_at) 联合索引支撑可见性计算与历史过滤的范围查询。
type Message struct {
	ID            int64  `gorm:"primaryKey" json:"id"`
	GroupID       uint   `gorm:"not null;index:idx_group_created,priority:1" json:"group_id"`
	SenderID      uint   `gorm:"index" json:"sender_id"`
	Content       string `gorm:"not null" json:"content"`
	MsgType       string `gorm:"default:text" json:"msg_type"` // text, system
	IsDeleted     bool   `gorm:"not null;default:false" json:"is_deleted"`
	DeletedReason string `json:"deleted_reason,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_group_created,priority:2" json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

// IsSystem 是否为系统消息
func (m *Message) IsSystem() bool {
	return m.MsgType == MsgTypeSystem
}
