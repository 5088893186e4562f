package models

import "time"

// 成员角色。管理员不写入 Role 字段，由 Group.AdminID 推导，
// 避免同一事实存两份后失去同步。
const (
	RoleMember    = "member"
	RoleModerator = "moderator"
	// RoleAdmin 仅作为派生角色标签出现在响应里，不写入 Role 字段
	RoleAdmin = "admin"
)

// GroupMember 群组成员模型，联合主键 (group_id, user_id)。
// 同一行同时承载该成员的个人覆盖状态（隐藏、历史清除、通知开关）：
// 移除成员即删除此行，所有个人覆盖随之清空。
//
// Hidden/HiddenAt/HistoryClearedAt 仅对私聊会话有意义：
//   - HiddenAt 在每次隐藏时覆盖为当前时间；取消隐藏不清除（过期时间戳无害）。
//   - 可见性本身不落库，读取时由 HiddenAt 与消息时间戳推导。
type GroupMember struct {
	GroupID uint   `gorm:"primaryKey" json:"group_id"`
	UserID  uint   `gorm:"primaryKey" json:"user_id"`
	Role    string `gorm:"not null;default:member" json:"role"` // member, moderator

	Hidden           bool       `gorm:"not null;default:false" json:"hidden"`
	HiddenAt         *time.Time `json:"hidden_at,omitempty"`
	HistoryClearedAt *time.Time `json:"history_cleared_at,omitempty"`
	NotifyEnabled    bool       `gorm:"not null;default:true" json:"notify_enabled"`

	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`

	Group *Group `gorm:"foreignKey:GroupID" json:"-"`
	User  *User  `gorm:"foreignKey:UserID" json:"-"`
}

func (GroupMember) TableName() string {
	return "group_members"
}
