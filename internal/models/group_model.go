package models

import (
	"time"

	"gorm.io/gorm"
)

// Group 会话聚合（群组或私聊）
// AdminID 在创建时确定且唯一，除删除群组外不可变更。
// IsPrivate 创建时固定：私聊会话才允许隐藏/清除历史等个人覆盖操作。
type Group struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	AvatarURL   string `json:"avatar_url"`
	AdminID     uint   `gorm:"not null;index" json:"admin_id"`
	IsPrivate   bool   `gorm:"not null;default:false" json:"is_private"`

	Admin    *User         `gorm:"foreignKey:AdminID" json:"-"`
	Members  []GroupMember `gorm:"foreignKey:GroupID" json:"-"`
	Messages []Message     `gorm:"foreignKey:GroupID" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Group) TableName() string {
	return "groups"
}
