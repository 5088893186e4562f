package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户模型
type User struct {
	ID uint `gorm:"primaryKey" json:"id"`

	UserName     string `gorm:"column:username;uniqueIndex;not null" json:"username"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	Nickname     string `json:"nickname"`
	Headline     string `json:"headline"` // 职业头衔，展示在资料卡
	AvatarURL    string `json:"avatar_url"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName 返回用于展示的名称，优先昵称
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.UserName
}
