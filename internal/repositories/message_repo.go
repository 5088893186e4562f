package repositories

import (
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/ProNet/internal/models"
)

// MessageRepository 消息仓储
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息仓储实例
func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create 创建消息
func (r *MessageRepository) Create(tx *gorm.DB, message *models.Message) error {
	return tx.Create(message).Error
}

// GetByID 根据ID获取消息
func (r *MessageRepository) GetByID(id int64) (*models.Message, error) {
	var message models.Message
	if err := r.db.First(&message, id).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// ListGroupMessages 获取群组消息列表，按创建时间倒序
// after 非空时只返回 created_at > after 的消息（个人历史清除横线之后的部分）。
// 走 (group_id, created_at) 联合索引。
func (r *MessageRepository) ListGroupMessages(groupID uint, after *time.Time, limit, offset int) ([]models.Message, error) {
	query := r.db.Where("group_id = ?", groupID)
	if after != nil {
		query = query.Where("created_at > ?", *after)
	}

	var messages []models.Message
	err := query.
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Preload("Sender").
		Find(&messages).Error
	return messages, err
}

// HasMessageAfter 判断群组在 t 之后是否有任何消息（含系统消息）。
// 可见性计算的核心查询，每个隐藏会话每次列表各查一次，
// 依赖 (group_id, created_at) 索引保持 O(log n)。
func (r *MessageRepository) HasMessageAfter(groupID uint, t time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&models.Message{}).
		Where("group_id = ? AND created_at > ?", groupID, t).
		Limit(1).
		Count(&count).Error
	return count > 0, err
}

// MarkDeleted 标记删除消息并记录原因。行不物理删除，展示层根据原因屏蔽正文。
func (r *MessageRepository) MarkDeleted(id int64, reason string) error {
	return r.db.Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_deleted": true, "deleted_reason": reason}).Error
}
