package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Gopher0727/ProNet/internal/models"
)

func TestToMessageDTO(t *testing.T) {
	now := time.Now()
	sender := &models.User{ID: 2, UserName: "bob", Nickname: "Bobby"}

	t.Run("normal message carries content and sender name", func(t *testing.T) {
		msg := &models.Message{
			ID: 1, GroupID: 7, SenderID: 2,
			Content: "hello", MsgType: models.MsgTypeText, CreatedAt: now,
		}
		dto := toMessageDTO(msg, sender)

		assert.Equal(t, "hello", dto.Content)
		assert.Equal(t, "Bobby", dto.SenderName)
		assert.False(t, dto.IsDeleted)
		assert.Empty(t, dto.DeletedReason)
	})

	t.Run("deleted message masks content, keeps reason", func(t *testing.T) {
		msg := &models.Message{
			ID: 2, GroupID: 7, SenderID: 2,
			Content: "secret", MsgType: models.MsgTypeText, CreatedAt: now,
			IsDeleted: true, DeletedReason: models.DeletedByModerator,
		}
		dto := toMessageDTO(msg, sender)

		assert.True(t, dto.IsDeleted)
		assert.Empty(t, dto.Content)
		assert.Equal(t, models.DeletedByModerator, dto.DeletedReason)
	})

	t.Run("nil sender leaves name empty", func(t *testing.T) {
		msg := &models.Message{ID: 3, GroupID: 7, MsgType: models.MsgTypeSystem, Content: "alice joined the group"}
		dto := toMessageDTO(msg, nil)

		assert.Empty(t, dto.SenderName)
		assert.Equal(t, models.MsgTypeSystem, dto.MsgType)
	})
}
