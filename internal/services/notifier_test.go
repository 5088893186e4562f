package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/ProNet/internal/models"
)

type roomChange struct {
	userID  uint
	groupID uint
}

type captureBroadcaster struct {
	groupEvents map[uint][]any
	userEvents  map[uint][]any
	joins       []roomChange
	leaves      []roomChange
}

func newCaptureBroadcaster() *captureBroadcaster {
	return &captureBroadcaster{
		groupEvents: make(map[uint][]any),
		userEvents:  make(map[uint][]any),
	}
}

func (b *captureBroadcaster) BroadcastToGroup(groupID uint, message any) {
	b.groupEvents[groupID] = append(b.groupEvents[groupID], message)
}

func (b *captureBroadcaster) BroadcastToUser(userID uint, message any) {
	b.userEvents[userID] = append(b.userEvents[userID], message)
}

func (b *captureBroadcaster) JoinGroup(userID, groupID uint) {
	b.joins = append(b.joins, roomChange{userID, groupID})
}

func (b *captureBroadcaster) LeaveGroup(userID, groupID uint) {
	b.leaves = append(b.leaves, roomChange{userID, groupID})
}

type panicBroadcaster struct{}

func (panicBroadcaster) BroadcastToGroup(uint, any) { panic("channel down") }
func (panicBroadcaster) BroadcastToUser(uint, any)  { panic("channel down") }
func (panicBroadcaster) JoinGroup(uint, uint)       { panic("channel down") }
func (panicBroadcaster) LeaveGroup(uint, uint)      { panic("channel down") }

func TestNotifierGroupEvent(t *testing.T) {
	b := newCaptureBroadcaster()
	n := NewNotifier(b)

	sysMsg := &models.Message{
		ID:        42,
		GroupID:   7,
		MsgType:   models.MsgTypeSystem,
		Content:   "alice joined the group",
		CreatedAt: time.Now(),
	}
	n.GroupEvent(EventMemberAdded, 7, 1, 2, sysMsg)

	require.Len(t, b.groupEvents[7], 1)
	evt, okType := b.groupEvents[7][0].(*GroupEvent)
	require.True(t, okType)

	assert.Equal(t, EventMemberAdded, evt.Type)
	assert.Equal(t, uint(7), evt.GroupID)
	assert.Equal(t, uint(1), evt.ActorID)
	assert.Equal(t, uint(2), evt.UserID)
	assert.NotEmpty(t, evt.ID)
	require.NotNil(t, evt.SystemMessage)
	assert.Equal(t, int64(42), evt.SystemMessage.ID)
	assert.Equal(t, "alice joined the group", evt.SystemMessage.Content)
}

func TestNotifierUserEvent(t *testing.T) {
	b := newCaptureBroadcaster()
	n := NewNotifier(b)

	n.UserEvent(EventMemberRemoved, 7, 1, 3, nil)

	require.Len(t, b.userEvents[3], 1)
	evt := b.userEvents[3][0].(*GroupEvent)
	assert.Equal(t, EventMemberRemoved, evt.Type)
	assert.Nil(t, evt.SystemMessage)
	assert.Empty(t, b.groupEvents)
}

// 普通消息带完整消息体直达群组通道，不走失效回查
func TestNotifierNewMessage(t *testing.T) {
	b := newCaptureBroadcaster()
	n := NewNotifier(b)

	dto := &MessageDTO{ID: 99, GroupID: 7, SenderID: 2, Content: "hi", MsgType: models.MsgTypeText}
	n.NewMessage(7, dto)

	require.Len(t, b.groupEvents[7], 1)
	got, okType := b.groupEvents[7][0].(*MessageDTO)
	require.True(t, okType)
	assert.Equal(t, int64(99), got.ID)
	assert.Equal(t, "hi", got.Content)
	assert.Empty(t, b.userEvents)
}

func TestNotifierRoomControl(t *testing.T) {
	b := newCaptureBroadcaster()
	n := NewNotifier(b)

	n.JoinGroup(2, 7)
	n.LeaveGroup(2, 7)

	require.Len(t, b.joins, 1)
	assert.Equal(t, roomChange{2, 7}, b.joins[0])
	require.Len(t, b.leaves, 1)
	assert.Equal(t, roomChange{2, 7}, b.leaves[0])
}

// 广播是尽力而为的副通道：通道故障不能冒泡给调用方
func TestNotifierSwallowsBroadcastFailure(t *testing.T) {
	n := NewNotifier(panicBroadcaster{})

	assert.NotPanics(t, func() {
		n.GroupEvent(EventGroupUpdated, 1, 1, 0, nil)
		n.UserEvent(EventGroupDeleted, 1, 1, 2, nil)
		n.NewMessage(1, &MessageDTO{})
		n.JoinGroup(2, 1)
		n.LeaveGroup(2, 1)
	})
}

func TestNotifierNilSafe(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() {
		n.GroupEvent(EventMemberAdded, 1, 1, 2, nil)
	})

	disabled := NewNotifier(nil)
	assert.NotPanics(t, func() {
		disabled.GroupEvent(EventMemberAdded, 1, 1, 2, nil)
	})
}
