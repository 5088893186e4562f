package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Gopher0727/ProNet/internal/models"
)

func makeGroup(adminID uint) *models.Group {
	return &models.Group{ID: 1, Name: "test", AdminID: adminID}
}

func member(userID uint, role string) *models.GroupMember {
	return &models.GroupMember{GroupID: 1, UserID: userID, Role: role}
}

func TestEffectiveRole(t *testing.T) {
	group := makeGroup(1)

	assert.Equal(t, models.RoleAdmin, EffectiveRole(group, member(1, models.RoleMember)))
	assert.Equal(t, models.RoleModerator, EffectiveRole(group, member(2, models.RoleModerator)))
	assert.Equal(t, models.RoleMember, EffectiveRole(group, member(3, models.RoleMember)))
	assert.Equal(t, "", EffectiveRole(group, nil))

	// 管理员的成员行即使被写成 moderator，有效角色仍是 admin
	assert.Equal(t, models.RoleAdmin, EffectiveRole(group, member(1, models.RoleModerator)))
}

func TestCanModerate(t *testing.T) {
	group := makeGroup(1)

	assert.True(t, CanModerate(group, member(1, models.RoleMember)))
	assert.True(t, CanModerate(group, member(2, models.RoleModerator)))
	assert.False(t, CanModerate(group, member(3, models.RoleMember)))
	assert.False(t, CanModerate(group, nil))
}

func TestCheckKick(t *testing.T) {
	group := makeGroup(1)
	admin := member(1, models.RoleMember)
	mod := member(2, models.RoleModerator)
	mod2 := member(3, models.RoleModerator)
	plain := member(4, models.RoleMember)

	t.Run("admin kicks anyone except self", func(t *testing.T) {
		assert.NoError(t, CheckKick(group, admin, mod))
		assert.NoError(t, CheckKick(group, admin, plain))
		// 管理员永远不可被移出，包括管理员自己
		err := CheckKick(group, admin, admin)
		assert.ErrorIs(t, err, ErrCannotKickAdmin)
		assert.True(t, IsInvalidState(err))
	})

	t.Run("moderator kicks plain members only", func(t *testing.T) {
		assert.NoError(t, CheckKick(group, mod, plain))

		err := CheckKick(group, mod, mod2)
		assert.ErrorIs(t, err, ErrModeratorOnPeer)
		assert.True(t, IsForbidden(err))

		err = CheckKick(group, mod, admin)
		assert.ErrorIs(t, err, ErrModeratorOnPeer)
		assert.True(t, IsForbidden(err))
	})

	t.Run("plain member kicks nobody", func(t *testing.T) {
		err := CheckKick(group, plain, mod)
		assert.ErrorIs(t, err, ErrNotModerator)
		assert.True(t, IsForbidden(err))

		assert.Error(t, CheckKick(group, plain, admin))
	})
}

func TestCheckPromote(t *testing.T) {
	group := makeGroup(1)
	admin := member(1, models.RoleMember)
	mod := member(2, models.RoleModerator)
	plain := member(3, models.RoleMember)

	assert.NoError(t, CheckPromote(group, admin, plain))

	// 只有管理员能晋升
	err := CheckPromote(group, mod, plain)
	assert.ErrorIs(t, err, ErrNotAdmin)
	assert.True(t, IsForbidden(err))

	// 目标已是版主
	err = CheckPromote(group, admin, mod)
	assert.ErrorIs(t, err, ErrAlreadyModerator)
	assert.True(t, IsInvalidState(err))

	// 管理员角色固定，不能被"晋升"
	err = CheckPromote(group, admin, admin)
	assert.ErrorIs(t, err, ErrAdminRoleFixed)
	assert.True(t, IsInvalidState(err))
}

func TestCheckDemote(t *testing.T) {
	group := makeGroup(1)
	admin := member(1, models.RoleMember)
	mod := member(2, models.RoleModerator)
	plain := member(3, models.RoleMember)

	assert.NoError(t, CheckDemote(group, admin, mod))

	err := CheckDemote(group, mod, plain)
	assert.ErrorIs(t, err, ErrNotAdmin)

	// 目标不是版主
	err = CheckDemote(group, admin, plain)
	assert.ErrorIs(t, err, ErrNotAModerator)
	assert.True(t, IsInvalidState(err))

	// 管理员不是版主，也不能被降级
	err = CheckDemote(group, admin, admin)
	assert.ErrorIs(t, err, ErrNotAModerator)
}

func TestCheckMessageDelete(t *testing.T) {
	group := makeGroup(1)
	admin := member(1, models.RoleMember)
	mod := member(2, models.RoleModerator)
	plain := member(4, models.RoleMember)

	textMsg := &models.Message{ID: 100, GroupID: 1, SenderID: 4, MsgType: models.MsgTypeText}
	sysMsg := &models.Message{ID: 101, GroupID: 1, SenderID: 0, MsgType: models.MsgTypeSystem}

	t.Run("author deletes own message", func(t *testing.T) {
		reason, err := CheckMessageDelete(group, plain, 4, textMsg)
		assert.NoError(t, err)
		assert.Equal(t, models.DeletedBySelf, reason)
	})

	t.Run("moderator and admin delete with moderation reason", func(t *testing.T) {
		reason, err := CheckMessageDelete(group, mod, 2, textMsg)
		assert.NoError(t, err)
		assert.Equal(t, models.DeletedByModerator, reason)

		reason, err = CheckMessageDelete(group, admin, 1, textMsg)
		assert.NoError(t, err)
		assert.Equal(t, models.DeletedByModerator, reason)
	})

	t.Run("plain member cannot delete others' messages", func(t *testing.T) {
		other := member(5, models.RoleMember)
		_, err := CheckMessageDelete(group, other, 5, textMsg)
		assert.ErrorIs(t, err, ErrDeleteNotAllowed)
		assert.True(t, IsForbidden(err))
	})

	t.Run("system messages only deletable by moderation", func(t *testing.T) {
		_, err := CheckMessageDelete(group, plain, 4, sysMsg)
		assert.ErrorIs(t, err, ErrDeleteNotAllowed)

		reason, err := CheckMessageDelete(group, mod, 2, sysMsg)
		assert.NoError(t, err)
		assert.Equal(t, models.DeletedByModerator, reason)
	})
}
