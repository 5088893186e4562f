package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Gopher0727/ProNet/internal/models"
)

func memberRows(group *models.Group, roles map[uint]string) []models.GroupMember {
	rows := make([]models.GroupMember, 0, len(roles)+1)
	rows = append(rows, *member(group.AdminID, models.RoleMember))
	for id, role := range roles {
		if id == group.AdminID {
			continue
		}
		rows = append(rows, *member(id, role))
	}
	return rows
}

// 结构性不变式：管理员恒在成员集合里，版主集合是成员集合的子集。
// 角色从成员行推导，成员行删除即同时退出两个集合。
func TestGroupDTOStructuralInvariants(t *testing.T) {
	group := makeGroup(1)

	cases := []struct {
		name  string
		roles map[uint]string
	}{
		{"admin alone", nil},
		{"plain members", map[uint]string{2: models.RoleMember, 3: models.RoleMember}},
		{"with moderators", map[uint]string{2: models.RoleModerator, 3: models.RoleMember, 4: models.RoleModerator}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dto := toGroupDTO(group, memberRows(group, tc.roles), group.AdminID)

			assert.Contains(t, dto.MemberIDs, group.AdminID)
			for _, modID := range dto.ModeratorIDs {
				assert.Contains(t, dto.MemberIDs, modID)
				assert.NotEqual(t, group.AdminID, modID)
			}
			assert.Equal(t, len(dto.MemberIDs), dto.MemberCount)
			assert.Equal(t, models.RoleAdmin, dto.MyRole)
		})
	}
}

// 管理员的成员行被写成 moderator 也不会漏进版主集合
func TestGroupDTOAdminNeverInModeratorSet(t *testing.T) {
	group := makeGroup(1)
	rows := []models.GroupMember{
		*member(1, models.RoleModerator),
		*member(2, models.RoleModerator),
	}

	dto := toGroupDTO(group, rows, 2)

	assert.Equal(t, []uint{2}, dto.ModeratorIDs)
	assert.Equal(t, models.RoleModerator, dto.MyRole)
}

// 踢出/退群 = 删除成员行。版主被移除后同时离开成员集合与版主集合，
// 不需要先撤销角色；剩余状态依旧满足全部不变式。
func TestProperty_GroupDTOSurvivesMemberRemoval(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property test in short mode")
	}

	rapid.Check(t, func(rt *rapid.T) {
		adminID := uint(rapid.IntRange(1, 50).Draw(rt, "adminID"))
		group := makeGroup(adminID)

		roles := make(map[uint]string)
		n := rapid.IntRange(1, 20).Draw(rt, "memberCount")
		for i := 0; i < n; i++ {
			id := uint(rapid.IntRange(1, 100).Draw(rt, "memberID"))
			role := models.RoleMember
			if rapid.Bool().Draw(rt, "isModerator") {
				role = models.RoleModerator
			}
			roles[id] = role
		}
		rows := memberRows(group, roles)

		dto := toGroupDTO(group, rows, adminID)
		requireGroupInvariants(rt, dto, adminID)

		// 随机移除一个非管理员成员，模拟踢出或退群后的剩余状态
		removable := make([]uint, 0, len(rows))
		for _, row := range rows {
			if row.UserID != adminID {
				removable = append(removable, row.UserID)
			}
		}
		if len(removable) == 0 {
			return
		}
		removed := rapid.SampledFrom(removable).Draw(rt, "removed")

		remaining := make([]models.GroupMember, 0, len(rows))
		for _, row := range rows {
			if row.UserID != removed {
				remaining = append(remaining, row)
			}
		}
		after := toGroupDTO(group, remaining, adminID)

		requireGroupInvariants(rt, after, adminID)
		if contains(after.MemberIDs, removed) {
			rt.Fatalf("removed member %d still in member set", removed)
		}
		if contains(after.ModeratorIDs, removed) {
			rt.Fatalf("removed member %d still in moderator set", removed)
		}
	})
}

func requireGroupInvariants(t require.TestingT, dto *GroupDTO, adminID uint) {
	require.Contains(t, dto.MemberIDs, adminID)
	for _, modID := range dto.ModeratorIDs {
		require.Contains(t, dto.MemberIDs, modID)
		require.NotEqual(t, adminID, modID)
	}
	require.Equal(t, len(dto.MemberIDs), dto.MemberCount)
}

func contains(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
