package services

import (
	"github.com/Gopher0727/ProNet/internal/models"
)

// 审核门面：所有写操作的授权谓词。
// 角色不单独落库，这里从 {AdminID, 成员行的 Role} 推导，
// 两份状态永远不会漂移。固定三级：admin > moderator > member，
// 且 moderator 对 admin 与同级 moderator 均无权操作。

// EffectiveRole 计算用户在群组中的有效角色。
// member 为该用户的成员行，可为 nil（表示非成员，返回空串）。
func EffectiveRole(group *models.Group, member *models.GroupMember) string {
	if member == nil {
		return ""
	}
	if member.UserID == group.AdminID {
		return models.RoleAdmin
	}
	if member.Role == models.RoleModerator {
		return models.RoleModerator
	}
	return models.RoleMember
}

// CanModerate 管理员或版主
// 覆盖：updateGroup、updateGroupPicture、addMember、removeMember 的非管理员分支，
// 以及删除他人消息。
func CanModerate(group *models.Group, member *models.GroupMember) bool {
	role := EffectiveRole(group, member)
	return role == models.RoleAdmin || role == models.RoleModerator
}

// CheckKick 校验踢人操作。返回 nil 表示允许。
// 矩阵：
//   - admin 可踢任何人，除了自己（管理员永远不可被移出，包括自己对自己）
//   - moderator 只能踢普通成员；对 admin 或同级 moderator 返回 Forbidden
//   - 普通成员无权踢人
func CheckKick(group *models.Group, actor, target *models.GroupMember) error {
	actorRole := EffectiveRole(group, actor)
	targetRole := EffectiveRole(group, target)

	switch actorRole {
	case models.RoleAdmin:
		if targetRole == models.RoleAdmin {
			// 管理员自己也不能把自己踢掉，只能删除群组
			return ErrCannotKickAdmin
		}
		return nil
	case models.RoleModerator:
		if targetRole == models.RoleAdmin || targetRole == models.RoleModerator {
			return ErrModeratorOnPeer
		}
		return nil
	default:
		return ErrNotModerator
	}
}

// CheckPromote 校验晋升操作（仅管理员；目标须为普通成员）
func CheckPromote(group *models.Group, actor, target *models.GroupMember) error {
	if EffectiveRole(group, actor) != models.RoleAdmin {
		return ErrNotAdmin
	}
	switch EffectiveRole(group, target) {
	case models.RoleAdmin:
		return ErrAdminRoleFixed
	case models.RoleModerator:
		return ErrAlreadyModerator
	}
	return nil
}

// CheckDemote 校验降级操作（仅管理员；目标须为现任版主）
func CheckDemote(group *models.Group, actor, target *models.GroupMember) error {
	if EffectiveRole(group, actor) != models.RoleAdmin {
		return ErrNotAdmin
	}
	if EffectiveRole(group, target) != models.RoleModerator {
		return ErrNotAModerator
	}
	return nil
}

// CheckMessageDelete 校验消息删除，返回写入 DeletedReason 的文案。
// 作者删自己的消息与版主删他人消息展示不同文案。
func CheckMessageDelete(group *models.Group, actor *models.GroupMember, actorID uint, msg *models.Message) (string, error) {
	if !msg.IsSystem() && msg.SenderID == actorID {
		return models.DeletedBySelf, nil
	}
	if CanModerate(group, actor) {
		return models.DeletedByModerator, nil
	}
	return "", ErrDeleteNotAllowed
}
