package repositories

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Gopher0727/ProNet/internal/models"
)

// GroupRepository 群组仓储
type GroupRepository struct {
	db *gorm.DB
}

// NewGroupRepository 创建群组仓储实例
func NewGroupRepository(db *gorm.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

// DB 返回底层连接，供 Service 层组装只读查询
func (r *GroupRepository) DB() *gorm.DB {
	return r.db
}

// Create 创建群组并写入初始成员
// 实现逻辑：开启事务，创建群组记录，插入管理员成员行与去重后的初始成员行。
// 管理员必须在 members 之中，这里通过同一事务保证该不变式成立。
func (r *GroupRepository) Create(group *models.Group, initialMemberIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}

		members := []models.GroupMember{
			{GroupID: group.ID, UserID: group.AdminID, Role: models.RoleMember, NotifyEnabled: true},
		}
		seen := map[uint]bool{group.AdminID: true}
		for _, id := range initialMemberIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			members = append(members, models.GroupMember{
				GroupID: group.ID, UserID: id, Role: models.RoleMember, NotifyEnabled: true,
			})
		}
		return tx.Create(&members).Error
	})
}

// GetByID 根据ID获取群组
func (r *GroupRepository) GetByID(id uint) (*models.Group, error) {
	var group models.Group
	if err := r.db.First(&group, id).Error; err != nil {
		return nil, err
	}
	return &group, nil
}

// WithGroupLock 在事务内对群组行加排他锁后执行 fn。
// 所有成员/角色/覆盖状态的写操作都必须经过这里：
// 并发的 promote 与 kick 会在行锁上串行化，read-modify-write 不会丢失更新。
func (r *GroupRepository) WithGroupLock(groupID uint, fn func(tx *gorm.DB, group *models.Group) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&group, groupID).Error; err != nil {
			return err
		}
		return fn(tx, &group)
	})
}

// Delete 删除群组（软删除，消息级联由外部清理任务负责）
func (r *GroupRepository) Delete(tx *gorm.DB, id uint) error {
	if err := tx.Where("group_id = ?", id).Delete(&models.GroupMember{}).Error; err != nil {
		return err
	}
	return tx.Delete(&models.Group{}, id).Error
}

// GetMember 获取成员行（在事务内使用 tx，否则传 r.db）
func (r *GroupRepository) GetMember(tx *gorm.DB, groupID, userID uint) (*models.GroupMember, error) {
	var member models.GroupMember
	if err := tx.Where("group_id = ? AND user_id = ?", groupID, userID).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}

// IsMember 检查用户是否是群组成员
func (r *GroupRepository) IsMember(groupID, userID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

// ListMembers 获取群组全部成员行
func (r *GroupRepository) ListMembers(tx *gorm.DB, groupID uint) ([]models.GroupMember, error) {
	var members []models.GroupMember
	err := tx.Where("group_id = ?", groupID).Order("joined_at asc").Find(&members).Error
	return members, err
}

// AddMember 插入成员行
func (r *GroupRepository) AddMember(tx *gorm.DB, member *models.GroupMember) error {
	return tx.Create(member).Error
}

// RemoveMember 删除成员行。该行同时承载个人覆盖状态（隐藏/历史清除/通知），
// 删除即完成清理，不会留下孤儿覆盖项。
func (r *GroupRepository) RemoveMember(tx *gorm.DB, groupID, userID uint) error {
	return tx.Where("group_id = ? AND user_id = ?", groupID, userID).Delete(&models.GroupMember{}).Error
}

// SaveMember 更新成员行（角色变更、覆盖状态 upsert）
func (r *GroupRepository) SaveMember(tx *gorm.DB, member *models.GroupMember) error {
	return tx.Model(&models.GroupMember{}).
		Where("group_id = ? AND user_id = ?", member.GroupID, member.UserID).
		Select("role", "hidden", "hidden_at", "history_cleared_at", "notify_enabled").
		Updates(member).Error
}

// Touch 更新群组的 updated_at 及给定字段
func (r *GroupRepository) Touch(tx *gorm.DB, group *models.Group) error {
	return tx.Save(group).Error
}

// ListMemberships 获取用户的全部成员关系（带群组预加载），供可见性计算遍历
func (r *GroupRepository) ListMemberships(userID uint) ([]models.GroupMember, error) {
	var memberships []models.GroupMember
	err := r.db.Where("user_id = ?", userID).
		Preload("Group").
		Find(&memberships).Error
	if err != nil {
		return nil, err
	}
	// 群组已被删除（软删除）时 Preload 得到零值，过滤掉
	out := memberships[:0]
	for _, m := range memberships {
		if m.Group != nil && m.Group.ID != 0 {
			out = append(out, m)
		}
	}
	return out, nil
}

// MemberIDs 获取群组全部成员的用户ID
func (r *GroupRepository) MemberIDs(groupID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.GroupMember{}).
		Where("group_id = ?", groupID).
		Pluck("user_id", &ids).Error
	return ids, err
}
