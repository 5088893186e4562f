package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/ProNet/internal/models"
	"github.com/Gopher0727/ProNet/internal/repositories"
)

// VisibilityService 个人可见性服务
// 隐藏与历史清除是每用户的覆盖状态，只对私聊（IsPrivate）有意义，
// 互不影响、也不触碰共享历史。可见性本身从不落库，列表时现算。
type VisibilityService struct {
	groupRepo   *repositories.GroupRepository
	messageRepo *repositories.MessageRepository
}

// NewVisibilityService 创建可见性服务实例
func NewVisibilityService(groupRepo *repositories.GroupRepository, messageRepo *repositories.MessageRepository) *VisibilityService {
	return &VisibilityService{groupRepo: groupRepo, messageRepo: messageRepo}
}

// VisibleGroupDTO 列表项：群组状态 + 请求者的覆盖状态
type VisibleGroupDTO struct {
	GroupDTO
	Hidden           bool       `json:"hidden"`
	HiddenAt         *time.Time `json:"hidden_at,omitempty"`
	HistoryClearedAt *time.Time `json:"history_cleared_at,omitempty"`
}

// HideGroup 隐藏私聊会话
// 幂等：重复隐藏仍是隐藏，但 hidden_at 每次都推进到最新调用时刻，
// 重新浮现的判定基准随之后移。
func (s *VisibilityService) HideGroup(userID, groupID uint) error {
	return s.updateOverlay(userID, groupID, true, func(m *models.GroupMember) {
		now := time.Now()
		m.Hidden = true
		m.HiddenAt = &now
	})
}

// ShowGroup 取消隐藏
// 不清除 hidden_at：未隐藏时该时间戳是惰性的，留着无害。
func (s *VisibilityService) ShowGroup(userID, groupID uint) error {
	return s.updateOverlay(userID, groupID, true, func(m *models.GroupMember) {
		m.Hidden = false
	})
}

// DeleteHistory 清除个人读取历史
// 只立一条个人读取横线（history_cleared_at=now），共享消息记录原样不动，
// 其他成员的视图不受影响。
func (s *VisibilityService) DeleteHistory(userID, groupID uint) error {
	return s.updateOverlay(userID, groupID, true, func(m *models.GroupMember) {
		now := time.Now()
		m.HistoryClearedAt = &now
	})
}

// ToggleNotifications 开关本群的通知（任意群组都可用）
func (s *VisibilityService) ToggleNotifications(userID, groupID uint, enabled bool) error {
	return s.updateOverlay(userID, groupID, false, func(m *models.GroupMember) {
		m.NotifyEnabled = enabled
	})
}

// updateOverlay 在群组行锁内更新请求者自己的成员行。
// requirePrivate 时非私聊群组拒绝（InvalidState）。
// 非成员与读路径一致按"未找到"处理，不暴露群组存在性。
func (s *VisibilityService) updateOverlay(userID, groupID uint, requirePrivate bool, mutate func(*models.GroupMember)) error {
	err := s.groupRepo.WithGroupLock(groupID, func(tx *gorm.DB, group *models.Group) error {
		member, err := s.groupRepo.GetMember(tx, groupID, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrGroupNotFound
			}
			return err
		}
		if requirePrivate && !group.IsPrivate {
			return ErrNotPrivate
		}
		mutate(member)
		return s.groupRepo.SaveMember(tx, member)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrGroupNotFound
	}
	return err
}

// ListVisibleGroups 列出用户当前可见的群组
// 可见性判定（读取时现算）：
//   - 未隐藏：可见
//   - 已隐藏：当且仅当存在 created_at > hidden_at 的消息时重新浮现
//
// 系统消息同样算新活动，成员变更也会让隐藏的会话回来。
// 每个隐藏的私聊做一次存在性查询，底层依赖 (group_id, created_at) 索引。
func (s *VisibilityService) ListVisibleGroups(userID uint) ([]VisibleGroupDTO, error) {
	memberships, err := s.groupRepo.ListMemberships(userID)
	if err != nil {
		return nil, err
	}

	resp := make([]VisibleGroupDTO, 0, len(memberships))
	for i := range memberships {
		m := &memberships[i]
		vis, err := s.isVisible(m)
		if err != nil {
			return nil, err
		}
		if !vis {
			continue
		}

		members, err := s.groupRepo.ListMembers(s.groupRepo.DB(), m.GroupID)
		if err != nil {
			return nil, err
		}
		item := VisibleGroupDTO{
			GroupDTO:         *toGroupDTO(m.Group, members, userID),
			Hidden:           m.Hidden,
			HiddenAt:         m.HiddenAt,
			HistoryClearedAt: m.HistoryClearedAt,
		}
		resp = append(resp, item)
	}
	return resp, nil
}

func (s *VisibilityService) isVisible(m *models.GroupMember) (bool, error) {
	if !m.Hidden {
		return true, nil
	}
	if m.HiddenAt == nil {
		// 隐藏标记存在但无时间戳不应出现，按隐藏处理
		return false, nil
	}
	return s.messageRepo.HasMessageAfter(m.GroupID, *m.HiddenAt)
}
