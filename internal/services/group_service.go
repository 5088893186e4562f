package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Gopher0727/ProNet/internal/models"
	"github.com/Gopher0727/ProNet/internal/repositories"
)

// GroupService 群组服务
// 所有成员/角色写操作都在 WithGroupLock 的行锁事务里执行，
// 同一群组的并发变更串行化；系统消息在同一事务内写入，
// 事务提交后再做尽力而为的实时广播。
type GroupService struct {
	groupRepo *repositories.GroupRepository
	userRepo  *repositories.UserRepository
	emitter   *SystemMessageEmitter
	notifier  *Notifier
}

// NewGroupService 创建群组服务实例
func NewGroupService(groupRepo *repositories.GroupRepository, userRepo *repositories.UserRepository, emitter *SystemMessageEmitter, notifier *Notifier) *GroupService {
	return &GroupService{
		groupRepo: groupRepo,
		userRepo:  userRepo,
		emitter:   emitter,
		notifier:  notifier,
	}
}

// CreateGroupRequest 创建群组请求
type CreateGroupRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
	MemberIDs   []uint `json:"member_ids"`
}

// UpdateGroupRequest 更新群组请求
type UpdateGroupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// GroupDTO 群组数据传输对象
// 角色是推导出来的：AdminID 持有者即管理员，ModeratorIDs 来自成员行。
type GroupDTO struct {
	ID            uint      `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	AvatarURL     string    `json:"avatar_url"`
	IsPrivate     bool      `json:"is_private"`
	AdminID       uint      `json:"admin_id"`
	ModeratorIDs  []uint    `json:"moderator_ids"`
	MemberIDs     []uint    `json:"member_ids"`
	MemberCount   int       `json:"member_count"`
	MyRole        string    `json:"my_role,omitempty"`
	NotifyEnabled bool      `json:"notify_enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MemberDTO 成员数据传输对象
type MemberDTO struct {
	UserID   uint      `json:"user_id"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// MutationResult 成员/角色变更的响应：新群组状态 + 本次合成的系统消息
type MutationResult struct {
	Group         *GroupDTO   `json:"group"`
	SystemMessage *MessageDTO `json:"system_message,omitempty"`
}

func toGroupDTO(group *models.Group, members []models.GroupMember, requesterID uint) *GroupDTO {
	dto := &GroupDTO{
		ID:            group.ID,
		Name:          group.Name,
		Description:   group.Description,
		AvatarURL:     group.AvatarURL,
		IsPrivate:     group.IsPrivate,
		AdminID:       group.AdminID,
		ModeratorIDs:  []uint{},
		MemberIDs:     make([]uint, 0, len(members)),
		MemberCount:   len(members),
		NotifyEnabled: true,
		CreatedAt:     group.CreatedAt,
		UpdatedAt:     group.UpdatedAt,
	}
	for i := range members {
		m := &members[i]
		dto.MemberIDs = append(dto.MemberIDs, m.UserID)
		if m.UserID != group.AdminID && m.Role == models.RoleModerator {
			dto.ModeratorIDs = append(dto.ModeratorIDs, m.UserID)
		}
		if m.UserID == requesterID {
			dto.MyRole = EffectiveRole(group, m)
			dto.NotifyEnabled = m.NotifyEnabled
		}
	}
	return dto
}

// CreateGroup 创建群组
// 创建者即管理员，且自动成为成员；初始成员在同一事务内写入。
func (s *GroupService) CreateGroup(userID uint, req *CreateGroupRequest) (*GroupDTO, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrEmptyName
	}

	for _, id := range req.MemberIDs {
		if id == userID {
			continue
		}
		if _, err := s.userRepo.GetByID(id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUserNotFound
			}
			return nil, err
		}
	}

	group := &models.Group{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		IsPrivate:   req.IsPrivate,
		AdminID:     userID,
	}
	if err := s.groupRepo.Create(group, req.MemberIDs); err != nil {
		return nil, err
	}

	members, err := s.groupRepo.ListMembers(s.groupRepo.DB(), group.ID)
	if err != nil {
		return nil, err
	}
	dto := toGroupDTO(group, members, userID)

	// 被拉入的初始成员走个人通道通知，在线的顺便订阅进新群的房间
	for _, id := range dto.MemberIDs {
		s.notifier.JoinGroup(id, group.ID)
		if id != userID {
			s.notifier.UserEvent(EventMemberAdded, group.ID, userID, id, nil)
		}
	}
	return dto, nil
}

// GetGroup 获取群组详情
// 私有群组对非成员不暴露存在性，统一返回"未找到"。
func (s *GroupService) GetGroup(userID, groupID uint) (*GroupDTO, error) {
	group, err := s.groupRepo.GetByID(groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	members, err := s.groupRepo.ListMembers(s.groupRepo.DB(), groupID)
	if err != nil {
		return nil, err
	}

	isMember := false
	for i := range members {
		if members[i].UserID == userID {
			isMember = true
			break
		}
	}
	if group.IsPrivate && !isMember {
		return nil, ErrGroupNotFound
	}
	return toGroupDTO(group, members, userID), nil
}

// ListMembers 获取群组成员列表（带展示名与推导角色）
func (s *GroupService) ListMembers(userID, groupID uint) ([]MemberDTO, error) {
	group, err := s.groupRepo.GetByID(groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGroupNotFound
		}
		return nil, err
	}

	members, err := s.groupRepo.ListMembers(s.groupRepo.DB(), groupID)
	if err != nil {
		return nil, err
	}

	isMember := false
	for i := range members {
		if members[i].UserID == userID {
			isMember = true
			break
		}
	}
	if group.IsPrivate && !isMember {
		return nil, ErrGroupNotFound
	}

	ids := make([]uint, 0, len(members))
	for i := range members {
		ids = append(ids, members[i].UserID)
	}
	users, err := s.userRepo.GetByIDs(ids)
	if err != nil {
		return nil, err
	}

	resp := make([]MemberDTO, 0, len(members))
	for i := range members {
		m := &members[i]
		dto := MemberDTO{
			UserID:   m.UserID,
			Role:     EffectiveRole(group, m),
			JoinedAt: m.JoinedAt,
		}
		if u := users[m.UserID]; u != nil {
			dto.Name = u.DisplayName()
		}
		resp = append(resp, dto)
	}
	return resp, nil
}

// UpdateGroup 更新群组资料（管理员或版主）
func (s *GroupService) UpdateGroup(actorID, groupID uint, req *UpdateGroupRequest) (*GroupDTO, error) {
	var dto *GroupDTO
	err := s.groupRepo.WithGroupLock(groupID, func(tx *gorm.DB, group *models.Group) error {
		actor, err := s.requireMember(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if !CanModerate(group, actor) {
			return ErrNotModerator
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return ErrEmptyName
			}
			group.Name = name
		}
		if req.Description != nil {
			group.Description = strings.TrimSpace(*req.Description)
		}
		if err := s.groupRepo.Touch(tx, group); err != nil {
			return err
		}

		members, err := s.groupRepo.ListMembers(tx, groupID)
		if err != nil {
			return err
		}
		dto = toGroupDTO(group, members, actorID)
		return nil
	})
	if err != nil {
		return nil, s.mapLockErr(err)
	}

	s.notifier.GroupEvent(EventGroupUpdated, groupID, actorID, 0, nil)
	return dto, nil
}

// UpdateAvatar 更新群组头像（管理员或版主）
func (s *GroupService) UpdateAvatar(actorID, groupID uint, avatarURL string) (*GroupDTO, error) {
	var dto *GroupDTO
	err := s.groupRepo.WithGroupLock(groupID, func(tx *gorm.DB, group *models.Group) error {
		actor, err := s.requireMember(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if !CanModerate(group, actor) {
			return ErrNotModerator
		}

		group.AvatarURL = avatarURL
		if err := s.groupRepo.Touch(tx, group); err != nil {
			return err
		}

		members, err := s.groupRepo.ListMembers(tx, groupID)
		if err != nil {
			return err
		}
		dto = toGroupDTO(group, members, actorID)
		return nil
	})
	if err != nil {
		return nil, s.mapLockErr(err)
	}

	s.notifier.GroupEvent(EventGroupUpdated, groupID, actorID, 0, nil)
	return dto, nil
}

// DeleteGroup 删除群组（仅管理员）
// 成员行随群组一并删除，所有人的覆盖状态（隐藏/历史清除/通知）同时清理。
func (s *GroupService) DeleteGroup(actorID, groupID uint) error {
	var memberIDs []uint
	err := s.groupRepo.WithGroupLock(groupID, func(tx *gorm.DB, group *models.Group) error {
		actor, err := s.requireMember(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if EffectiveRole(group, actor) != models.RoleAdmin {
			return ErrNotAdmin
		}

		members, err := s.groupRepo.ListMembers(tx, groupID)
		if err != nil {
			return err
		}
		for i := range members {
			memberIDs = append(memberIDs, members[i].UserID)
		}
		return s.groupRepo.Delete(tx, groupID)
	})
	if err != nil {
		return s.mapLockErr(err)
	}

	// 群组通道即将失效，逐个走个人通道并退订房间
	for _, id := range memberIDs {
		s.notifier.LeaveGroup(id, groupID)
		s.notifier.UserEvent(EventGroupDeleted, groupID, actorID, id, nil)
	}
	return nil
}

// AddMember 添加成员（管理员或版主）
func (s *GroupService) AddMember(actorID, groupID, targetID uint) (*MutationResult, error) {
	if _, err := s.userRepo.GetByID(targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var result *MutationResult
	var sysMsg *models.Message
	err := s.groupRepo.WithGroupLock(groupID, func(tx *gorm.DB, group *models.Group) error {
		actor, err := s.requireMember(tx, groupID, actorID)
		if err != nil {
			return err
		}
		if !CanModerate(group, actor) {
			return ErrNotModerator
		}

		if _, err := s.groupRepo.GetMember(tx, groupID, targetID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		member := &models.GroupMember{
			GroupID: groupID, UserID: targetID,
			Role: models.RoleMember, NotifyEnabled: true,
		}
		if err := s.groupRepo.AddMember(tx, member); err != nil {
			return err
		}

		sysMsg, err = s.emitter.Emit(tx, groupID, targetID, EventMemberAdded)
		if err != nil {
			return err
		}
		result, err = s.buildResult(tx, group, actorID, sysMsg)
		return err
	})
	if err != nil {
		return nil, s.mapLockErr(err)
	}

	s.notifier.JoinGroup(targetID, groupID)
	s.notifier.GroupEvent(EventMemberAdded, groupID, actorID, targetID, sysMsg)
	s.notifier.UserEvent(EventMemberAdded, groupID, actorID, targetID, sysMsg)
	return result, nil
}

// RemoveMember 移出成员
// 权限矩阵见 CheckKick：管理员永远不可被移出，版主不能动管理员和同级版主。
// 成员行删除即覆盖状态清理，之后重新入群是全新状态。
func (s *GroupService) RemoveMember(actorID, groupID, targetID uint) (*MutationResult, error) {
	var result *MutationResult
	var sysMsg *models.Message
	err := s.groupRepo.WithGroupLock(groupID, func(tx *gorm.DB, group *models.Group) error {
		actor, err := s.requireMember(tx, groupID, actorID)
		if err != nil {
			return err
		}
		target, err := s.groupRepo.GetMember(tx, groupID, targetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := CheckKick(group, actor, target); err != nil {
			return err
		}

		if err := s.groupRepo.RemoveMember(tx, groupID, targetID); err != nil {
			return err
		}
		sysMsg, err = s.emitter.Emit(tx, groupID, targetID, EventMemberRemoved)
		if err != nil {
			return err
		}
		result, err = s.buildResult(tx, group, actorID, sysMsg)
		return err
	})
	if err != nil {
		return nil, s.mapLockErr(err)
	}

	s.notifier.LeaveGroup(targetID, groupID)
	s.notifier.GroupEvent(EventMemberRemoved, groupID, actorID, targetID, sysMsg)
	// 被移出者已不在群组通道里，单独通知
	s.notifier.UserEvent(EventMemberRemoved, groupID, actorID, targetID, sysMsg)
	return result, nil
}

// LeaveGroup 主动退群
// 管理员不能退群，只能删除群组；这是避免群组失去管理员的硬约束。
func (s *GroupService) LeaveGroup(userID, groupID uint) (*MutationResult, error) {
	var result *MutationResult
	var sysMsg *models.Message
	err := s.groupRepo.WithGroupLock(groupID, func(tx *gorm.DB, group *models.Group) error {
		member, err := s.requireMember(tx, groupID, userID)
		if err != nil {
			return err
		}
		if EffectiveRole(group, member) == models.RoleAdmin {
			return ErrAdminCannotLeave
		}

		if err := s.groupRepo.RemoveMember(tx, groupID, userID); err != nil {
			return err
		}
		sysMsg, err = s.emitter.Emit(tx, groupID, userID, EventMemberLeft)
		if err != nil {
			return err
		}
		result, err = s.buildResult(tx, group, userID, sysMsg)
		return err
	})
	if err != nil {
		return nil, s.mapLockErr(err)
	}

	s.notifier.LeaveGroup(userID, groupID)
	s.notifier.GroupEvent(EventMemberLeft, groupID, userID, userID, sysMsg)
	return result, nil
}

// PromoteModerator 晋升版主（仅管理员）
func (s *GroupService) PromoteModerator(actorID, groupID, targetID uint) (*MutationResult, error) {
	return s.changeRole(actorID, groupID, targetID, models.RoleModerator, EventModeratorGranted, CheckPromote)
}

// DemoteModerator 撤销版主（仅管理员）
func (s *GroupService) DemoteModerator(actorID, groupID, targetID uint) (*MutationResult, error) {
	return s.changeRole(actorID, groupID, targetID, models.RoleMember, EventModeratorRevoked, CheckDemote)
}

func (s *GroupService) changeRole(actorID, groupID, targetID uint, newRole, event string, check func(*models.Group, *models.GroupMember, *models.GroupMember) error) (*MutationResult, error) {
	var result *MutationResult
	var sysMsg *models.Message
	err := s.groupRepo.WithGroupLock(groupID, func(tx *gorm.DB, group *models.Group) error {
		actor, err := s.requireMember(tx, groupID, actorID)
		if err != nil {
			return err
		}
		target, err := s.groupRepo.GetMember(tx, groupID, targetID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if err := check(group, actor, target); err != nil {
			return err
		}

		target.Role = newRole
		if err := s.groupRepo.SaveMember(tx, target); err != nil {
			return err
		}
		sysMsg, err = s.emitter.Emit(tx, groupID, targetID, event)
		if err != nil {
			return err
		}
		result, err = s.buildResult(tx, group, actorID, sysMsg)
		return err
	})
	if err != nil {
		return nil, s.mapLockErr(err)
	}

	s.notifier.GroupEvent(event, groupID, actorID, targetID, sysMsg)
	return result, nil
}

// requireMember 取操作者的成员行，非成员返回 Forbidden
func (s *GroupService) requireMember(tx *gorm.DB, groupID, userID uint) (*models.GroupMember, error) {
	member, err := s.groupRepo.GetMember(tx, groupID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}
	return member, nil
}

func (s *GroupService) buildResult(tx *gorm.DB, group *models.Group, requesterID uint, sysMsg *models.Message) (*MutationResult, error) {
	members, err := s.groupRepo.ListMembers(tx, group.ID)
	if err != nil {
		return nil, err
	}
	res := &MutationResult{Group: toGroupDTO(group, members, requesterID)}
	if sysMsg != nil {
		dto := toMessageDTO(sysMsg, nil)
		res.SystemMessage = &dto
	}
	return res, nil
}

// mapLockErr 把锁事务里的 record-not-found（群组本身不存在）归一到领域错误
func (s *GroupService) mapLockErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrGroupNotFound
	}
	return err
}
