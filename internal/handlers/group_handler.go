package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ProNet/internal/services"
)

// GroupHandler 群组处理器：群组 CRUD、成员管理、角色管理
type GroupHandler struct {
	groupService      *services.GroupService
	visibilityService *services.VisibilityService
}

// NewGroupHandler 创建群组处理器实例
func NewGroupHandler(groupService *services.GroupService, visibilityService *services.VisibilityService) *GroupHandler {
	return &GroupHandler{
		groupService:      groupService,
		visibilityService: visibilityService,
	}
}

// groupParam 解析路径中的群组ID
func groupParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid group id",
		})
		return 0, false
	}
	return uint(id), true
}

// userParam 解析路径中的用户ID
func userParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid user id",
		})
		return 0, false
	}
	return uint(id), true
}

// CreateGroup 创建群组
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}

	var req services.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("CreateGroup: JSON binding error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	group, err := h.groupService.CreateGroup(userID, &req)
	if err != nil {
		fail(c, "CreateGroup", err)
		return
	}

	ok(c, group)
}

// ListGroups 列出当前用户可见的群组
func (h *GroupHandler) ListGroups(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}

	groups, err := h.visibilityService.ListVisibleGroups(userID)
	if err != nil {
		fail(c, "ListGroups", err)
		return
	}

	ok(c, gin.H{
		"groups": groups,
		"total":  len(groups),
	})
}

// GetGroup 获取群组详情
func (h *GroupHandler) GetGroup(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}

	group, err := h.groupService.GetGroup(userID, groupID)
	if err != nil {
		fail(c, "GetGroup", err)
		return
	}

	ok(c, group)
}

// UpdateGroup 更新群组资料
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}

	var req services.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("UpdateGroup: JSON binding error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	group, err := h.groupService.UpdateGroup(userID, groupID, &req)
	if err != nil {
		fail(c, "UpdateGroup", err)
		return
	}

	ok(c, group)
}

// UpdateAvatar 更新群组头像
func (h *GroupHandler) UpdateAvatar(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}

	type avatarRequest struct {
		AvatarURL string `json:"avatar_url" binding:"required"`
	}

	var req avatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("UpdateAvatar: JSON binding error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	group, err := h.groupService.UpdateAvatar(userID, groupID, req.AvatarURL)
	if err != nil {
		fail(c, "UpdateAvatar", err)
		return
	}

	ok(c, group)
}

// DeleteGroup 删除群组
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}

	if err := h.groupService.DeleteGroup(userID, groupID); err != nil {
		fail(c, "DeleteGroup", err)
		return
	}

	ok(c, nil)
}

// ListMembers 获取群组成员列表
func (h *GroupHandler) ListMembers(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}

	members, err := h.groupService.ListMembers(userID, groupID)
	if err != nil {
		fail(c, "ListMembers", err)
		return
	}

	ok(c, gin.H{
		"members": members,
		"total":   len(members),
	})
}

// AddMember 添加成员
func (h *GroupHandler) AddMember(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}

	type addMemberRequest struct {
		UserID uint `json:"user_id" binding:"required"`
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("AddMember: JSON binding error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	result, err := h.groupService.AddMember(userID, groupID, req.UserID)
	if err != nil {
		fail(c, "AddMember", err)
		return
	}

	ok(c, result)
}

// RemoveMember 移出成员
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}
	targetID, valid := userParam(c)
	if !valid {
		return
	}

	result, err := h.groupService.RemoveMember(userID, groupID, targetID)
	if err != nil {
		fail(c, "RemoveMember", err)
		return
	}

	ok(c, result)
}

// LeaveGroup 退出群组
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}

	result, err := h.groupService.LeaveGroup(userID, groupID)
	if err != nil {
		fail(c, "LeaveGroup", err)
		return
	}

	ok(c, result)
}

// PromoteModerator 晋升版主
func (h *GroupHandler) PromoteModerator(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}
	targetID, valid := userParam(c)
	if !valid {
		return
	}

	result, err := h.groupService.PromoteModerator(userID, groupID, targetID)
	if err != nil {
		fail(c, "PromoteModerator", err)
		return
	}

	ok(c, result)
}

// DemoteModerator 撤销版主
func (h *GroupHandler) DemoteModerator(c *gin.Context) {
	userID, exists := currentUser(c)
	if !exists {
		return
	}
	groupID, valid := groupParam(c)
	if !valid {
		return
	}
	targetID, valid := userParam(c)
	if !valid {
		return
	}

	result, err := h.groupService.DemoteModerator(userID, groupID, targetID)
	if err != nil {
		fail(c, "DemoteModerator", err)
		return
	}

	ok(c, result)
}
