package services

import "errors"

// 错误按四类划分：NotFound / Forbidden / InvalidState / Validation。
// 全部同步返回给调用方，不做自动重试；Handler 通过 errors.Is 映射状态码。

// NotFound：目标不存在，或读路径上请求方无成员资格（不暴露群组存在性）
var (
	ErrGroupNotFound   = errors.New("group not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrMessageNotFound = errors.New("message not found")
)

// Forbidden：角色不足
var (
	ErrNotMember        = errors.New("not a member of this group")
	ErrNotAdmin         = errors.New("only the administrator can perform this action")
	ErrNotModerator     = errors.New("moderator or administrator role required")
	ErrModeratorOnPeer  = errors.New("a moderator cannot act on the administrator or another moderator")
	ErrDeleteNotAllowed = errors.New("no permission to delete this message")
)

// InvalidState：操作与当前聚合状态冲突
var (
	ErrAlreadyMember    = errors.New("user is already a member of this group")
	ErrAdminCannotLeave = errors.New("administrator must delete the group instead of leaving")
	ErrCannotKickAdmin  = errors.New("the administrator cannot be removed from the group")
	ErrAlreadyModerator = errors.New("user is already a moderator")
	ErrNotAModerator    = errors.New("user is not a moderator")
	ErrAdminRoleFixed   = errors.New("the administrator role is fixed at creation")
	ErrNotPrivate       = errors.New("operation only applies to private conversations")
)

// Validation：输入非法
var (
	ErrEmptyName = errors.New("group name must not be empty")
)

// IsNotFound 判断是否为 NotFound 类错误
func IsNotFound(err error) bool {
	return errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrMessageNotFound)
}

// IsForbidden 判断是否为 Forbidden 类错误
func IsForbidden(err error) bool {
	return errors.Is(err, ErrNotMember) ||
		errors.Is(err, ErrNotAdmin) ||
		errors.Is(err, ErrNotModerator) ||
		errors.Is(err, ErrModeratorOnPeer) ||
		errors.Is(err, ErrDeleteNotAllowed)
}

// IsInvalidState 判断是否为 InvalidState 类错误
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrAlreadyMember) ||
		errors.Is(err, ErrAdminCannotLeave) ||
		errors.Is(err, ErrCannotKickAdmin) ||
		errors.Is(err, ErrAlreadyModerator) ||
		errors.Is(err, ErrNotAModerator) ||
		errors.Is(err, ErrAdminRoleFixed) ||
		errors.Is(err, ErrNotPrivate)
}

// IsValidation 判断是否为 Validation 类错误
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyName)
}
