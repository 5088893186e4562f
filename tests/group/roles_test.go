package group

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

// 角色流转：晋升 -> 版主踢普通成员 -> 版主踢管理员被拒 -> 降级
func TestRoleLifecycle(t *testing.T) {
	RequireServer(t)

	tokenA, idA := CreateUser(t) // 管理员
	tokenB, idB := CreateUser(t)
	_, idC := CreateUser(t)

	groupID := CreateGroup(t, tokenA, "role test group", false, []uint{idB, idC})

	// A 晋升 B
	data, _, err := Do("POST", fmt.Sprintf("/groups/%d/moderators/%d", groupID, idB), tokenA, nil)
	if err != nil {
		t.Fatalf("promote failed: %v", err)
	}
	var result MutationData
	json.Unmarshal(data, &result)
	if len(result.Group.ModeratorIDs) != 1 || result.Group.ModeratorIDs[0] != idB {
		t.Fatalf("expected moderator_ids=[%d], got %v", idB, result.Group.ModeratorIDs)
	}
	if result.SystemMessage == nil || result.SystemMessage.MsgType != "system" {
		t.Fatalf("promotion should synthesize a system message, got %+v", result.SystemMessage)
	}

	// B（版主）踢普通成员 C
	data, _, err = Do("DELETE", fmt.Sprintf("/groups/%d/members/%d", groupID, idC), tokenB, nil)
	if err != nil {
		t.Fatalf("moderator kicking plain member should succeed: %v", err)
	}
	json.Unmarshal(data, &result)
	if len(result.Group.MemberIDs) != 2 {
		t.Fatalf("expected 2 members after kick, got %v", result.Group.MemberIDs)
	}

	// B（版主）踢管理员 A：Forbidden
	_, status, err := Do("DELETE", fmt.Sprintf("/groups/%d/members/%d", groupID, idA), tokenB, nil)
	if err == nil || status != http.StatusForbidden {
		t.Fatalf("moderator kicking admin should return 403, got status=%d err=%v", status, err)
	}

	// A 降级 B
	data, _, err = Do("DELETE", fmt.Sprintf("/groups/%d/moderators/%d", groupID, idB), tokenA, nil)
	if err != nil {
		t.Fatalf("demote failed: %v", err)
	}
	json.Unmarshal(data, &result)
	if len(result.Group.ModeratorIDs) != 0 {
		t.Fatalf("expected empty moderator_ids after demote, got %v", result.Group.ModeratorIDs)
	}
}

// 管理员不可退群、不可被任何人移出
func TestAdminIsImmovable(t *testing.T) {
	RequireServer(t)

	tokenA, idA := CreateUser(t) // 管理员
	_, idB := CreateUser(t)

	groupID := CreateGroup(t, tokenA, "admin test group", false, []uint{idB})

	// 管理员退群：InvalidState (409)
	_, status, err := Do("POST", fmt.Sprintf("/groups/%d/leave", groupID), tokenA, nil)
	if err == nil || status != http.StatusConflict {
		t.Fatalf("admin leaving should return 409, got status=%d err=%v", status, err)
	}

	// 管理员移出自己：InvalidState (409)
	_, status, err = Do("DELETE", fmt.Sprintf("/groups/%d/members/%d", groupID, idA), tokenA, nil)
	if err == nil || status != http.StatusConflict {
		t.Fatalf("admin self-kick should return 409, got status=%d err=%v", status, err)
	}
}

// 非管理员晋升他人：Forbidden；晋升现任版主：InvalidState
func TestPromotionGuards(t *testing.T) {
	RequireServer(t)

	tokenA, _ := CreateUser(t)
	tokenB, idB := CreateUser(t)
	_, idC := CreateUser(t)

	groupID := CreateGroup(t, tokenA, "promo guard group", false, []uint{idB, idC})

	// 普通成员 B 晋升 C
	_, status, err := Do("POST", fmt.Sprintf("/groups/%d/moderators/%d", groupID, idC), tokenB, nil)
	if err == nil || status != http.StatusForbidden {
		t.Fatalf("non-admin promote should return 403, got status=%d err=%v", status, err)
	}

	// A 晋升 B 两次：第二次 409
	if _, _, err := Do("POST", fmt.Sprintf("/groups/%d/moderators/%d", groupID, idB), tokenA, nil); err != nil {
		t.Fatalf("first promote failed: %v", err)
	}
	_, status, err = Do("POST", fmt.Sprintf("/groups/%d/moderators/%d", groupID, idB), tokenA, nil)
	if err == nil || status != http.StatusConflict {
		t.Fatalf("double promote should return 409, got status=%d err=%v", status, err)
	}
}
