package group

import (
	"fmt"
	"net/http"
	"testing"
	"time"
)

func findGroup(list GroupList, id uint) (VisibleGroup, bool) {
	for _, g := range list.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return VisibleGroup{}, false
}

func TestHiddenGroupResurfacesOnNewMessage(t *testing.T) {
	RequireServer(t)

	tokenA, _ := CreateUser(t)
	tokenB, idB := CreateUser(t)

	groupID := CreateGroup(t, tokenA, "private chat", true, []uint{idB})

	// B 隐藏后列表里不再出现
	if _, _, err := Do("POST", fmt.Sprintf("/groups/%d/hide", groupID), tokenB, nil); err != nil {
		t.Fatalf("hide failed: %v", err)
	}
	if _, ok := findGroup(ListGroups(t, tokenB), groupID); ok {
		t.Fatalf("hidden group should not be listed")
	}

	// A 发新消息，会话对 B 重新浮现
	time.Sleep(20 * time.Millisecond)
	SendMessage(t, tokenA, groupID, "are you there?")

	g, ok := findGroup(ListGroups(t, tokenB), groupID)
	if !ok {
		t.Fatalf("group should resurface after new message")
	}
	if !g.Hidden {
		t.Fatalf("resurfaced group should still carry hidden flag")
	}

	// 再次隐藏把基准推到最新消息之后，列表重新变空
	time.Sleep(20 * time.Millisecond)
	if _, _, err := Do("POST", fmt.Sprintf("/groups/%d/hide", groupID), tokenB, nil); err != nil {
		t.Fatalf("re-hide failed: %v", err)
	}
	if _, ok := findGroup(ListGroups(t, tokenB), groupID); ok {
		t.Fatalf("re-hidden group should not be listed")
	}
}

func TestHideShowRoundTrip(t *testing.T) {
	RequireServer(t)

	tokenA, _ := CreateUser(t)
	tokenB, idB := CreateUser(t)

	groupID := CreateGroup(t, tokenA, "round trip chat", true, []uint{idB})

	// 隐藏是幂等的
	for i := 0; i < 2; i++ {
		if _, _, err := Do("POST", fmt.Sprintf("/groups/%d/hide", groupID), tokenB, nil); err != nil {
			t.Fatalf("hide #%d failed: %v", i+1, err)
		}
	}
	if _, ok := findGroup(ListGroups(t, tokenB), groupID); ok {
		t.Fatalf("group should be hidden")
	}

	if _, _, err := Do("POST", fmt.Sprintf("/groups/%d/show", groupID), tokenB, nil); err != nil {
		t.Fatalf("show failed: %v", err)
	}
	g, ok := findGroup(ListGroups(t, tokenB), groupID)
	if !ok {
		t.Fatalf("group should be visible after show")
	}
	if g.Hidden {
		t.Fatalf("shown group should not carry hidden flag")
	}
}

// 非成员的可见性操作与读路径一致，用 404 掩盖群组存在性
func TestOverlayMasksExistenceForOutsiders(t *testing.T) {
	RequireServer(t)

	tokenA, _ := CreateUser(t)
	tokenC, _ := CreateUser(t) // 局外人

	groupID := CreateGroup(t, tokenA, "secret chat", true, nil)

	for _, path := range []string{"hide", "show", "history/clear"} {
		_, status, err := Do("POST", fmt.Sprintf("/groups/%d/%s", groupID, path), tokenC, nil)
		if err == nil || status != http.StatusNotFound {
			t.Fatalf("%s by outsider: expected 404, got status=%d err=%v", path, status, err)
		}
	}
}

func TestHideRequiresPrivateGroup(t *testing.T) {
	RequireServer(t)

	tokenA, _ := CreateUser(t)
	groupID := CreateGroup(t, tokenA, "public group", false, nil)

	_, status, err := Do("POST", fmt.Sprintf("/groups/%d/hide", groupID), tokenA, nil)
	if err == nil || status != http.StatusConflict {
		t.Fatalf("expected 409 hiding a non-private group, got status=%d err=%v", status, err)
	}
}

func TestHistoryClearIsPersonal(t *testing.T) {
	RequireServer(t)

	tokenA, _ := CreateUser(t)
	tokenB, idB := CreateUser(t)

	groupID := CreateGroup(t, tokenA, "history chat", true, []uint{idB})

	SendMessage(t, tokenA, groupID, "first")
	SendMessage(t, tokenB, groupID, "second")

	// B 清除历史：自己的读取横线后移，A 不受影响
	time.Sleep(20 * time.Millisecond)
	if _, _, err := Do("POST", fmt.Sprintf("/groups/%d/history/clear", groupID), tokenB, nil); err != nil {
		t.Fatalf("clear history failed: %v", err)
	}

	if got := GetMessages(t, tokenB, groupID); len(got.Messages) != 0 {
		t.Fatalf("B should see no messages after clearing history, got %d", len(got.Messages))
	}
	listA := GetMessages(t, tokenA, groupID)
	if len(listA.Messages) < 2 {
		t.Fatalf("A should still see the shared history, got %d messages", len(listA.Messages))
	}

	// 横线之后的新消息对 B 可见
	time.Sleep(20 * time.Millisecond)
	SendMessage(t, tokenA, groupID, "third")
	got := GetMessages(t, tokenB, groupID)
	if len(got.Messages) != 1 || got.Messages[0].Content != "third" {
		t.Fatalf("B should see exactly the post-clear message, got %+v", got.Messages)
	}
}

func TestToggleNotifications(t *testing.T) {
	RequireServer(t)

	tokenA, _ := CreateUser(t)
	groupID := CreateGroup(t, tokenA, "notify group", false, nil)

	// 通知开关对非私聊群组同样可用
	if _, _, err := Do("PUT", fmt.Sprintf("/groups/%d/notifications", groupID), tokenA, map[string]bool{"enabled": false}); err != nil {
		t.Fatalf("disable notifications failed: %v", err)
	}
	// 关通知不影响可见性
	if _, ok := findGroup(ListGroups(t, tokenA), groupID); !ok {
		t.Fatalf("group should stay visible with notifications disabled")
	}
}
