package group

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"testing"
	"time"
)

const (
	BaseURL = "http://localhost:9000/api/v1"
)

var HttpClient *http.Client

func init() {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxIdleConnsPerHost = 100
	t.IdleConnTimeout = 90 * time.Second

	HttpClient = &http.Client{
		Transport: t,
		Timeout:   30 * time.Second,
	}
}

// RequireServer 服务未启动时跳过（集成测试需要本地跑起完整服务）
func RequireServer(t *testing.T) {
	t.Helper()
	resp, err := HttpClient.Get("http://localhost:9000/health")
	if err != nil {
		t.Skipf("Skipping integration test: server not running: %v", err)
	}
	resp.Body.Close()
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type UserInfo struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

type AuthData struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

type GroupData struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	AdminID      uint   `json:"admin_id"`
	ModeratorIDs []uint `json:"moderator_ids"`
	MemberIDs    []uint `json:"member_ids"`
	MyRole       string `json:"my_role"`
}

type VisibleGroup struct {
	GroupData
	Hidden bool `json:"hidden"`
}

type GroupList struct {
	Groups []VisibleGroup `json:"groups"`
	Total  int            `json:"total"`
}

type MutationData struct {
	Group         *GroupData   `json:"group"`
	SystemMessage *MessageData `json:"system_message"`
}

type MessageData struct {
	ID        int64     `json:"id"`
	GroupID   uint      `json:"group_id"`
	SenderID  uint      `json:"sender_id"`
	Content   string    `json:"content"`
	MsgType   string    `json:"msg_type"`
	CreatedAt time.Time `json:"created_at"`
}

type MessageList struct {
	Messages []MessageData `json:"messages"`
	Total    int           `json:"total"`
}

// CreateUser 注册并登录一个随机用户，返回 token 与用户ID
func CreateUser(t *testing.T) (string, uint) {
	t.Helper()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	suffix := rng.Intn(100000000)

	username := fmt.Sprintf("u_%d", suffix)
	email := fmt.Sprintf("u_%d@test.com", suffix)
	password := "password123"

	body, _ := json.Marshal(map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	if _, _, err := call("POST", BaseURL+"/users/register", "", body); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	body, _ = json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	data, _, err := call("POST", BaseURL+"/users/login", "", body)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	var auth AuthData
	if err := json.Unmarshal(data, &auth); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return auth.Token, auth.User.ID
}

// CreateGroup 创建群组，memberIDs 为初始成员
func CreateGroup(t *testing.T, token, name string, isPrivate bool, memberIDs []uint) uint {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"name":       name,
		"is_private": isPrivate,
		"member_ids": memberIDs,
	})
	data, _, err := call("POST", BaseURL+"/groups", token, body)
	if err != nil {
		t.Fatalf("create group failed: %v", err)
	}
	var g GroupData
	if err := json.Unmarshal(data, &g); err != nil {
		t.Fatalf("decode group: %v", err)
	}
	return g.ID
}

func ListGroups(t *testing.T, token string) GroupList {
	t.Helper()
	data, _, err := call("GET", BaseURL+"/groups", token, nil)
	if err != nil {
		t.Fatalf("list groups failed: %v", err)
	}
	var list GroupList
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("decode group list: %v", err)
	}
	return list
}

func SendMessage(t *testing.T, token string, groupID uint, content string) MessageData {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"content": content})
	data, _, err := call("POST", fmt.Sprintf("%s/groups/%d/messages", BaseURL, groupID), token, body)
	if err != nil {
		t.Fatalf("send message failed: %v", err)
	}
	var msg MessageData
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return msg
}

func GetMessages(t *testing.T, token string, groupID uint) MessageList {
	t.Helper()
	data, _, err := call("GET", fmt.Sprintf("%s/groups/%d/messages", BaseURL, groupID), token, nil)
	if err != nil {
		t.Fatalf("get messages failed: %v", err)
	}
	var list MessageList
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	return list
}

// Do 发送请求并返回 data 与 HTTP 状态码，不在失败时终止测试
func Do(method, path, token string, payload any) (json.RawMessage, int, error) {
	var body []byte
	if payload != nil {
		body, _ = json.Marshal(payload)
	}
	return call(method, BaseURL+path, token, body)
}

func call(method, url, token string, body []byte) (json.RawMessage, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := HttpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("bad response body: %s", string(raw))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, env.Error)
	}
	return env.Data, resp.StatusCode, nil
}
