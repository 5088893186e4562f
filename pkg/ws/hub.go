package ws

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	redis "github.com/redis/go-redis/v9"

	"github.com/Gopher0727/ProNet/pkg/utils"
)

const (
	redisChannelName = "pronet:broadcast"

	// 房间控制操作，经同一广播通道送达所有节点
	opJoinRoom  = "join_room"
	opLeaveRoom = "leave_room"
)

// Hub 维护活跃的客户端连接并广播消息
// 实现 services.Broadcaster：群组通道与个人通道两类投递。
type Hub struct {
	// 注册的客户端
	clients map[*Client]bool

	// 房间（Group）对应的客户端集合 GroupID -> Client -> bool
	rooms map[uint]map[*Client]bool

	// 互斥锁，保护 map 的并发读写
	mu sync.RWMutex

	// 注册请求通道
	register chan *Client

	// 注销请求通道
	unregister chan *Client

	// 广播消息通道 (内部使用)
	broadcast chan *BroadcastMessage

	// Redis 客户端，用于分布式广播
	redis *redis.Client

	// 用户 ID 到客户端的映射，个人通道投递用
	userClients map[uint]*Client

	// 一致性哈希环与当前节点
	hashRing *utils.HashRing
	nodeID   string
}

// BroadcastMessage 广播消息结构
// UserID 非零时走个人通道（仅投递给该用户），否则投递给 GroupID 房间。
// Op 非空时是房间控制消息（join_room/leave_room），不投递给客户端。
type BroadcastMessage struct {
	GroupID uint   `json:"group_id"`
	UserID  uint   `json:"user_id,omitempty"`
	Op      string `json:"op,omitempty"`
	Message any    `json:"message,omitempty"`
}

func NewHub(redisClient *redis.Client, ring *utils.HashRing, nodeID string) *Hub {
	return &Hub{
		broadcast:   make(chan *BroadcastMessage),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
		rooms:       make(map[uint]map[*Client]bool),
		userClients: make(map[uint]*Client),
		redis:       redisClient,
		hashRing:    ring,
		nodeID:      nodeID,
	}
}

// SetHashRing 外部更新哈希环时使用
func (h *Hub) SetHashRing(ring *utils.HashRing) {
	h.mu.Lock()
	h.hashRing = ring
	h.mu.Unlock()
}

// Subscribe 把客户端加入群组房间（入群后订阅新群）
func (h *Hub) Subscribe(client *Client, groupID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	h.joinRoomLocked(client, groupID)
}

func (h *Hub) joinRoomLocked(client *Client, groupID uint) {
	if _, ok := h.rooms[groupID]; !ok {
		h.rooms[groupID] = make(map[*Client]bool)
	}
	h.rooms[groupID][client] = true
}

func (h *Hub) leaveRoomLocked(client *Client, groupID uint) {
	if room, ok := h.rooms[groupID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, groupID)
		}
	}
}

// applyControl 处理房间控制消息。控制消息经 Redis 到达所有节点，
// 用户的连接挂在哪个节点都能更新到对应的本地房间。
func (h *Hub) applyControl(msg *BroadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client, ok := h.userClients[msg.UserID]
	if !ok {
		return
	}
	switch msg.Op {
	case opJoinRoom:
		h.joinRoomLocked(client, msg.GroupID)
	case opLeaveRoom:
		h.leaveRoomLocked(client, msg.GroupID)
	}
}

func (h *Hub) Run() {
	// 启动 Redis 订阅协程
	if h.redis != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.userClients[client.userID] = client
			// 将客户端加入其所属的群组房间
			for _, groupID := range client.groupIDs {
				if _, ok := h.rooms[groupID]; !ok {
					h.rooms[groupID] = make(map[*Client]bool)
				}
				h.rooms[groupID][client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.dropClientLocked(client)
			}
			h.mu.Unlock()
			// 删除 Redis 路由键，避免脏路由
			if h.redis != nil {
				key := "User:Connect:" + strconv.Itoa(int(client.userID))
				_ = h.redis.Del(context.Background(), key).Err()
			}

		case msg := <-h.broadcast:
			if msg.Op != "" {
				h.applyControl(msg)
				continue
			}

			h.mu.RLock()
			// 收集需要关闭的客户端，避免在 RLock 中修改 map
			var closedClients []*Client

			if msg.UserID != 0 {
				// 个人通道：只投递给目标用户
				if client, ok := h.userClients[msg.UserID]; ok {
					select {
					case client.send <- msg:
					default:
						closedClients = append(closedClients, client)
					}
				}
			} else if clients, ok := h.rooms[msg.GroupID]; ok {
				// 群组房间的所有订阅者
				for client := range clients {
					select {
					case client.send <- msg:
					default:
						// 发送缓冲区满，标记为需要关闭
						closedClients = append(closedClients, client)
					}
				}
			}
			h.mu.RUnlock()

			// 处理需要关闭的客户端
			if len(closedClients) > 0 {
				h.mu.Lock()
				for _, client := range closedClients {
					// Double check，防止已经处理过
					if _, ok := h.clients[client]; ok {
						h.dropClientLocked(client)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// dropClientLocked 从所有 map 中移除客户端并关闭发送通道，调用方必须持有写锁。
// 房间按全量扫描清理：连接存续期间可能订阅了连接时还不存在的群组，
// 只按 client.groupIDs 清理会留下指向已关闭通道的脏房间条目。
func (h *Hub) dropClientLocked(client *Client) {
	delete(h.clients, client)
	delete(h.userClients, client.userID)
	close(client.send)
	for groupID, room := range h.rooms {
		if room[client] {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, groupID)
			}
		}
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.redis.Subscribe(ctx, redisChannelName)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for msg := range ch {
		var broadcastMsg BroadcastMessage
		if err := json.Unmarshal([]byte(msg.Payload), &broadcastMsg); err == nil {
			// 将从 Redis 收到的消息发送到本地广播通道
			// 注意：这里不需要再 Publish 到 Redis，否则会死循环
			// 直接送入 h.broadcast，由 Run() 中的循环分发给本地 WebSocket 连接
			h.broadcast <- &broadcastMsg
		}
	}
}

// publish 发布到 Redis 让所有实例（包括自己）收到；无 Redis 时仅本地广播
func (h *Hub) publish(msg *BroadcastMessage) {
	if h.redis != nil {
		payload, err := json.Marshal(msg)
		if err == nil {
			h.redis.Publish(context.Background(), redisChannelName, payload)
		}
	} else {
		h.broadcast <- msg
	}
}

// BroadcastToGroup 发送消息到指定群组的所有在线成员
func (h *Hub) BroadcastToGroup(groupID uint, message any) {
	h.publish(&BroadcastMessage{
		GroupID: groupID,
		Message: message,
	})
}

// BroadcastToUser 发送消息到指定用户的个人通道（被移出群组的用户收不到群组广播）
func (h *Hub) BroadcastToUser(userID uint, message any) {
	h.publish(&BroadcastMessage{
		UserID:  userID,
		Message: message,
	})
}

// JoinGroup 把在线用户加入群组房间，入群后无需重连即可收到群组广播
func (h *Hub) JoinGroup(userID, groupID uint) {
	h.publish(&BroadcastMessage{
		GroupID: groupID,
		UserID:  userID,
		Op:      opJoinRoom,
	})
}

// LeaveGroup 把用户移出群组房间，被移出或退群后立即停止接收群组广播
func (h *Hub) LeaveGroup(userID, groupID uint) {
	h.publish(&BroadcastMessage{
		GroupID: groupID,
		UserID:  userID,
		Op:      opLeaveRoom,
	})
}
