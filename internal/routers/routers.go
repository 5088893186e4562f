package routers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ProNet/config"
	"github.com/Gopher0727/ProNet/internal/handlers"
	"github.com/Gopher0727/ProNet/internal/middlewares"
	"github.com/Gopher0727/ProNet/internal/services"
	pkgmiddlewares "github.com/Gopher0727/ProNet/pkg/middlewares"
	"github.com/Gopher0727/ProNet/pkg/mq"
	"github.com/Gopher0727/ProNet/pkg/ws"
	"github.com/Gopher0727/ProNet/utils/ratelimit"
)

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine, cfg *config.Config,
	authHandler *handlers.AuthHandler,
	groupHandler *handlers.GroupHandler,
	visibilityHandler *handlers.VisibilityHandler,
	messageHandler *handlers.MessageHandler,
	hub *ws.Hub, // 注入 Hub
	messageService *services.MessageService, // 注入 MessageService 用于 WS
	kafkaProducer *mq.KafkaProducer, // 注入 KafkaProducer 用于 WS
	userLimiter ratelimit.Limiter, // 按用户限流（写接口）
) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	// 全局限流中间件 (防止 QPS 过高)
	// 限流器参数在 main 中按配置初始化
	r.Use(pkgmiddlewares.RateLimitMiddleware(2 * time.Second))

	// WebSocket 路由 (必须在 AsyncMiddleware 之前注册，避免握手请求被放入 Worker Pool)
	r.GET("/ws", middlewares.AuthMiddleware(), func(c *gin.Context) {
		ws.ServeWs(hub, messageService, kafkaProducer, c)
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"Status": "OK",
		})
	})

	// 异步处理中间件
	// 将请求放入 Worker Pool 中排队执行
	r.Use(middlewares.AsyncMiddleware())

	RegisterUserRoutes(r, authHandler)
	RegisterGroupRoutes(r, groupHandler, visibilityHandler, messageHandler, userLimiter)
	RegisterMessageRoutes(r, messageHandler)
}

// RegisterUserRoutes 用户与认证接口
func RegisterUserRoutes(r *gin.Engine, authHandler *handlers.AuthHandler) {
	userGroup := r.Group("/api/v1/users")
	{
		userGroup.POST("/register", authHandler.Register) // 注册
		userGroup.POST("/login", authHandler.Login)       // 登录
	}
	userGroup.Use(middlewares.AuthMiddleware())
	{
		userGroup.GET("/me", authHandler.GetProfile)    // 获取当前用户信息
		userGroup.PUT("/me", authHandler.UpdateProfile) // 更新昵称、头衔、头像
	}
}

// RegisterGroupRoutes 群组接口：CRUD、成员、角色、个人可见性、消息
func RegisterGroupRoutes(r *gin.Engine,
	groupHandler *handlers.GroupHandler,
	visibilityHandler *handlers.VisibilityHandler,
	messageHandler *handlers.MessageHandler,
	userLimiter ratelimit.Limiter,
) {
	groupGroup := r.Group("/api/v1/groups")
	groupGroup.Use(middlewares.AuthMiddleware())
	{
		groupGroup.POST("", groupHandler.CreateGroup) // 创建群组
		groupGroup.GET("", groupHandler.ListGroups)   // 我的可见群组列表（含隐藏会话的浮现判定）

		groupGroup.GET("/:id", groupHandler.GetGroup)            // 群组详情
		groupGroup.PUT("/:id", groupHandler.UpdateGroup)         // 更新名称/描述
		groupGroup.DELETE("/:id", groupHandler.DeleteGroup)      // 删除群组（仅管理员）
		groupGroup.PUT("/:id/avatar", groupHandler.UpdateAvatar) // 更新头像

		// 成员管理
		groupGroup.GET("/:id/members", groupHandler.ListMembers)             // 成员列表
		groupGroup.POST("/:id/members", groupHandler.AddMember)              // 添加成员
		groupGroup.DELETE("/:id/members/:userId", groupHandler.RemoveMember) // 移出成员
		groupGroup.POST("/:id/leave", groupHandler.LeaveGroup)               // 主动退群

		// 角色管理（仅管理员）
		groupGroup.POST("/:id/moderators/:userId", groupHandler.PromoteModerator)  // 晋升版主
		groupGroup.DELETE("/:id/moderators/:userId", groupHandler.DemoteModerator) // 撤销版主

		// 个人可见性（仅私聊）
		groupGroup.POST("/:id/hide", visibilityHandler.HideGroup)              // 隐藏会话
		groupGroup.POST("/:id/show", visibilityHandler.ShowGroup)              // 取消隐藏
		groupGroup.POST("/:id/history/clear", visibilityHandler.DeleteHistory) // 清除个人历史

		// 通知开关
		groupGroup.PUT("/:id/notifications", visibilityHandler.ToggleNotifications)

		// 消息（发送带按用户限流）
		groupGroup.POST("/:id/messages",
			middlewares.UserRateLimitMiddleware(userLimiter, 30, time.Minute),
			messageHandler.SendMessage) // 发送消息
		groupGroup.GET("/:id/messages", messageHandler.GetMessages) // 获取消息列表
	}
}

// RegisterMessageRoutes 消息级接口
func RegisterMessageRoutes(r *gin.Engine, messageHandler *handlers.MessageHandler) {
	messageGroup := r.Group("/api/v1/messages")
	messageGroup.Use(middlewares.AuthMiddleware())
	{
		messageGroup.DELETE("/:id", messageHandler.DeleteMessage) // 删除消息
	}
}
