package main

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/ProNet/config"
	"github.com/Gopher0727/ProNet/internal/consumer"
	"github.com/Gopher0727/ProNet/internal/handlers"
	"github.com/Gopher0727/ProNet/internal/repositories"
	"github.com/Gopher0727/ProNet/internal/routers"
	"github.com/Gopher0727/ProNet/internal/services"
	"github.com/Gopher0727/ProNet/internal/storage"
	internalutils "github.com/Gopher0727/ProNet/internal/utils"
	logger "github.com/Gopher0727/ProNet/middleware/log"
	"github.com/Gopher0727/ProNet/pkg/middlewares"
	"github.com/Gopher0727/ProNet/pkg/mq"
	"github.com/Gopher0727/ProNet/pkg/utils"
	"github.com/Gopher0727/ProNet/pkg/ws"
	"github.com/Gopher0727/ProNet/utils/ratelimit"
	"github.com/Gopher0727/ProNet/utils/snowflake"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	// 初始化结构化日志
	zlog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer zlog.Close()
	zlog.Info("配置加载完成")

	// JWT 密钥来自配置
	if cfg.JWT.Secret != "" {
		utils.SetJWTSecret(cfg.JWT.Secret)
	}

	// 初始化全局限流器
	middlewares.InitGlobalLimiter(cfg.RateLimit.Burst, cfg.RateLimit.QPS)

	// 初始化全局 Worker Pool (协程池)
	// 用于异步处理请求，防止高并发下 Goroutine 暴涨
	internalutils.InitGlobalWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)

	// 初始化 PostgreSQL
	dsn := storage.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	postgres, err := storage.InitPostgres(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
	if err != nil {
		log.Fatalf("postgres 初始化失败: %v", err)
	}

	// 初始化 Redis
	redisClient, err := storage.InitRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
	if err != nil {
		log.Fatalf("redis 初始化失败: %v", err)
	}

	// 初始化 Snowflake ID 生成器（消息ID）
	idGen, err := snowflake.NewGenerator(snowflake.Config{
		DatacenterID: cfg.Snowflake.DatacenterID,
		WorkerID:     cfg.Snowflake.WorkerID,
	})
	if err != nil {
		log.Fatalf("snowflake 初始化失败: %v", err)
	}

	// 初始化仓储层
	userRepo := repositories.NewUserRepository(postgres)
	groupRepo := repositories.NewGroupRepository(postgres)
	messageRepo := repositories.NewMessageRepository(postgres)

	// 初始化一致性哈希环（用于分布式路由）
	ring := utils.NewHashRing(128)
	for node, weight := range cfg.Gateway.Nodes {
		ring.Add(node, weight)
	}

	// 初始化 WebSocket Hub（注入哈希环与当前节点ID）
	hub := ws.NewHub(redisClient, ring, cfg.Gateway.NodeID)
	go hub.Run()

	// 初始化服务层
	// 实时广播经 Notifier 做尽力而为的扇出，由 Hub 承接
	notifier := services.NewNotifier(hub)
	emitter := services.NewSystemMessageEmitter(userRepo, messageRepo, idGen)

	authService := services.NewAuthService(userRepo)
	groupService := services.NewGroupService(groupRepo, userRepo, emitter, notifier)
	visibilityService := services.NewVisibilityService(groupRepo, messageRepo)
	messageService := services.NewMessageService(messageRepo, groupRepo, userRepo, idGen, notifier)

	// 初始化 Kafka Producer
	kafkaProducer, err := mq.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		log.Printf("Kafka 生产者初始化失败: %v。系统将以降级模式运行（直接写入数据库）。", err)
		kafkaProducer = nil
	} else {
		defer kafkaProducer.Close()
	}

	// 初始化 Kafka Consumer (如果 Kafka 可用)
	if kafkaProducer != nil {
		msgConsumer := consumer.NewMessageConsumer(messageService)
		consumer.StartConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, msgConsumer)
	}

	// 按用户限流器（分布式计数窗口，Redis 故障时放行）
	userLimiter := ratelimit.NewTokenBucketLimiter(redisClient, zlog.Logger, true)

	// 初始化处理器
	authHandler := handlers.NewAuthHandler(authService)
	groupHandler := handlers.NewGroupHandler(groupService, visibilityService)
	visibilityHandler := handlers.NewVisibilityHandler(visibilityService)
	messageHandler := handlers.NewMessageHandler(messageService)

	// 配置并创建 Gin 引擎
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()

	// 设置路由
	routers.SetupRoutes(r,
		cfg,
		authHandler,
		groupHandler,
		visibilityHandler,
		messageHandler,
		hub,
		messageService,
		kafkaProducer,
		userLimiter,
	)

	// 启动服务器
	log.Printf("正在启动服务器，监听端口 :%d\n", cfg.Server.Port)
	if err := r.Run(":" + strconv.FormatInt(int64(cfg.Server.Port), 10)); err != nil {
		log.Fatalf("启动服务器失败: %v", err)
	}
}
