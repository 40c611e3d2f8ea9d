package http

import (
	"context"

	"LeadPulse/internal/config"
	jwtMiddleware "LeadPulse/internal/middleware/jwt"
	"LeadPulse/internal/middleware/membership"
	notificationService "LeadPulse/internal/modules/notification/application/service"
	"LeadPulse/internal/modules/notification/infrastructure/mq"
	notificationPersistence "LeadPulse/internal/modules/notification/infrastructure/persistence"
	notificationHandler "LeadPulse/internal/modules/notification/interface/http"
	realtimeService "LeadPulse/internal/modules/realtime/application/service"
	streamHandler "LeadPulse/internal/modules/realtime/interface/http"
	workspacePersistence "LeadPulse/internal/modules/workspace/infrastructure/persistence"
	"LeadPulse/pkg/ssl"
	"LeadPulse/pkg/stream"
	"LeadPulse/pkg/zlog"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps 路由依赖。LeadPublisher 为空时不注册 lead-events 入口；Health 非空时 /healthz 会调用它
type Deps struct {
	Conf          *config.Config
	DB            *gorm.DB
	Registry      *stream.Registry
	LeadPublisher mq.Publisher
	Health        func(ctx context.Context) error
}

// Services 供 HTTP 与 Kafka 消费者共用
type Services struct {
	Notifications notificationService.NotificationService
	ReadStatus    notificationService.ReadStatusService
}

func NewServices(db *gorm.DB, broadcaster notificationService.Broadcaster) Services {
	return Services{
		Notifications: notificationService.NewNotificationService(notificationPersistence.NewNotificationRepository(db), broadcaster),
		ReadStatus:    notificationService.NewReadStatusService(notificationPersistence.NewReadStatusRepository(db)),
	}
}

func NewEngine(deps Deps, svcs Services) *gin.Engine {
	conf := deps.Conf
	ge := gin.Default()
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	ge.Use(cors.New(corsConfig))
	if conf.MainConfig.TLS {
		ge.Use(ssl.TlsHandler(conf.MainConfig.Host, conf.MainConfig.Port))
	}

	memberRepo := workspacePersistence.NewWorkspaceMemberRepository(deps.DB)
	identitySvc := realtimeService.NewIdentityService(conf.JwtConfig.Key, memberRepo)

	notificationH := notificationHandler.NewNotificationHandler(svcs.Notifications)
	readStatusH := notificationHandler.NewReadStatusHandler(svcs.ReadStatus)
	streamH := streamHandler.NewStreamHandler(identitySvc, deps.Registry, conf.RealtimeConfig.SendBuffer, conf.RealtimeConfig.HeartbeatInterval())

	ge.GET("/healthz", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				zlog.Warn("health check failed", zap.Error(err))
				c.JSON(503, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := ge.Group("/api/v1")
	// 长连接自行鉴权：EventSource 不能设置 Authorization 头，需要支持 cookie 与 query
	v1.GET("/workspaces/:workspaceId/stream", streamH.Connect)
	v1.GET("/workspaces/:workspaceId/ws", streamH.ConnectWS)

	authed := v1.Group("")
	authed.Use(jwtMiddleware.AuthWithKey(conf.JwtConfig.Key))
	authed.GET("/auth/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"uuid":     c.GetString("uuid"),
			"username": c.GetString("username"),
		})
	})

	ws := authed.Group("/workspaces/:workspaceId")
	ws.Use(membership.RequireMember(memberRepo))
	ws.GET("/notifications", notificationH.ListSnapshot)
	ws.POST("/notifications", notificationH.Create)
	ws.GET("/notifications/:notificationId", notificationH.Get)
	ws.POST("/events", notificationH.PublishEvent)
	if deps.LeadPublisher != nil {
		leadH := notificationHandler.NewLeadEventHandler(notificationService.NewLeadEventService(deps.LeadPublisher, conf.KafkaConfig.LeadTopic))
		ws.POST("/lead-events", leadH.Enqueue)
	}

	rs := authed.Group("/read-status")
	rs.POST("/lookup", readStatusH.Lookup)
	rs.POST("/batch", readStatusH.BatchInsert)
	rs.PUT("/batch", readStatusH.BatchUpdate)
	rs.POST("/read-all", readStatusH.MarkAllRead)
	rs.GET("/:notificationId", readStatusH.Get)
	rs.POST("/:notificationId/read", readStatusH.MarkRead)

	return ge
}
