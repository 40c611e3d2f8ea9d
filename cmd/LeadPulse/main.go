package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	https_server "LeadPulse/api/http"
	"LeadPulse/internal/config"
	"LeadPulse/internal/initial"
	"LeadPulse/internal/modules/notification/infrastructure/mq"
	"LeadPulse/internal/modules/notification/infrastructure/mq/kafka"
	"LeadPulse/internal/modules/notification/interface/event"
	"LeadPulse/internal/modules/realtime/infrastructure/relay"
	"LeadPulse/pkg/redis"
	"LeadPulse/pkg/stream"
	"LeadPulse/pkg/zlog"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置与日志
	conf := config.GetConfig()
	zlog.Init(conf.LogConfig.LogPath, conf.LogConfig.Level)
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 存储
	db, err := initial.InitGorm(conf)
	if err != nil {
		zlog.Fatal("mysql init failed", zap.Error(err))
	}

	// 3. 连接表与广播
	registry := stream.NewRegistry(stream.WithHeartbeatInterval(conf.RealtimeConfig.HeartbeatInterval()))
	if err := registry.Start(); err != nil {
		zlog.Fatal("stream registry start failed", zap.Error(err))
	}

	var pub stream.Publisher = registry
	var health func(context.Context) error
	if initial.InitRedis(conf) {
		rl := relay.New(conf.RealtimeConfig.RelayChannel)
		pub = rl
		health = redis.Ping
		go func() {
			if err := rl.Run(ctx, registry); err != nil && !errors.Is(err, context.Canceled) {
				zlog.Error("broadcast relay stopped", zap.Error(err))
			}
		}()
	}
	dispatcher := stream.NewDispatcher(pub,
		stream.WithAttempts(conf.RealtimeConfig.BroadcastAttempts),
		stream.WithRetryDelay(conf.RealtimeConfig.BroadcastRetryDelay()),
	)
	svcs := https_server.NewServices(db, dispatcher)

	// 4. 线索事件：Kafka 未配置时只保留 HTTP 写入
	var (
		leadPub  mq.Publisher
		consumer mq.Consumer
	)
	if kc := conf.KafkaConfig; len(kc.Brokers) > 0 {
		if err := kafka.EnsureTopic(kafka.TopicAdminConfig{Brokers: kc.Brokers, ClientID: kc.ClientID}, kc.LeadTopic, kc.Partitions, kc.Replication); err != nil {
			zlog.Warn("ensure lead topic failed", zap.String("topic", kc.LeadTopic), zap.Error(err))
		}
		if leadPub, err = kafka.NewPublisher(kafka.PublisherConfig{Brokers: kc.Brokers, ClientID: kc.ClientID}); err != nil {
			zlog.Fatal("kafka publisher init failed", zap.Error(err))
		}
		consumer, err = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:  kc.Brokers,
			GroupID:  kc.ConsumerGroupID,
			Topics:   []string{kc.LeadTopic},
			ClientID: kc.ClientID,
		})
		if err != nil {
			zlog.Fatal("kafka consumer init failed", zap.Error(err))
		}
		handler := event.NewLeadEventHandler(svcs.Notifications, conf.RealtimeConfig.DedupTTL())
		go func() {
			if err := consumer.Run(ctx, handler); err != nil {
				zlog.Error("lead event consumer stopped", zap.Error(err))
			}
		}()
	}

	// 5. 启动 HTTP 服务
	engine := https_server.NewEngine(https_server.Deps{
		Conf:          conf,
		DB:            db,
		Registry:      registry,
		LeadPublisher: leadPub,
		Health:        health,
	}, svcs)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.MainConfig.Host, conf.MainConfig.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zlog.Info("服务器正在启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("服务器启动失败", zap.Error(err))
		}
	}()

	// 6. 优雅关闭：先断开长连接，否则 Shutdown 会一直等它们
	<-ctx.Done()
	zlog.Info("正在关闭服务器...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warn("http shutdown", zap.Error(err))
	}
	dispatcher.Wait()
	if consumer != nil {
		_ = consumer.Close()
	}
	if leadPub != nil {
		_ = leadPub.Close()
	}
	_ = redis.Close()
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	zlog.Info("服务器已关闭")
}
