package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/DigitalShoestringSolutions/LocationTracking/internal/cache"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/client"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/config"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/consumer"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/filter"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/logger"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/models"
	mqttclient "github.com/DigitalShoestringSolutions/LocationTracking/internal/mqtt"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/service"
	"github.com/DigitalShoestringSolutions/LocationTracking/internal/state"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "shoestring-location-dashboard")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting shoestring-location-dashboard service")

	// 偏好存储（Redis）
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	settings := filter.NewSettingsStore(
		filter.NewRedisKVStore(redisClient, "dashboard:"),
		filter.Defaults{
			ItemTypeTags:     cfg.Items.Defaults,
			LocationTypeTags: cfg.Locations.Defaults,
			PageSize:         10,
		},
		log,
	)

	// REST 协作服务客户端与身份缓存
	apiClient := client.NewClient(cfg, log)
	identityCache := cache.NewIdentityCache(func(ctx context.Context, id string) (*models.IdentityRecord, error) {
		return apiClient.GetItem(ctx, id)
	}, log)

	// 状态仓库
	store := state.NewStore(state.State{}, log)

	// MQTT 客户端：连接状态直接进入状态仓库
	mqttClient, err := mqttclient.NewClient(mqttclient.Options{
		BrokerURL: cfg.MQTT.BrokerURL(),
	}, func(connected bool) {
		store.Dispatch(state.MQTTStatus{Connected: connected})
		if connected {
			identityCache.Clear()
		}
	}, log)
	if err != nil {
		log.Fatal("Failed to connect to MQTT broker", zap.Error(err))
	}
	defer mqttClient.Disconnect()

	dashboard := service.NewDashboard(store, apiClient, apiClient, identityCache, settings, cfg.Locations.Tag, log)

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动事件消费者（在 goroutine 中）
	eventConsumer := consumer.NewEventConsumer(mqttClient, store, cfg.MQTT.Prefix, log)
	errChan := make(chan error, 1)
	go func() {
		if err := eventConsumer.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	// 初始快照：订阅建立后加载，消除订阅空窗
	loadCtx, loadCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := dashboard.LoadSnapshot(loadCtx, ""); err != nil {
		log.Error("Initial snapshot load failed", zap.Error(err))
	}
	loadCancel()

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// 等待信号或错误
	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	case err := <-errChan:
		log.Error("Service error", zap.Error(err))
		cancel()
	}

	// 停止消费者
	if err := eventConsumer.Stop(); err != nil {
		log.Error("Error stopping event consumer", zap.Error(err))
	}

	log.Info("Service stopped")
}
