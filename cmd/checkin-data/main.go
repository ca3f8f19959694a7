package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GreaLake/checkIn/common/database"
	logpkg "github.com/GreaLake/checkIn/common/logger"
	mqttcommon "github.com/GreaLake/checkIn/common/mqtt"
	rediscommon "github.com/GreaLake/checkIn/common/redis"
	"github.com/GreaLake/checkIn/internal/config"
	httpapi "github.com/GreaLake/checkIn/internal/http"
	"github.com/GreaLake/checkIn/internal/location"
	"github.com/GreaLake/checkIn/internal/repository"
	"github.com/GreaLake/checkIn/internal/service"
	"github.com/GreaLake/checkIn/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const serviceName = "checkin-data"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	tz, _ := cfg.TimeLocation()

	// 存储：数据库不可用时退回内存（联调用，重启后数据丢失）
	var (
		db       *sql.DB
		entries  repository.EntriesRepository
		projects repository.ProjectsRepository
		workers  repository.WorkersRepository
	)
	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			logger.Info("DB enabled for checkin-data")
		} else {
			logger.Warn("DB enabled but connection failed, falling back to memory store", zap.Error(err))
		}
	}
	if db != nil {
		entries = repository.NewPostgresEntriesRepository(db)
		projects = repository.NewPostgresProjectsRepository(db)
		workers = repository.NewPostgresWorkersRepository(db)
	} else {
		entries = repository.NewMemoryEntriesRepo()
		projects = repository.NewMemoryProjectsRepo()
		workers = repository.NewMemoryWorkersRepo()
	}

	// Redis：缓存 + 事件 stream，可选
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		c, err := rediscommon.Connect(context.Background(), &cfg.Redis.RedisConfig, 3*time.Second)
		if err == nil {
			redisClient = c
		} else {
			logger.Warn("Redis unavailable, cache and event stream disabled", zap.Error(err))
		}
	}

	// MQTT：位置上报 + 事件发布，可选
	var mqttClient *mqttcommon.Client
	if cfg.MQTT.Enabled {
		c, err := mqttcommon.NewClient(&cfg.MQTT.MQTTConfig, logger)
		if err == nil {
			mqttClient = c
		} else {
			logger.Warn("MQTT unavailable, position feed and event publish disabled", zap.String("broker", cfg.MQTT.Broker), zap.Error(err))
		}
	}

	// 定位源：外部定位服务优先，其次 MQTT 位置上报
	var source location.Source
	switch {
	case cfg.Location.HTTPSourceURL != "":
		source = location.NewHTTPSource(cfg.Location.HTTPSourceURL, logger)
	case mqttClient != nil:
		feed := location.NewFeedSource(cfg.Location.FeedAccuracyMeters, logger)
		if err := mqttClient.Subscribe(cfg.MQTT.PositionTopic, cfg.MQTT.QoS, feed.Ingest); err != nil {
			logger.Warn("Failed to subscribe position topic", zap.String("topic", cfg.MQTT.PositionTopic), zap.Error(err))
		} else {
			source = feed
		}
	}
	if source == nil {
		logger.Info("No location source configured, server-side location disabled")
	}
	probe := location.NewProbe(source, cfg.Location.Config, logger)

	var publishers service.MultiPublisher
	tracker := service.NewSessionTracker(entries, projects, workers, logger)
	tracker.SetProbe(probe)
	approval := service.NewApprovalService(entries, logger)
	attendance := service.NewAttendanceService(entries, projects, tz, logger)

	if redisClient != nil {
		kv := store.NewRedisKV(redisClient)
		openCache := store.NewOpenEntriesCache(kv, cfg.Redis.OpenEntriesTTL)
		if db == nil {
			// 内存存储每次启动都是空的，旧快照不再可信
			if n, err := openCache.Purge(context.Background()); err != nil {
				logger.Warn("Failed to purge open entries cache", zap.Error(err))
			} else if n > 0 {
				logger.Info("Purged stale open entries cache", zap.Int("keys", n))
			}
		}
		tracker.SetCache(openCache)
		attendance.SetProjectsCache(store.NewProjectsCache(kv, cfg.Redis.ProjectsTTL))
		publishers = append(publishers, service.NewStreamPublisher(redisClient, cfg.Redis.EventStream, cfg.Redis.EventStreamMaxLen))
	}
	if mqttClient != nil {
		publishers = append(publishers, service.NewMQTTPublisher(mqttClient, cfg.MQTT.EventPrefix, cfg.MQTT.QoS))
	}
	if len(publishers) > 0 {
		tracker.SetEvents(publishers)
		approval.SetEvents(publishers)
	}

	router := httpapi.NewRouter(logger)
	router.RegisterHealthRoutes(serviceName)
	router.RegisterCheckinRoutes(httpapi.NewCheckinHandler(tracker, probe, tz, logger))
	router.RegisterApprovalRoutes(httpapi.NewApprovalHandler(approval, logger))
	router.RegisterAttendanceRoutes(httpapi.NewAttendanceHandler(attendance, logger))

	srv := service.NewServer(cfg.HTTP.Addr, router.WithRequestLog(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		cancel()
	case err := <-errCh:
		logger.Error("HTTP server stopped", zap.Error(err))
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	probe.Close()
	if mqttClient != nil {
		mqttClient.Disconnect()
	}
	if redisClient != nil {
		_ = rediscommon.Close(redisClient)
	}
	_ = database.Close(db)
}
