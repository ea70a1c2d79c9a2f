package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/evsong/Evclaude-proxy/internal/api"
	"github.com/evsong/Evclaude-proxy/internal/config"
	"github.com/evsong/Evclaude-proxy/internal/core"
	"github.com/evsong/Evclaude-proxy/internal/logger"
	"github.com/evsong/Evclaude-proxy/internal/model"
	"github.com/evsong/Evclaude-proxy/internal/store"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	// .env 可选，凭证类配置优先从环境读取
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger.Setup(logger.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	logrus.Infof("Config loaded from %s", *configPath)

	// 三份独立 JSON 文档：统计、预设、密钥
	statsFile, err := store.NewJSONFile(filepath.Join(cfg.Data.Dir, "stats.json"))
	if err != nil {
		logrus.Fatalf("Failed to init stats file: %v", err)
	}
	presetsFile, err := store.NewJSONFile(filepath.Join(cfg.Data.Dir, "presets.json"))
	if err != nil {
		logrus.Fatalf("Failed to init presets file: %v", err)
	}
	keysFile, err := store.NewJSONFile(filepath.Join(cfg.Data.Dir, "keys.json"))
	if err != nil {
		logrus.Fatalf("Failed to init keys file: %v", err)
	}

	// 请求审计日志库
	logStore, err := store.New(cfg.Data.DBPath)
	if err != nil {
		logrus.Fatalf("Failed to init database: %v", err)
	}
	defer logStore.Close()
	logrus.Infof("Database initialized at %s", cfg.Data.DBPath)

	// 统计聚合器，加载时做跨天清零
	stats, err := core.NewStats(statsFile, time.Duration(cfg.Data.SaveDebounceSeconds)*time.Second)
	if err != nil {
		logrus.Fatalf("Failed to load stats: %v", err)
	}

	// 客户端密钥，首次启动写入配置里的种子密钥
	seeds := make([]model.APIKeyRecord, 0, len(cfg.Auth.SeedKeys))
	for i, sk := range cfg.Auth.SeedKeys {
		seeds = append(seeds, model.APIKeyRecord{
			ID:        fmt.Sprintf("key_seed_%d", i),
			Name:      sk.Name,
			Key:       sk.Key,
			Enabled:   true,
			CreatedAt: time.Now(),
		})
	}
	keys, err := core.NewKeyStore(keysFile, seeds)
	if err != nil {
		logrus.Fatalf("Failed to load keys: %v", err)
	}

	// 预设规则，首次启动写入种子规则
	presets, err := core.NewPresetStore(presetsFile, cfg.Preset.Seed)
	if err != nil {
		logrus.Fatalf("Failed to load presets: %v", err)
	}
	logrus.Infof("Loaded %d presets, %d api keys", presets.Count(), len(keys.List()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// presets.json 被外部修改时热加载
	if err := core.WatchPresets(ctx, presets); err != nil {
		logrus.Warnf("Preset watcher disabled: %v", err)
	}

	// 每天清理一次过期审计日志
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := logStore.CleanOldLogs(cfg.Data.RetentionDays); err != nil {
					logrus.Warnf("Clean old logs failed: %v", err)
				} else if n > 0 {
					logrus.Infof("Cleaned %d old request logs", n)
				}
			}
		}
	}()

	proxyHandler := api.NewProxyHandler(cfg, presets, stats, logStore)
	adminHandler := api.NewAdminHandler(stats, keys, presets, logStore)

	r := api.SetupRouter(cfg, proxyHandler, adminHandler, keys, stats)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	srvErr := make(chan error, 1)
	go func() {
		logrus.Infof("Evclaude proxy starting on %s, upstream %s", addr, cfg.Upstream.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case err := <-srvErr:
		if err != nil {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	case <-ctx.Done():
		logrus.Info("Shutdown signal received, draining connections...")
	}

	// 给在途请求 15 秒的时间完成
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("HTTP server shutdown error: %v", err)
	}

	// 退出前把防抖窗口内的统计落盘
	stats.Flush()

	logrus.Info("Server stopped gracefully")
}
