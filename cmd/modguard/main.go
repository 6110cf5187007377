package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modguard/internal/bot"
	"modguard/internal/config"
	"modguard/internal/ledger"
	"modguard/internal/modules/audit"
	"modguard/internal/persist"
	"modguard/internal/scheduler"
	"modguard/internal/storage"
	"modguard/internal/store"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	history, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer history.Close()
	if err := history.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	guilds, err := store.New(persist.NewFile(cfg.GuildConfigPath()))
	if err != nil {
		logger.Fatal("guild config load failed", zap.Error(err))
	}
	sanctions, err := ledger.New(persist.NewFile(cfg.MutesPath()), persist.NewFile(cfg.BansPath()))
	if err != nil {
		logger.Fatal("sanction ledger load failed", zap.Error(err))
	}

	auditLogger := audit.NewLogger(history, logger)
	sched := scheduler.New()

	botSvc, err := bot.New(cfg, logger, guilds, sanctions, sched, auditLogger, history)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	var server *http.Server
	if cfg.Health.Enabled {
		server = &http.Server{Addr: cfg.Health.Addr}
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
