package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"studentsphere/internal/chat"
	"studentsphere/internal/classchat"
	"studentsphere/internal/config"
	"studentsphere/internal/content"
	"studentsphere/internal/directory"
	"studentsphere/internal/live"
	"studentsphere/internal/server"
	"studentsphere/internal/util"
	"studentsphere/internal/watch"
	"studentsphere/pkg/session"
	"studentsphere/pkg/storage"
	"studentsphere/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}
	pollInterval, err := config.ParsePollInterval(cfg.PollInterval)
	if err != nil {
		log.Fatalf("failed to parse poll interval: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	kv, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	var archive storage.ObjectStore
	if cfg.ArchiveEndpoint != "" {
		archive, err = storage.NewMinioArchive(storage.MinioConfig{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			UseSSL:    cfg.ArchiveUseSSL,
		})
		if err != nil {
			log.Fatalf("failed to init archive: %v", err)
		}
	}

	sessions, err := session.NewManager(cfg.SessionSecret, sessionTTL, session.NewKVRevoker(kv))
	if err != nil {
		log.Fatalf("failed to init sessions: %v", err)
	}

	dir := directory.New(kv)
	feed := watch.New(kv, pollInterval)

	httpServer := server.New(server.Config{
		Directory: dir,
		Content: content.New(content.Config{
			KV:               kv,
			InlineLimitBytes: cfg.InlineLimitBytes,
			Archive:          archive,
		}),
		Chat:       chat.New(kv, cfg.InlineLimitBytes),
		ClassChat:  classchat.New(kv, dir, cfg.InlineLimitBytes),
		Live:       live.New(kv, cfg.ConferenceNamespace, cfg.ConferenceDomain),
		Feed:       feed,
		Sessions:   sessions,
		CORSOrigin: cfg.CORSOrigin,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("change feed stopped", "err", err)
		}
	}()

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("portal listening", "addr", addr, "backend", cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}

func openStore(cfg config.FileConfig) (store.KV, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		return store.NewRedisKV(cfg.RedisAddr, cfg.RedisPassword), nil
	case config.BackendPostgres:
		return store.NewGormKV(cfg.DatabaseURL)
	default:
		return store.NewMemoryKV(), nil
	}
}
