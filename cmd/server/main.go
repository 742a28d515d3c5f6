package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"chatvault/internal/app"
	"chatvault/internal/config"
	"chatvault/internal/cryptox"
	"chatvault/internal/server"
	"chatvault/internal/storage"
	"chatvault/internal/util"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	var cipher *cryptox.Cipher
	if cfg.MessageKeyFile != "" {
		cipher, err = cryptox.NewFromKeyFile(cfg.MessageKeyFile)
	} else {
		cipher, err = cryptox.New()
	}
	if err != nil {
		log.Fatalf("failed to init message cipher: %v", err)
	}
	if cfg.MessageKeyFile == "" {
		slog.Warn("message key is ephemeral; stored messages become unreadable after restart (set messageKeyFile to persist)")
	}

	var avatars storage.AvatarStore
	uploadsDir := ""
	if cfg.MinioEndpoint != "" {
		avatars, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init minio avatar store: %v", err)
		}
	} else {
		fileStore, err := storage.NewFileStore(cfg.UploadDir)
		if err != nil {
			log.Fatalf("failed to init avatar file store: %v", err)
		}
		avatars = fileStore
		uploadsDir = fileStore.Dir()
	}

	if cfg.RedisAddr == "" {
		slog.Warn("redisAddr not set; sessions are kept in-process and lost on restart")
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		Cipher:        cipher,
		Avatars:       avatars,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	httpServer := server.New(server.Config{
		App:        appCore,
		UploadsDir: uploadsDir,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("chat server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
