package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"filevault/config"
	"filevault/internal/application/ports"
	"filevault/internal/application/services"
	"filevault/internal/client/cli"
	"filevault/internal/infrastructure/clipboard"
	"filevault/internal/infrastructure/identity"
	"filevault/internal/infrastructure/s3"
)

func main() {
	ctx := context.Background()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("cannot initialize zap logger: %v", err)
	}
	defer logger.Sync()

	if err = godotenv.Load(".env"); err != nil {
		logger.Warn("no .env file loaded", zap.Error(err))
	}
	cfg := config.Load()
	if err = cfg.ValidateS3(); err != nil {
		logger.Fatal("S3 config error", zap.Error(err))
	}

	store, err := s3.New(ctx, logger, cfg.S3)
	if err != nil {
		logger.Fatal("failed to connect to object store", zap.Error(err))
	}

	provider, err := identity.NewProvider(logger)
	if err != nil {
		logger.Fatal("failed to init identity provider", zap.Error(err))
	}
	if cfg.Auth.PublicKeyFile != "" {
		if err = provider.ExportPublicKey(cfg.Auth.PublicKeyFile); err != nil {
			logger.Fatal("failed to export identity public key", zap.Error(err))
		}
		logger.Info("identity public key exported", zap.String("path", cfg.Auth.PublicKeyFile))
	} else {
		logger.Warn("AUTH_PUBLIC_KEY_FILE not set; the backend cannot verify tokens from this session")
	}

	var clip ports.Clipboard
	clip, err = clipboard.NewSystem()
	if err != nil {
		logger.Warn("clipboard unavailable, share links will be printed instead")
		clip = clipboard.Unavailable{}
	}

	authSession := services.NewAuthSession(provider)
	fileSession := services.NewFileManagerSession(store, clip, logger)

	apiBase := "http://" + cfg.App.Host + ":" + cfg.App.Port
	app := cli.NewApp(logger, authSession, fileSession, apiBase)

	if err = app.Run(ctx); err != nil {
		logger.Error("client stopped with error", zap.Error(err))
		os.Exit(1)
	}
}
