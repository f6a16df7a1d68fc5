package main

import (
	"PresetHub/internal/auth"
	"PresetHub/internal/config"
	"PresetHub/internal/gateway"
	"PresetHub/internal/handlers"
	"PresetHub/internal/mailer"
	"PresetHub/internal/middleware"
	"PresetHub/internal/repo"
	"PresetHub/internal/service"
	"PresetHub/internal/storage"
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const (
	shutdownTimeout = 10 * time.Second
	purgeInterval   = 10 * time.Minute
)

func main() {
	cfg := config.NewConfig()

	// создаём регистратор zap: JSON в production, читаемый вывод при разработке
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.IsProduction() {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}

	// делаем регистратор SugaredLogger
	sugar := logger.Sugar()
	middleware.SetLogger(sugar) // передаём логгер в middleware
	//сброс буфера логгера
	defer func() {
		if err := logger.Sync(); err != nil {
			sugar.Debugw("Failed to sync logger", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	gormDB, err := repo.InitDB(cfg.DatabaseDSN)
	if err != nil {
		sugar.Fatalw("failed to initialize database", "error", err)
	}

	userRepo := repo.NewUserRepository(gormDB)
	presetRepo := repo.NewPresetRepository(gormDB)
	purchaseRepo := repo.NewPurchaseRepository(gormDB)

	presetService := service.NewPresetService(presetRepo)
	if cfg.SeedCatalog {
		n, err := presetService.Seed(ctx, service.SamplePresets())
		if err != nil {
			sugar.Fatalw("failed to seed catalog", "error", err)
		}
		if n > 0 {
			sugar.Infow("catalog seeded", "presets", n)
		}
	}

	// отзыв токенов: Redis, если задан, иначе память процесса
	var revoked auth.RevocationList
	if cfg.RedisURL != "" {
		client, err := auth.Connect(ctx, cfg.RedisURL)
		if err != nil {
			sugar.Fatalw("failed to connect to redis", "error", err)
		}
		defer client.Close()
		revoked = auth.NewRedisRevocationList(client)
	} else {
		mem := auth.NewMemoryRevocationList()
		go mem.Run(ctx, purgeInterval, sugar)
		revoked = mem
		sugar.Warnw("REDIS_URL is not set, revoked tokens are kept in process memory")
	}
	tokens := auth.NewManager(cfg.AuthSecret, auth.DefaultTTL, revoked)

	var presigner storage.Presigner
	if cfg.S3Enabled() {
		p, err := storage.NewPresigner(ctx, storage.S3Config{
			Region:       cfg.S3Region,
			BaseEndpoint: cfg.S3BaseEndpoint,
			AccessKey:    cfg.S3AccessKey,
			SecretKey:    cfg.S3SecretKey,
		})
		if err != nil {
			sugar.Fatalw("failed to configure s3 presigner", "error", err)
		}
		presigner = p
	}

	if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" {
		sugar.Warnw("Razorpay credentials are not set, checkout will fail")
	}
	gw := gateway.NewClient(gateway.Config{
		BaseURL:       cfg.RazorpayBaseURL,
		KeyID:         cfg.RazorpayKeyID,
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
		Timeout:       cfg.GatewayTimeout,
	})

	mail := mailer.NewResend(cfg.ResendAPIKey, cfg.MailFrom)
	if _, disabled := mail.(mailer.Disabled); disabled {
		sugar.Warnw("RESEND_API_KEY is not set, purchase emails are disabled")
	}

	store := service.NewEntitlementStore(presetRepo, purchaseRepo, service.Policy{
		MaxDownloads: cfg.MaxDownloads,
		LinkTTLDays:  cfg.LinkTTLDays,
	})

	h := handlers.NewHandler(handlers.Services{
		Users:   service.NewUserService(userRepo),
		Presets: presetService,
		Payments: service.NewPaymentService(store, userRepo, gw, mail, service.PaymentOptions{
			PublicURL:   cfg.ServerURL,
			MailTimeout: cfg.MailTimeout,
		}, sugar),
		Purchases: service.NewPurchaseService(store, userRepo),
		Downloads: service.NewDownloadService(store, storage.NewResolver(presigner, cfg.PresignTTL), sugar),
	}, tokens, sugar, cfg)

	srv := &http.Server{
		Addr:              cfg.BaseURL,
		Handler:           h.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sugar.Infow("Starting server",
		"addr", cfg.BaseURL,
		"public_url", cfg.ServerURL,
		"env", cfg.AppEnv,
		"redis", cfg.RedisURL != "",
		"s3", cfg.S3Enabled(),
	)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			sugar.Errorw("graceful shutdown failed", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Fatalw("Server failed", "error", err)
	}
	sugar.Infow("Server stopped")
}
