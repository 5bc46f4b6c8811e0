package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atelier-api/internal/application/delivery"
	"github.com/atelier-api/internal/application/events"
	"github.com/atelier-api/internal/application/media"
	"github.com/atelier-api/internal/config"
	"github.com/atelier-api/internal/infrastructure/broker"
	cloudinaryinfra "github.com/atelier-api/internal/infrastructure/cloudinary"
	"github.com/atelier-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/atelier-api/internal/infrastructure/jwt"
	"github.com/atelier-api/internal/infrastructure/memory"
	"github.com/atelier-api/internal/infrastructure/mongostore"
	"github.com/atelier-api/internal/infrastructure/redisq"
	s3infra "github.com/atelier-api/internal/infrastructure/s3"
	"github.com/atelier-api/internal/infrastructure/smtp"
	"github.com/atelier-api/internal/infrastructure/sns"
	"github.com/atelier-api/internal/pkg/logging"
	transporthttp "github.com/atelier-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}
	cfg := config.Load()
	slog.SetDefault(logging.New(cfg.LogLevel))

	if err := run(cfg); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := &transporthttp.Deps{}
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	closeStore, err := wireStore(ctx, cfg, deps)
	if err != nil {
		return err
	}
	closers = append(closers, closeStore)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}
	deps.JWTProvider = jwtProvider

	if deps.Media, err = wireMedia(ctx, cfg); err != nil {
		return err
	}

	sender, err := newSender(ctx, cfg)
	if err != nil {
		return err
	}
	deps.Dispatcher = sender
	if cfg.RedisURL != "" {
		rdb, err := redisq.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		closers = append(closers, func() { rdb.Close() })
		deps.Dispatcher = redisq.NewQueue(rdb, redisq.DefaultQueueKey)
		deps.AttemptLimiter = redisq.NewAttemptLimiter(rdb, cfg.VerifyAttemptsPerWindow, cfg.VerifyAttemptWindow)
		go redisq.NewWorker(rdb, redisq.DefaultQueueKey, sender, slog.Default()).Run(ctx)
		slog.Info("otp delivery queued through redis")
	}

	deps.Publisher = events.NewLogPublisher(slog.Default())
	if len(cfg.KafkaBrokers) > 0 {
		pub, err := broker.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return err
		}
		closers = append(closers, func() { pub.Close() })
		deps.Publisher = pub
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      transporthttp.NewRouter(cfg, deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}

// wireStore fills the repository fields of deps for the configured backend.
func wireStore(ctx context.Context, cfg *config.Config, deps *transporthttp.Deps) (func(), error) {
	switch cfg.StoreBackend {
	case "dynamo":
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)
		deps.AccountRepo = dynamo.NewAccountRepo(client, cfg.DynamoTables.Accounts)
		deps.PendingRepo = dynamo.NewPendingRepo(client, cfg.DynamoTables.PendingIdentities)
		deps.ChallengeRepo = dynamo.NewChallengeRepo(client, cfg.DynamoTables.OtpChallenges)
		deps.Registrar = dynamo.NewRegistrar(client, cfg.DynamoTables)
		return func() {}, nil
	case "mongo":
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		store := mongostore.NewStore(client, cfg.MongoDatabase)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		deps.AccountRepo = store.Accounts()
		deps.PendingRepo = store.Pending()
		deps.ChallengeRepo = store.Challenges()
		deps.Registrar = store.Registrar()
		return func() { _ = client.Disconnect(context.Background()) }, nil
	case "memory":
		slog.Warn("using in-memory store; data is lost on restart")
		store := memory.NewStore()
		deps.AccountRepo = store.Accounts()
		deps.PendingRepo = store.Pending()
		deps.ChallengeRepo = store.Challenges()
		deps.Registrar = store
		return func() {}, nil
	}
	return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
}

// wireMedia stages uploads in S3 and finalizes them in S3 or on Cloudinary.
// MEDIA_BACKEND=none disables profile pictures.
func wireMedia(ctx context.Context, cfg *config.Config) (transporthttp.MediaService, error) {
	if cfg.MediaBackend == "none" {
		return nil, nil
	}
	client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := s3infra.NewStore(client, cfg.S3BucketName)

	switch cfg.MediaBackend {
	case "s3":
		return media.NewService(store, nil), nil
	case "cloudinary":
		uploader, err := cloudinaryinfra.NewUploader(cfg.CloudinaryURL, cfg.CloudinaryFolder)
		if err != nil {
			return nil, err
		}
		return media.NewService(store, uploader), nil
	}
	return nil, fmt.Errorf("unknown MEDIA_BACKEND %q", cfg.MediaBackend)
}

func newSender(ctx context.Context, cfg *config.Config) (*delivery.Sender, error) {
	sms, err := sns.NewSender(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sns sender: %w", err)
	}
	return delivery.NewSender(smtp.NewMailer(cfg), sms), nil
}
