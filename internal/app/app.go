// Package app assembles the signing backend from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"trainhub/platform/signing-backend/internal/config"
	"trainhub/platform/signing-backend/internal/database"
	"trainhub/platform/signing-backend/internal/documents"
	"trainhub/platform/signing-backend/internal/evidence"
	"trainhub/platform/signing-backend/internal/notifications"
	"trainhub/platform/signing-backend/internal/signing"
	"trainhub/platform/signing-backend/pkg/idempotency"
	"trainhub/platform/signing-backend/pkg/pdf"
	"trainhub/platform/signing-backend/pkg/security"
	"trainhub/platform/signing-backend/pkg/storage"
)

const lockPrefix = "sign:submit:"

// App holds the long-lived dependencies shared by the API and the workers.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	DB       *gorm.DB
	Signing  *signing.Service
	Evidence evidence.Repository

	redis *redis.Client
}

// New connects every backend named by cfg and builds the signing service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.Connect(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: logger, DB: db}

	if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(ctx, db, logger); err != nil {
			a.Close()
			return nil, err
		}
	}

	objects, err := a.objectStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	hasher, err := security.NewHasher(cfg.Signing.EvidenceSecret)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("evidence hasher: %w", err)
	}

	guard, err := a.submissionGuard(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	mailer, err := a.mailer(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	events, err := a.publisher(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	store := signing.NewStore(db)
	a.Evidence = store.Evidence()
	a.Signing = signing.NewService(signing.Deps{
		Store:    store,
		Storage:  documents.NewStorageProvider(objects, cfg.Storage.Bucket),
		Sealer:   pdf.NewSealer(),
		Hasher:   hasher,
		Guard:    guard,
		Notifier: notifications.NewDispatcher(mailer, cfg.Signing.PublicAppURL, logger),
		Events:   events,
		Logger:   logger,
	}, signing.Options{
		LockTTL:       cfg.Redis.LockTTL,
		ReminderAfter: cfg.Workers.ReminderAfter,
		ReminderBatch: cfg.Workers.ReminderBatch,
		Zones:         cfg.Signing.SignZones,
	})
	return a, nil
}

func (a *App) objectStore(ctx context.Context) (storage.S3Client, error) {
	sc := a.Config.Storage
	if sc.Endpoint == "" && sc.Region == "" {
		a.Logger.Warn("No object storage configured, keeping documents in memory")
		return storage.NewMemoryClient(sc.PublicBaseURL), nil
	}
	client, err := storage.NewS3Client(ctx, storage.Options{
		Region:          sc.Region,
		Endpoint:        sc.Endpoint,
		AccessKeyID:     sc.AccessKeyID,
		SecretAccessKey: sc.SecretAccessKey,
		UsePathStyle:    sc.UsePathStyle,
		PublicBaseURL:   sc.PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("object storage: %w", err)
	}
	return client, nil
}

func (a *App) submissionGuard(ctx context.Context) (idempotency.Guard, error) {
	if a.Config.Redis.URL == "" {
		a.Logger.Warn("No Redis configured, submission locks are local to this process")
		return idempotency.NewMemoryGuard(), nil
	}
	client, err := idempotency.Connect(a.Config.Redis.URL)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	a.redis = client
	return idempotency.NewRedisGuard(client, lockPrefix), nil
}

func (a *App) mailer(ctx context.Context) (notifications.Mailer, error) {
	ec := a.Config.Email
	if ec.From == "" {
		a.Logger.Warn("No email sender configured, emails are logged only")
		return notifications.NewLogMailer(a.Logger), nil
	}
	awsCfg, err := loadAWS(ctx, ec.Region)
	if err != nil {
		return nil, fmt.Errorf("ses config: %w", err)
	}
	return notifications.NewSESMailer(sesv2.NewFromConfig(awsCfg), ec.From, ec.FromName, a.Logger), nil
}

func (a *App) publisher(ctx context.Context) (notifications.Publisher, error) {
	ev := a.Config.Events
	if ev.TopicARN == "" {
		return notifications.NopPublisher{}, nil
	}
	awsCfg, err := loadAWS(ctx, ev.Region)
	if err != nil {
		return nil, fmt.Errorf("sns config: %w", err)
	}
	return notifications.NewSNSPublisher(sns.NewFromConfig(awsCfg), ev.TopicARN, a.Logger), nil
}

func loadAWS(ctx context.Context, region string) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// Close releases the database pool and the Redis client.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, database.Close(a.DB))
	}
	return errors.Join(errs...)
}
