package server

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/panjf2000/ants/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"clip-orchestrator/config"
	"clip-orchestrator/constant"
	"clip-orchestrator/pkg/clipper"
	"clip-orchestrator/pkg/rabbitmq"
	"clip-orchestrator/pkg/storage"
	"clip-orchestrator/repository"
	"clip-orchestrator/service"
)

// app holds the wired collaborators shared by every command.
type app struct {
	repo       repository.OrderRepository
	intake     service.IntakeService
	completion service.CompletionService
	dispatcher service.Dispatcher
	conn       *amqp.Connection
	pool       *ants.Pool
	channel    *amqp.Channel
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	repo, err := newRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	notifier, channel, err := rabbitmq.OpenNotificationPublisher(conn, cfg.Queue.Kind, cfg.Notifications.Exchange, cfg.Notifications.RoutingKey)
	if err != nil {
		return nil, fmt.Errorf("open notification publisher: %w", err)
	}

	pool, err := ants.NewPool(cfg.Dispatch.PoolSize, ants.WithPanicHandler(func(p interface{}) {
		zerolog.Ctx(ctx).Error().Interface("panic", p).Msg("panic in dispatch pool")
	}))
	if err != nil {
		return nil, fmt.Errorf("create dispatch pool: %w", err)
	}

	templates := make(map[constant.ClipFormat]int64, len(cfg.Clipper.Templates))
	for format, id := range cfg.Clipper.Templates {
		templates[constant.ClipFormat(format)] = id
	}

	launcher := clipper.NewClient(cfg.Clipper.BaseURL, cfg.Clipper.APIKey, cfg.Clipper.LaunchTimeout)
	publicURL := cfg.MinIOPublic
	if publicURL == "" {
		publicURL = cfg.Storage.EndpointURL().String()
	}
	clipStore := storage.NewMinioClipStore(cfg.Storage, cfg.MinIOBucket, publicURL, &http.Client{})
	aggregator := service.NewAggregator(repo, notifier, cfg.App.BaseURL())

	return &app{
		repo:   repo,
		intake: service.NewIntakeService(repo),
		completion: service.NewCompletionService(repo, clipStore, aggregator, service.CompletionConfig{
			MaxAttempts:   cfg.Completion.MaxAttempts,
			RetryInterval: cfg.Completion.RetryInterval,
			BlobTimeout:   cfg.Completion.BlobTimeout,
		}),
		dispatcher: service.NewDispatcher(repo, launcher, aggregator, pool, service.DispatcherConfig{
			LaunchTimeout: cfg.Clipper.LaunchTimeout,
			Templates:     templates,
		}),
		conn:    conn,
		pool:    pool,
		channel: channel,
	}, nil
}

func (a *app) Close() {
	a.pool.Release()
	_ = a.channel.Close()
}

func newRepository(cfg *config.Config) (repository.OrderRepository, error) {
	if constant.StoreDriver(cfg.StoreDriver) == constant.StoreDriverMemory {
		return repository.NewMemoryRepo(), nil
	}
	return repository.NewRepo(cfg.DB, cfg.App.Environment == constant.EnvironmentDevelop.String())
}

// RunDispatch runs a single dispatch tick, for deployments driven by an external scheduler.
func RunDispatch(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(setupLogger(cfg))
	defer cancel()

	a, err := newApp(ctx, cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to start")
		return err
	}
	defer a.Close()

	_, err = a.dispatcher.Dispatch(ctx)
	return err
}

func RunMigrate(cfg *config.Config) error {
	ctx := setupLogger(cfg)
	repo, err := newRepository(cfg)
	if err != nil {
		return err
	}
	if err := repo.Migrate(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("migration failed")
		return err
	}
	zerolog.Ctx(ctx).Info().Msg("migration finished")
	return nil
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// Log to standard output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
