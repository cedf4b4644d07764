package main

import (
	"context"
	"log/slog"
	"os"

	"gateway/config"
	"gateway/internal/delivery"
	"gateway/internal/delivery/api"
	apimiddleware "gateway/internal/delivery/api/middleware"
	"gateway/internal/delivery/api/router/handler"
	"gateway/internal/domain/repository"
	"gateway/internal/infra/auth"
	logs "gateway/internal/infra/log"
	"gateway/internal/infra/metrics"
	"gateway/internal/infra/persistence/postgres"
	"gateway/internal/infra/persistence/redis"
	"gateway/internal/usecase"
	"gateway/internal/usecase/impl"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle

	Deliveries []delivery.Delivery `group:"deliveries"`
}

// sessionStoreParams holds what either session backend may need.
type sessionStoreParams struct {
	fx.In
	fx.Lifecycle

	Config *config.Config
	Logger *slog.Logger
	DB     *gorm.DB
}

func main() {
	fx.New(
		injectInfra(),
		injectRepo(),
		injectService(),
		injectUsecase(),
		injectDelivery(),
		injectMiddleware(),
		injectHandler(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		metrics.New,
		func(m *metrics.Metrics) prometheus.Registerer { return m.Registerer() },
		fx.Annotate(
			func(m *metrics.Metrics) *metrics.Metrics { return m },
			fx.As(new(usecase.AuthRecorder)),
		),
		postgres.New,
	)
}

func injectRepo() fx.Option {
	return fx.Options(
		fx.Provide(
			postgres.NewUserRepository,
			newSessionRepository,
			postgres.NewTransactionManager,
		),
	)
}

// newSessionRepository picks the session store configured in session.backend.
func newSessionRepository(params sessionStoreParams) (repository.SessionRepository, error) {
	if params.Config.Session.Backend != config.SessionBackendRedis {
		return postgres.NewSessionRepository(params.DB), nil
	}

	client, err := redis.NewClient(redis.ClientParams{
		Lifecycle: params.Lifecycle,
		Config:    params.Config,
		Logger:    params.Logger,
	})
	if err != nil {
		return nil, err
	}

	return redis.NewSessionStore(client, params.Config), nil
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			auth.NewBcryptHasher,
			auth.NewJWTCodec,
		),
	)
}

func injectUsecase() fx.Option {
	return fx.Options(
		fx.Provide(
			impl.NewCredentialVerifier,
			impl.NewAuthService,
		),
	)
}

func injectMiddleware() fx.Option {
	return fx.Options(
		fx.Provide(
			apimiddleware.NewAuthMiddleware,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewAuthHandler,
		),
	)
}

func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				api.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))
				os.Exit(1)
			}
		}()
	}
}
