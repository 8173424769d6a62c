package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"clip-orchestrator/config"
	"clip-orchestrator/constant"
	"clip-orchestrator/handler"
	"clip-orchestrator/pkg/rabbitmq"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to start")
		return
	}
	defer a.Close()

	deps := handler.ServiceDependencies{
		IntakeService: a.intake,
	}

	paymentConsumer := rabbitmq.NewConsumer(a.conn, cfg.Queue, rabbitmq.Topology{
		Exchange:           cfg.Payments.Exchange,
		Queue:              cfg.Payments.Queue,
		RoutingKey:         cfg.Payments.RoutingKey,
		DeadLetterExchange: cfg.Payments.Exchange + "_dlx",
		DeadLetterQueue:    cfg.Payments.Queue + "_dlq",
	}, cfg.Server.Workers, handler.PaymentHandler)
	go func() {
		err := paymentConsumer.Consume(ctx, deps)
		if err != nil && !errors.Is(err, ctx.Err()) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Payment consumer error")
		}
	}()

	go runScheduler(ctx, a.dispatcher, cfg.Dispatch.Interval)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	addRoutes(r, &routes{
		repo:       a.repo,
		intake:     a.intake,
		completion: a.completion,
		dispatcher: a.dispatcher,
	})

	srv := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}
