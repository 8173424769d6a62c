package config

import (
	"context"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// URI is the AMQP address of the broker on the default vhost.
func (r RabbitMQ) URI() string {
	return amqp.URI{
		Scheme:   "amqp",
		Host:     r.Host,
		Port:     r.Port,
		Username: r.User,
		Password: r.Pass,
		Vhost:    "/",
	}.String()
}

func (r RabbitMQ) dialBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	if r.DialMaxInterval > 0 {
		bo.MaxInterval = r.DialMaxInterval
	}
	return bo
}

// NewRabbitMQConn dials the broker, retrying up to DialMaxTries times. The connection is
// closed when ctx is done.
func NewRabbitMQConn(ctx context.Context, cfg *RabbitMQ) (*amqp.Connection, error) {
	logger := zerolog.Ctx(ctx).With().Str("host", cfg.Host).Int("port", cfg.Port).Logger()

	attempt := 0
	conn, err := backoff.Retry(ctx, func() (*amqp.Connection, error) {
		attempt++
		conn, err := amqp.Dial(cfg.URI())
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Msg("rabbitmq dial failed")
			return nil, err
		}
		return conn, nil
	}, backoff.WithBackOff(cfg.dialBackOff()), backoff.WithMaxTries(cfg.DialMaxTries))
	if err != nil {
		logger.Error().Err(err).Int("attempts", attempt).Msg("giving up on rabbitmq")
		return nil, err
	}

	logger.Info().Msg("connected to rabbitmq")
	go func() {
		<-ctx.Done()
		if err := conn.Close(); err != nil && !conn.IsClosed() {
			logger.Error().Err(err).Msg("failed to close rabbitmq connection")
			return
		}
		logger.Info().Msg("rabbitmq connection closed")
	}()

	return conn, nil
}
