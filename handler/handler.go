package handler

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cenkalti/backoff/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"clip-orchestrator/dto"
	"clip-orchestrator/service"
)

type ServiceDependencies struct {
	IntakeService service.IntakeService
}

// PaymentHandler records an order for one payment-confirmed delivery. Redeliveries are
// acknowledged; malformed or invalid events go straight to the dead-letter queue.
func PaymentHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var payment dto.PaymentConfirmedMessage
	if err := json.Unmarshal(msg.Body, &payment); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal payment message")
		return backoff.Permanent(err)
	}

	zerolog.Ctx(ctx).Info().
		Str("payment_id", payment.PaymentID).
		Int("videos", len(payment.SourceVideos)).
		Msg("received payment confirmation")

	err := deps.IntakeService.RecordOrder(ctx, payment)
	switch {
	case err == nil, errors.Is(err, service.ErrDuplicateIntake):
		return nil
	case errors.Is(err, service.ErrInvalidOrder):
		return backoff.Permanent(err)
	default:
		return err
	}
}
