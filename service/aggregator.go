package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clip-orchestrator/constant"
	"clip-orchestrator/dto"
	"clip-orchestrator/entities"
	"clip-orchestrator/repository"
)

type Verdict int

const (
	VerdictPending Verdict = iota
	VerdictAllDone
)

func (v Verdict) String() string {
	if v == VerdictAllDone {
		return "all_done"
	}
	return "pending"
}

// Evaluate returns VerdictAllDone when the order has jobs and every one of them is terminal.
func Evaluate(order *entities.Order) Verdict {
	if order == nil || len(order.Jobs) == 0 {
		return VerdictPending
	}
	for _, j := range order.Jobs {
		if !j.Status.IsTerminal() {
			return VerdictPending
		}
	}
	return VerdictAllDone
}

// FinalStatus is Completed when at least one job succeeded, Failed otherwise.
func FinalStatus(order *entities.Order) constant.OrderStatus {
	for _, j := range order.Jobs {
		if j.Status == constant.JobStatusSucceeded {
			return constant.OrderStatusCompleted
		}
	}
	return constant.OrderStatusFailed
}

type Notifier interface {
	NotifyOrderCompleted(ctx context.Context, message dto.OrderCompletedMessage) error
}

type Aggregator interface {
	// Settle moves a fully terminal Processing order to its final status. It reports true only
	// for the caller whose write won the transition; that caller alone sends the notification.
	Settle(ctx context.Context, order *entities.Order) (bool, error)
}

type aggregator struct {
	repo            repository.OrderRepository
	notifier        Notifier
	downloadBaseURL string
}

func NewAggregator(repo repository.OrderRepository, notifier Notifier, downloadBaseURL string) Aggregator {
	return &aggregator{
		repo:            repo,
		notifier:        notifier,
		downloadBaseURL: strings.TrimSuffix(downloadBaseURL, "/"),
	}
}

func (a *aggregator) Settle(ctx context.Context, order *entities.Order) (bool, error) {
	if order.Status != constant.OrderStatusProcessing || Evaluate(order) != VerdictAllDone {
		return false, nil
	}

	next := order.Clone()
	next.Status = FinalStatus(order)
	if err := a.repo.Update(ctx, next, order.Version); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			zerolog.Ctx(ctx).Debug().Str("payment_id", order.PaymentID).Msg("order settled by another actor")
			return false, nil
		}
		zerolog.Ctx(ctx).Error().Err(err).Str("payment_id", order.PaymentID).Msg("failed to settle order")
		return false, err
	}

	zerolog.Ctx(ctx).Info().
		Str("payment_id", next.PaymentID).
		Str("status", string(next.Status)).
		Msg("order settled")

	if next.Status != constant.OrderStatusCompleted {
		return true, nil
	}

	if err := a.notifier.NotifyOrderCompleted(ctx, a.completedMessage(next)); err != nil {
		zerolog.Ctx(ctx).Error().
			Err(errors.Join(ErrNotificationFailure, err)).
			Str("payment_id", next.PaymentID).
			Msg("order completed but notification was not sent")
		return true, nil
	}

	zerolog.Ctx(ctx).Info().Str("payment_id", next.PaymentID).Msg("customer notified")
	return true, nil
}

func (a *aggregator) completedMessage(order *entities.Order) dto.OrderCompletedMessage {
	clips := order.Clips()
	items := make([]dto.NotificationClip, 0, len(clips))
	for _, c := range clips {
		items = append(items, dto.NotificationClip{
			Title:           c.Title,
			URL:             c.StorageLocation,
			DurationSeconds: c.DurationSeconds,
		})
	}

	return dto.OrderCompletedMessage{
		PaymentID:     order.PaymentID,
		CustomerName:  order.Customer.Name,
		CustomerEmail: order.Customer.Email,
		Clips:         items,
		DownloadURL:   fmt.Sprintf("%s/downloads/%s", a.downloadBaseURL, order.PaymentID),
		CompletedAt:   order.LastUpdatedAt.UTC().Truncate(time.Second),
	}
}
