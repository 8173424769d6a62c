package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"clip-orchestrator/constant"
	"clip-orchestrator/dto"
	"clip-orchestrator/entities"
	"clip-orchestrator/repository"
)

const maxSourceVideos = 3

type IntakeService interface {
	// RecordOrder stores a Pending order for a confirmed payment.
	// A redelivered payment returns ErrDuplicateIntake and writes nothing.
	RecordOrder(ctx context.Context, message dto.PaymentConfirmedMessage) error
}

type intakeService struct {
	repo repository.OrderRepository
}

func NewIntakeService(repo repository.OrderRepository) IntakeService {
	return &intakeService{
		repo: repo,
	}
}

func (s *intakeService) RecordOrder(ctx context.Context, message dto.PaymentConfirmedMessage) error {
	if err := validatePayment(message); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("payment_id", message.PaymentID).Msg("rejecting payment event")
		return err
	}

	order := newOrder(message)
	err := s.repo.Insert(ctx, order)
	if errors.Is(err, repository.ErrAlreadyExists) {
		zerolog.Ctx(ctx).Info().Str("payment_id", message.PaymentID).Msg("order already recorded, ignoring redelivery")
		return ErrDuplicateIntake
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("payment_id", message.PaymentID).Msg("failed to insert order")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("payment_id", order.PaymentID).
		Int("videos", len(order.SourceVideos)).
		Msg("order recorded")
	return nil
}

func validatePayment(message dto.PaymentConfirmedMessage) error {
	if strings.TrimSpace(message.PaymentID) == "" {
		return fmt.Errorf("%w: payment id is required", ErrInvalidOrder)
	}
	if strings.TrimSpace(message.Customer.Email) == "" {
		return fmt.Errorf("%w: customer email is required", ErrInvalidOrder)
	}
	if n := len(message.SourceVideos); n < 1 || n > maxSourceVideos {
		return fmt.Errorf("%w: expected 1 to %d source videos, got %d", ErrInvalidOrder, maxSourceVideos, n)
	}
	for i, v := range message.SourceVideos {
		if strings.TrimSpace(v.URL) == "" {
			return fmt.Errorf("%w: source video %d has no url", ErrInvalidOrder, i)
		}
	}
	return nil
}

func newOrder(message dto.PaymentConfirmedMessage) *entities.Order {
	videos := make(entities.SourceVideoList, 0, len(message.SourceVideos))
	for _, v := range message.SourceVideos {
		videos = append(videos, entities.SourceVideo{
			URL:             strings.TrimSpace(v.URL),
			Title:           v.Title,
			DurationSeconds: v.DurationSeconds,
		})
	}

	settings := entities.Settings{
		Format:       constant.ClipFormat(strings.ToLower(message.Settings.Format)),
		QualityTier:  message.Settings.QualityTier,
		PreferLength: constant.ClipLength(strings.ToLower(message.Settings.PreferLength)),
		Subtitles:    message.Settings.Subtitles,
		Headline:     message.Settings.Headline,
		Language:     message.Settings.Language,
	}
	if settings.Format == "" {
		settings.Format = constant.ClipFormatVertical
	}
	if settings.PreferLength == "" {
		settings.PreferLength = constant.ClipLengthAuto
	}
	if settings.Language == "" {
		settings.Language = constant.DefaultLanguage
	}

	return &entities.Order{
		PaymentID: strings.TrimSpace(message.PaymentID),
		Customer: entities.Customer{
			Name:  message.Customer.Name,
			Email: message.Customer.Email,
		},
		SourceVideos:          videos,
		Settings:              settings,
		Amount:                message.Amount,
		EstimatedDeliveryDays: message.EstimatedDeliveryDays,
		Status:                constant.OrderStatusPending,
		Jobs:                  entities.JobList{},
	}
}
