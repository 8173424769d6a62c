package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clip-orchestrator/constant"
	"clip-orchestrator/dto"
	"clip-orchestrator/repository"
)

func TestRecordOrder_StoresPendingOrder(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	intake := NewIntakeService(repo)

	require.NoError(t, intake.RecordOrder(ctx, paymentMessage("pay_1", "https://youtu.be/a", "https://youtu.be/b")))

	order, err := repo.FindByPaymentID(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, constant.OrderStatusPending, order.Status)
	assert.Empty(t, order.Jobs)
	assert.Len(t, order.SourceVideos, 2)
	assert.Equal(t, "https://youtu.be/a", order.SourceVideos[0].URL)
	assert.Equal(t, "ana@example.com", order.Customer.Email)
	assert.Equal(t, constant.ClipLengthMedium, order.Settings.PreferLength)
	assert.EqualValues(t, 1, order.Version)
	assert.False(t, order.CreatedAt.IsZero())
}

func TestRecordOrder_DuplicatePaymentIsIgnored(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	intake := NewIntakeService(repo)

	msg := paymentMessage("pay_dup", "https://videos.example.com/a.mp4")
	require.NoError(t, intake.RecordOrder(ctx, msg))

	msg.Amount = 999
	err := intake.RecordOrder(ctx, msg)
	assert.ErrorIs(t, err, ErrDuplicateIntake)
	assert.True(t, IsIgnorable(err))

	orders, err := repo.FindByStatus(ctx, constant.OrderStatusPending)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, 49.0, orders[0].Amount)
}

func TestRecordOrder_Defaults(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMemoryRepo()

	msg := paymentMessage("pay_defaults", "https://videos.example.com/a.mp4")
	msg.Settings = dto.OrderSettingsPayload{}
	require.NoError(t, NewIntakeService(repo).RecordOrder(ctx, msg))

	order, err := repo.FindByPaymentID(ctx, "pay_defaults")
	require.NoError(t, err)
	assert.Equal(t, constant.ClipFormatVertical, order.Settings.Format)
	assert.Equal(t, constant.ClipLengthAuto, order.Settings.PreferLength)
	assert.Equal(t, constant.DefaultLanguage, order.Settings.Language)
}

func TestRecordOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *dto.PaymentConfirmedMessage)
	}{
		{
			name:   "missing payment id",
			mutate: func(m *dto.PaymentConfirmedMessage) { m.PaymentID = "  " },
		},
		{
			name:   "missing email",
			mutate: func(m *dto.PaymentConfirmedMessage) { m.Customer.Email = "" },
		},
		{
			name:   "no source videos",
			mutate: func(m *dto.PaymentConfirmedMessage) { m.SourceVideos = nil },
		},
		{
			name: "too many source videos",
			mutate: func(m *dto.PaymentConfirmedMessage) {
				m.SourceVideos = append(m.SourceVideos, m.SourceVideos[0], m.SourceVideos[0], m.SourceVideos[0])
			},
		},
		{
			name:   "empty video url",
			mutate: func(m *dto.PaymentConfirmedMessage) { m.SourceVideos[0].URL = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryRepo()
			msg := paymentMessage("pay_invalid", "https://videos.example.com/a.mp4")
			tt.mutate(&msg)

			err := NewIntakeService(repo).RecordOrder(context.Background(), msg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidOrder)

			orders, err := repo.FindByStatus(context.Background(), constant.OrderStatusPending)
			require.NoError(t, err)
			assert.Empty(t, orders)
		})
	}
}
