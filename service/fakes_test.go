package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/require"

	"clip-orchestrator/constant"
	"clip-orchestrator/dto"
	"clip-orchestrator/entities"
	"clip-orchestrator/repository"
)

type fakeLauncher struct {
	mu         sync.Mutex
	requests   []dto.LaunchRequest
	launchFunc func(ctx context.Context, request dto.LaunchRequest) (string, error)
}

func (f *fakeLauncher) Launch(ctx context.Context, request dto.LaunchRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, request)
	n := len(f.requests)
	f.mu.Unlock()

	if f.launchFunc != nil {
		return f.launchFunc(ctx, request)
	}
	return fmt.Sprintf("job-%d", n), nil
}

func (f *fakeLauncher) calls() []dto.LaunchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dto.LaunchRequest(nil), f.requests...)
}

type saveCall struct {
	JobID       string
	Index       int
	DownloadURL string
}

type fakeClipStore struct {
	mu       sync.Mutex
	saves    []saveCall
	saveFunc func(ctx context.Context, jobID string, index int, downloadURL string) (string, error)
}

func (f *fakeClipStore) SaveClip(ctx context.Context, jobID string, index int, downloadURL string) (string, error) {
	f.mu.Lock()
	f.saves = append(f.saves, saveCall{JobID: jobID, Index: index, DownloadURL: downloadURL})
	f.mu.Unlock()

	if f.saveFunc != nil {
		return f.saveFunc(ctx, jobID, index, downloadURL)
	}
	return fmt.Sprintf("https://cdn.example.com/clips/jobs/%s/clip-%03d.mp4", jobID, index), nil
}

func (f *fakeClipStore) calls() []saveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]saveCall(nil), f.saves...)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []dto.OrderCompletedMessage
	err      error
}

func (f *fakeNotifier) NotifyOrderCompleted(ctx context.Context, message dto.OrderCompletedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	return f.err
}

func (f *fakeNotifier) sent() []dto.OrderCompletedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]dto.OrderCompletedMessage(nil), f.messages...)
}

// hookRepo lets a test interfere with Update calls on top of the in-memory store.
type hookRepo struct {
	repository.OrderRepository

	mu           sync.Mutex
	beforeUpdate func(order *entities.Order)
	updateErr    error
}

func (r *hookRepo) Update(ctx context.Context, order *entities.Order, expectedVersion int64) error {
	r.mu.Lock()
	hook := r.beforeUpdate
	r.beforeUpdate = nil
	updateErr := r.updateErr
	r.mu.Unlock()

	if hook != nil {
		hook(order)
	}
	if updateErr != nil {
		return updateErr
	}
	return r.OrderRepository.Update(ctx, order, expectedVersion)
}

func newPool(t *testing.T) *ants.Pool {
	t.Helper()
	pool, err := ants.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(pool.Release)
	return pool
}

func paymentMessage(paymentID string, urls ...string) dto.PaymentConfirmedMessage {
	videos := make([]dto.SourceVideoPayload, 0, len(urls))
	for i, u := range urls {
		videos = append(videos, dto.SourceVideoPayload{
			URL:             u,
			Title:           fmt.Sprintf("Episode %d", i+1),
			DurationSeconds: 1800,
		})
	}
	return dto.PaymentConfirmedMessage{
		PaymentID: paymentID,
		Customer: dto.CustomerPayload{
			Name:  "Ana",
			Email: "ana@example.com",
		},
		SourceVideos: videos,
		Settings: dto.OrderSettingsPayload{
			Format:       "vertical",
			QualityTier:  "premium",
			PreferLength: "medium",
			Subtitles:    true,
			Headline:     false,
			Language:     "en",
		},
		Amount:                49.0,
		EstimatedDeliveryDays: 2,
	}
}

// processingOrder stores an order that has already been dispatched with the given job ids.
func processingOrder(t *testing.T, repo repository.OrderRepository, paymentID string, jobIDs ...string) *entities.Order {
	t.Helper()
	ctx := context.Background()

	urls := make([]string, 0, len(jobIDs))
	for i := range jobIDs {
		urls = append(urls, fmt.Sprintf("https://videos.example.com/%s/%d.mp4", paymentID, i))
	}
	require.NoError(t, NewIntakeService(repo).RecordOrder(ctx, paymentMessage(paymentID, urls...)))

	order, err := repo.FindByPaymentID(ctx, paymentID)
	require.NoError(t, err)

	for i, id := range jobIDs {
		order.Jobs = append(order.Jobs, entities.Job{
			JobID:     id,
			SourceURL: urls[i],
			Status:    constant.JobStatusLaunched,
		})
	}
	order.Status = constant.OrderStatusProcessing
	require.NoError(t, repo.Update(ctx, order, order.Version))
	return order
}

func producedClips(n int) []ProducedClip {
	clips := make([]ProducedClip, 0, n)
	for i := 0; i < n; i++ {
		clips = append(clips, ProducedClip{
			Title:           fmt.Sprintf("Clip %d", i+1),
			DurationSeconds: 42.5,
			ViralScore:      "8.7",
			DownloadURL:     fmt.Sprintf("https://cdn.example.com/tmp/%d.mp4", i),
		})
	}
	return clips
}
