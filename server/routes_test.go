package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clip-orchestrator/constant"
	"clip-orchestrator/dto"
	"clip-orchestrator/entities"
	"clip-orchestrator/repository"
	"clip-orchestrator/service"
)

type stubLauncher struct{}

func (stubLauncher) Launch(ctx context.Context, request dto.LaunchRequest) (string, error) {
	return "remote-" + request.VideoURL[len(request.VideoURL)-5:], nil
}

type stubStore struct {
	err error
}

func (s *stubStore) SaveClip(ctx context.Context, jobID string, index int, downloadURL string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("https://cdn.example.com/clips/jobs/%s/clip-%03d.mp4", jobID, index), nil
}

type stubNotifier struct {
	sent []dto.OrderCompletedMessage
}

func (n *stubNotifier) NotifyOrderCompleted(ctx context.Context, message dto.OrderCompletedMessage) error {
	n.sent = append(n.sent, message)
	return nil
}

type testServer struct {
	engine   *gin.Engine
	repo     repository.OrderRepository
	store    *stubStore
	notifier *stubNotifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pool, err := ants.NewPool(2)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	repo := repository.NewMemoryRepo()
	store := &stubStore{}
	notifier := &stubNotifier{}
	aggregator := service.NewAggregator(repo, notifier, "https://clips.example.com")

	engine := gin.New()
	engine.Use(requestLogger())
	addRoutes(engine, &routes{
		repo:       repo,
		intake:     service.NewIntakeService(repo),
		completion: service.NewCompletionService(repo, store, aggregator, service.CompletionConfig{RetryInterval: time.Millisecond}),
		dispatcher: service.NewDispatcher(repo, stubLauncher{}, aggregator, pool, service.DispatcherConfig{}),
	})

	return &testServer{engine: engine, repo: repo, store: store, notifier: notifier}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func payment(paymentID string) dto.PaymentConfirmedMessage {
	return dto.PaymentConfirmedMessage{
		PaymentID: paymentID,
		Customer:  dto.CustomerPayload{Name: "Ana", Email: "ana@example.com"},
		SourceVideos: []dto.SourceVideoPayload{
			{URL: "https://videos.example.com/a.mp4", Title: "Episode 1"},
		},
		Settings: dto.OrderSettingsPayload{Format: "square", PreferLength: "short"},
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRecordPayment(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/payments", payment("pay_1"))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/payments", payment("pay_1"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"duplicate":true`)

	invalid := payment("pay_2")
	invalid.SourceVideos = nil
	w = s.do(t, http.MethodPost, "/payments", invalid)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/payments", "{broken")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, err := s.repo.FindByPaymentID(context.Background(), "pay_2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOrderLifecycle(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/payments", payment("pay_1")).Code)

	w := s.do(t, http.MethodPost, "/dispatch", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report dto.DispatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Dispatched)

	order, err := s.repo.FindByPaymentID(context.Background(), "pay_1")
	require.NoError(t, err)
	require.Len(t, order.Jobs, 1)
	jobID := order.Jobs[0].JobID

	callback := fmt.Sprintf(`{"code":2000,"projectId":%q,"videos":[
		{"videoId":1,"videoUrl":"https://cdn.example.com/1.mp4","videoMsDuration":31500,"title":"Hook","viralScore":"9.1"},
		{"videoId":2,"videoUrl":"https://cdn.example.com/2.mp4","videoMsDuration":20000,"title":"Twist","viralScore":"7.4"}
	]}`, jobID)
	w = s.do(t, http.MethodPost, "/webhooks/clipping", callback)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "recorded")

	w = s.do(t, http.MethodPost, "/webhooks/clipping", callback)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")

	w = s.do(t, http.MethodGet, "/orders/pay_1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var status dto.OrderStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, string(constant.OrderStatusCompleted), status.Status)
	assert.True(t, status.AllJobsDone)
	require.Len(t, status.Jobs, 1)
	assert.Equal(t, 2, status.Jobs[0].ClipCount)

	require.Len(t, s.notifier.sent, 1)
	assert.Equal(t, 31.5, s.notifier.sent[0].Clips[0].DurationSeconds)
	assert.Equal(t, "https://cdn.example.com/clips/jobs/remote-a.mp4/clip-000.mp4", s.notifier.sent[0].Clips[0].URL)
}

func TestClipCallback_Errors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/webhooks/clipping", `{"code":2000,"videos":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/webhooks/clipping", `{"code":2000,"projectId":999}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")

	ctx := context.Background()
	require.NoError(t, service.NewIntakeService(s.repo).RecordOrder(ctx, payment("pay_1")))
	order, err := s.repo.FindByPaymentID(ctx, "pay_1")
	require.NoError(t, err)
	order.Status = constant.OrderStatusProcessing
	order.Jobs = entities.JobList{{JobID: "job-a", Status: constant.JobStatusLaunched}}
	require.NoError(t, s.repo.Update(ctx, order, order.Version))

	s.store.err = errors.New("bucket unavailable")
	w = s.do(t, http.MethodPost, "/webhooks/clipping", `{"code":2000,"projectId":"job-a","videos":[{"videoUrl":"https://cdn.example.com/1.mp4"}]}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	stored, err := s.repo.FindByPaymentID(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusLaunched, stored.Jobs[0].Status)
}

func TestOrderStatus_NotFound(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodGet, "/orders/pay_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestOutcomeFromCallback(t *testing.T) {
	failed := outcomeFromCallback(dto.ClipCallback{Code: 4001, ProjectID: "job-a"})
	assert.False(t, failed.Succeeded)
	assert.Equal(t, "result code 4001", failed.Reason)

	withMessage := outcomeFromCallback(dto.ClipCallback{Code: 4001, ErrMsg: "video too long"})
	assert.Equal(t, "video too long", withMessage.Reason)

	ok := outcomeFromCallback(dto.ClipCallback{
		Code:   constant.ClipperCodeSuccess,
		Videos: []dto.CallbackClip{{VideoURL: "https://cdn.example.com/1.mp4", VideoMsDuration: 1500, Title: "Hook", ViralScore: "8"}},
	})
	require.True(t, ok.Succeeded)
	require.Len(t, ok.Clips, 1)
	assert.Equal(t, 1.5, ok.Clips[0].DurationSeconds)
	assert.Equal(t, "https://cdn.example.com/1.mp4", ok.Clips[0].DownloadURL)
}

func TestClipCallback_ProcessingCodeKeepsJobOpen(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, service.NewIntakeService(s.repo).RecordOrder(ctx, payment("pay_1")))
	order, err := s.repo.FindByPaymentID(ctx, "pay_1")
	require.NoError(t, err)
	order.Status = constant.OrderStatusProcessing
	order.Jobs = entities.JobList{{JobID: "job-a", Status: constant.JobStatusLaunched}}
	require.NoError(t, s.repo.Update(ctx, order, order.Version))

	w := s.do(t, http.MethodPost, "/webhooks/clipping", `{"code":1000,"projectId":"job-a"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "processing")

	stored, err := s.repo.FindByPaymentID(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, order.Version, stored.Version)
	assert.Equal(t, constant.JobStatusLaunched, stored.Jobs[0].Status)

	w = s.do(t, http.MethodPost, "/webhooks/clipping", `{"code":2000,"projectId":"job-a","videos":[{"videoUrl":"https://cdn.example.com/1.mp4","title":"Hook"}]}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "recorded")
}
