package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clip-orchestrator/constant"
	"clip-orchestrator/dto"
	"clip-orchestrator/repository"
	"clip-orchestrator/service"
)

type routes struct {
	repo       repository.OrderRepository
	intake     service.IntakeService
	completion service.CompletionService
	dispatcher service.Dispatcher
}

func addRoutes(r *gin.Engine, rt *routes) {
	addHealth(r)
	r.POST("/payments", rt.recordPayment)
	r.POST("/webhooks/clipping", rt.clipCallback)
	r.GET("/orders/:paymentId", rt.orderStatus)
	r.POST("/dispatch", rt.dispatch)
}

func addHealth(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})
}

// requestLogger attaches a request-scoped logger to the request context.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		logger := zerolog.Ctx(ctx).With().Str("request_id", uuid.NewString()).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(ctx))
		c.Next()
	}
}

func (rt *routes) recordPayment(c *gin.Context) {
	var payment dto.PaymentConfirmedMessage
	if err := c.ShouldBindJSON(&payment); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := rt.intake.RecordOrder(c.Request.Context(), payment)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"paymentId": payment.PaymentID, "status": constant.OrderStatusPending})
	case errors.Is(err, service.ErrDuplicateIntake):
		c.JSON(http.StatusOK, gin.H{"paymentId": payment.PaymentID, "duplicate": true})
	case errors.Is(err, service.ErrInvalidOrder):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record order"})
	}
}

func (rt *routes) clipCallback(c *gin.Context) {
	var callback dto.ClipCallback
	if err := c.ShouldBindJSON(&callback); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if callback.ProjectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectId is required"})
		return
	}
	if callback.Code == constant.ClipperCodeProcessing {
		// Progress report; the job stays open until a final code arrives.
		c.JSON(http.StatusOK, gin.H{"status": "processing"})
		return
	}

	err := rt.completion.HandleCallback(c.Request.Context(), callback.ProjectID.String(), outcomeFromCallback(callback))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "recorded"})
	case service.IsIgnorable(err):
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	default:
		// Non-2xx makes the clipping service deliver the callback again.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "callback not recorded"})
	}
}

func outcomeFromCallback(callback dto.ClipCallback) service.Outcome {
	if callback.Code != constant.ClipperCodeSuccess {
		reason := callback.ErrMsg
		if reason == "" {
			reason = "result code " + strconv.Itoa(callback.Code)
		}
		return service.Failed(reason)
	}

	clips := make([]service.ProducedClip, 0, len(callback.Videos))
	for _, v := range callback.Videos {
		clips = append(clips, service.ProducedClip{
			Title:           v.Title,
			DurationSeconds: float64(v.VideoMsDuration) / 1000,
			ViralScore:      v.ViralScore,
			DownloadURL:     v.VideoURL,
		})
	}
	return service.Succeeded(clips)
}

func (rt *routes) orderStatus(c *gin.Context) {
	order, err := rt.repo.FindByPaymentID(c.Request.Context(), c.Param("paymentId"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load order"})
		return
	}

	jobs := make([]dto.JobStatusView, 0, len(order.Jobs))
	for _, j := range order.Jobs {
		jobs = append(jobs, dto.JobStatusView{
			JobID:     j.JobID,
			SourceURL: j.SourceURL,
			Status:    string(j.Status),
			ClipCount: len(j.Clips),
			Error:     j.Error,
		})
	}

	c.JSON(http.StatusOK, dto.OrderStatusResponse{
		PaymentID:     order.PaymentID,
		Status:        string(order.Status),
		AllJobsDone:   service.Evaluate(order) == service.VerdictAllDone,
		Jobs:          jobs,
		LastUpdatedAt: order.LastUpdatedAt,
	})
}

func (rt *routes) dispatch(c *gin.Context) {
	report, err := rt.dispatcher.Dispatch(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed"})
		return
	}
	c.JSON(http.StatusOK, dto.DispatchResponse{
		Skipped:    report.Skipped,
		Scanned:    report.Scanned,
		Dispatched: report.Dispatched,
		Failed:     report.Failed,
		Conflicts:  report.Conflicts,
		Settled:    report.Settled,
	})
}
