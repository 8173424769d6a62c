package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"clip-orchestrator/constant"
	"clip-orchestrator/dto"
	"clip-orchestrator/entities"
	"clip-orchestrator/repository"
)

const (
	videoTypeRemoteFile = 1
	videoTypeYouTube    = 2

	localJobPrefix = "local-"
)

// Launcher starts one clip job at the clipping service and returns the job id it assigned.
type Launcher interface {
	Launch(ctx context.Context, request dto.LaunchRequest) (string, error)
}

type DispatchReport struct {
	Skipped    bool
	Scanned    int
	Dispatched int
	Failed     int
	Conflicts  int
	Settled    int
}

type Dispatcher interface {
	Dispatch(ctx context.Context) (DispatchReport, error)
}

type DispatcherConfig struct {
	LaunchTimeout time.Duration
	Templates     map[constant.ClipFormat]int64
}

type dispatcher struct {
	repo       repository.OrderRepository
	launcher   Launcher
	aggregator Aggregator
	pool       *ants.Pool
	cfg        DispatcherConfig

	running sync.Mutex
}

func NewDispatcher(repo repository.OrderRepository, launcher Launcher, aggregator Aggregator, pool *ants.Pool, cfg DispatcherConfig) Dispatcher {
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = 30 * time.Second
	}
	return &dispatcher{
		repo:       repo,
		launcher:   launcher,
		aggregator: aggregator,
		pool:       pool,
		cfg:        cfg,
	}
}

type dispatchOutcome int

const (
	outcomeDispatched dispatchOutcome = iota
	outcomeAllFailed
	outcomeConflict
	outcomeError
)

func (d *dispatcher) Dispatch(ctx context.Context) (DispatchReport, error) {
	var report DispatchReport
	if !d.running.TryLock() {
		zerolog.Ctx(ctx).Info().Msg("dispatch already running, skipping tick")
		report.Skipped = true
		return report, nil
	}
	defer d.running.Unlock()

	orders, err := d.repo.FindByStatus(ctx, constant.OrderStatusPending)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to scan pending orders")
		return report, err
	}
	report.Scanned = len(orders)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	record := func(outcome dispatchOutcome) {
		mu.Lock()
		defer mu.Unlock()
		switch outcome {
		case outcomeDispatched:
			report.Dispatched++
		case outcomeAllFailed:
			report.Failed++
		case outcomeConflict:
			report.Conflicts++
		}
	}

	// An order that was picked up runs to its commit even if the trigger goes away;
	// LaunchTimeout still bounds every launch.
	orderCtx := context.WithoutCancel(ctx)
	for _, order := range orders {
		if ctx.Err() != nil {
			zerolog.Ctx(ctx).Info().Str("payment_id", order.PaymentID).Msg("dispatch cancelled, leaving order for next tick")
			continue
		}
		wg.Add(1)
		err := d.pool.Submit(func() {
			defer wg.Done()
			record(d.dispatchOrder(orderCtx, order))
		})
		if err != nil {
			wg.Done()
			zerolog.Ctx(ctx).Error().Err(err).Str("payment_id", order.PaymentID).Msg("failed to submit order to dispatch pool")
		}
	}
	wg.Wait()

	if ctx.Err() == nil {
		report.Settled = d.settleFinished(ctx)
	}

	zerolog.Ctx(ctx).Info().
		Int("scanned", report.Scanned).
		Int("dispatched", report.Dispatched).
		Int("failed", report.Failed).
		Int("conflicts", report.Conflicts).
		Int("settled", report.Settled).
		Msg("dispatch tick finished")
	return report, nil
}

func (d *dispatcher) dispatchOrder(ctx context.Context, order *entities.Order) dispatchOutcome {
	logger := zerolog.Ctx(ctx).With().Str("payment_id", order.PaymentID).Logger()

	jobs := make(entities.JobList, 0, len(order.SourceVideos))
	launched := 0
	for _, video := range order.SourceVideos {
		job := d.launch(ctx, order, video)
		if job.Status == constant.JobStatusLaunched {
			launched++
		} else {
			logger.Warn().Str("source_url", video.URL).Str("error", job.Error).Msg("clip job launch failed")
		}
		jobs = append(jobs, job)
	}

	next := order.Clone()
	next.Jobs = jobs
	next.Status = constant.OrderStatusProcessing
	if launched == 0 {
		next.Status = constant.OrderStatusFailed
	}

	if err := d.repo.Update(ctx, next, order.Version); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			logger.Warn().Msg("order changed during dispatch, retrying next tick")
			return outcomeConflict
		}
		logger.Error().Err(err).Msg("failed to record dispatched jobs")
		return outcomeError
	}

	logger.Info().
		Str("status", string(next.Status)).
		Int("launched", launched).
		Int("jobs", len(jobs)).
		Msg("order dispatched")

	if launched == 0 {
		return outcomeAllFailed
	}
	return outcomeDispatched
}

func (d *dispatcher) launch(ctx context.Context, order *entities.Order, video entities.SourceVideo) entities.Job {
	launchCtx, cancel := context.WithTimeout(ctx, d.cfg.LaunchTimeout)
	defer cancel()

	now := time.Now().UTC()
	job := entities.Job{
		SourceURL:  video.URL,
		LaunchedAt: now,
	}

	jobID, err := d.launcher.Launch(launchCtx, d.launchRequest(order, video))
	if err == nil && strings.TrimSpace(jobID) == "" {
		err = errors.New("clipping service returned no job id")
	}
	if err != nil {
		job.JobID = localJobPrefix + uuid.NewString()
		job.Status = constant.JobStatusFailed
		job.Error = errors.Join(ErrLaunchFailure, err).Error()
		job.CompletedAt = &now
		return job
	}

	job.JobID = jobID
	job.Status = constant.JobStatusLaunched
	return job
}

func (d *dispatcher) launchRequest(order *entities.Order, video entities.SourceVideo) dto.LaunchRequest {
	label := video.Title
	if order.Customer.Name != "" {
		label = fmt.Sprintf("%s - %s", order.Customer.Name, video.Title)
	}

	return dto.LaunchRequest{
		VideoURL:       video.URL,
		VideoType:      videoType(video.URL),
		Lang:           order.Settings.Language,
		PreferLength:   []int{order.Settings.PreferLength.LengthHint()},
		TemplateID:     d.cfg.Templates[order.Settings.Format],
		SubtitleSwitch: switchValue(order.Settings.Subtitles),
		HeadlineSwitch: switchValue(order.Settings.Headline),
		ProjectName:    label,
	}
}

// settleFinished finalizes Processing orders whose jobs are all terminal but were never settled.
func (d *dispatcher) settleFinished(ctx context.Context) int {
	orders, err := d.repo.FindByStatus(ctx, constant.OrderStatusProcessing)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to scan processing orders")
		return 0
	}

	settled := 0
	for _, order := range orders {
		if Evaluate(order) != VerdictAllDone {
			continue
		}
		won, err := d.aggregator.Settle(ctx, order)
		if err != nil {
			continue
		}
		if won {
			settled++
		}
	}
	return settled
}

func videoType(url string) int {
	if strings.Contains(url, "youtube.com") || strings.Contains(url, "youtu.be") {
		return videoTypeYouTube
	}
	return videoTypeRemoteFile
}

func switchValue(on bool) int {
	if on {
		return 1
	}
	return 0
}
