package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"clip-orchestrator/constant"
	"clip-orchestrator/entities"
	"clip-orchestrator/repository"
)

// ClipStore copies a produced clip from its temporary download URL into durable storage.
type ClipStore interface {
	SaveClip(ctx context.Context, jobID string, index int, downloadURL string) (string, error)
}

type ProducedClip struct {
	Title           string
	DurationSeconds float64
	ViralScore      string
	DownloadURL     string
}

// Outcome is what the clipping service reported for one job.
type Outcome struct {
	Succeeded bool
	Clips     []ProducedClip
	Reason    string
}

func Succeeded(clips []ProducedClip) Outcome {
	return Outcome{Succeeded: true, Clips: clips}
}

func Failed(reason string) Outcome {
	return Outcome{Reason: reason}
}

type CompletionService interface {
	HandleCallback(ctx context.Context, jobID string, outcome Outcome) error
}

type CompletionConfig struct {
	MaxAttempts   int
	RetryInterval time.Duration
	BlobTimeout   time.Duration
}

type completionService struct {
	repo       repository.OrderRepository
	store      ClipStore
	aggregator Aggregator
	cfg        CompletionConfig
}

func NewCompletionService(repo repository.OrderRepository, store ClipStore, aggregator Aggregator, cfg CompletionConfig) CompletionService {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 5
	}
	if cfg.BlobTimeout <= 0 {
		cfg.BlobTimeout = 2 * time.Minute
	}
	return &completionService{
		repo:       repo,
		store:      store,
		aggregator: aggregator,
		cfg:        cfg,
	}
}

func (s *completionService) HandleCallback(ctx context.Context, jobID string, outcome Outcome) error {
	logger := zerolog.Ctx(ctx).With().Str("job_id", jobID).Logger()

	order, err := s.repo.FindByJobID(ctx, jobID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Warn().Msg("callback for unknown job dropped")
		return ErrUnknownJob
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to resolve job")
		return err
	}
	logger = logger.With().Str("payment_id", order.PaymentID).Logger()

	if order.Jobs[order.JobIndex(jobID)].Status.IsTerminal() {
		logger.Info().Msg("job already terminal, duplicate callback dropped")
		return ErrDuplicateCallback
	}

	if outcome.Succeeded && len(outcome.Clips) == 0 {
		outcome = Failed("no clips produced")
	}

	var clips []entities.Clip
	if outcome.Succeeded {
		clips, err = s.persistClips(ctx, jobID, outcome.Clips)
		if err != nil {
			logger.Error().Err(err).Msg("failed to persist clips, job left open")
			return err
		}
	}

	updated, err := s.recordOutcome(ctx, jobID, outcome, clips)
	if err != nil {
		if errors.Is(err, ErrDuplicateCallback) {
			logger.Info().Msg("job settled concurrently, duplicate callback dropped")
		} else {
			logger.Error().Err(err).Msg("failed to record job outcome")
		}
		return err
	}

	logger.Info().
		Bool("succeeded", outcome.Succeeded).
		Int("clips", len(clips)).
		Msg("job outcome recorded")

	if _, err := s.aggregator.Settle(ctx, updated); err != nil {
		// The next dispatch tick settles the order again.
		logger.Warn().Err(err).Msg("settle after callback failed")
	}
	return nil
}

func (s *completionService) persistClips(ctx context.Context, jobID string, produced []ProducedClip) ([]entities.Clip, error) {
	clips := make([]entities.Clip, 0, len(produced))
	for i, p := range produced {
		location, err := s.saveClip(ctx, jobID, i, p.DownloadURL)
		if err != nil {
			return nil, errors.Join(ErrStorageFailure, fmt.Errorf("clip %d: %w", i, err))
		}
		clips = append(clips, entities.Clip{
			SourceJobID:     jobID,
			Title:           p.Title,
			DurationSeconds: p.DurationSeconds,
			ViralScore:      p.ViralScore,
			StorageLocation: location,
		})
	}
	return clips, nil
}

func (s *completionService) saveClip(ctx context.Context, jobID string, index int, downloadURL string) (string, error) {
	blobCtx, cancel := context.WithTimeout(ctx, s.cfg.BlobTimeout)
	defer cancel()
	return s.store.SaveClip(blobCtx, jobID, index, downloadURL)
}

// recordOutcome merges the job result into the freshest copy of the order, retrying on version conflicts.
func (s *completionService) recordOutcome(ctx context.Context, jobID string, outcome Outcome, clips []entities.Clip) (*entities.Order, error) {
	operation := func() (*entities.Order, error) {
		current, err := s.repo.FindByJobID(ctx, jobID)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		idx := current.JobIndex(jobID)
		if current.Jobs[idx].Status.IsTerminal() {
			return nil, backoff.Permanent(ErrDuplicateCallback)
		}

		next := current.Clone()
		now := time.Now().UTC()
		job := &next.Jobs[idx]
		job.CompletedAt = &now
		if outcome.Succeeded {
			job.Status = constant.JobStatusSucceeded
			job.Clips = clips
		} else {
			job.Status = constant.JobStatusFailed
			job.Error = outcome.Reason
		}

		if err := s.repo.Update(ctx, next, current.Version); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				zerolog.Ctx(ctx).Debug().Str("job_id", jobID).Msg("version conflict, re-reading order")
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return next, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(s.cfg.RetryInterval)),
		backoff.WithMaxTries(uint(s.cfg.MaxAttempts)),
	)
}
