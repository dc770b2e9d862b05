package catalog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/pkg/models"
)

// runJob records fn as a scrape job. fn returns the number of items written.
// Job bookkeeping failures are logged and never fail the scrape.
func (s *Service) runJob(ctx context.Context, target models.TargetType, url string, fn func(context.Context) (int, error)) error {
	job := &models.ScrapeJob{
		TargetURL:  url,
		TargetType: target,
		Status:     models.JobRunning,
		StartedAt:  s.now(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Failed to record scrape job")
		job = nil
	}

	n, err := fn(ctx)
	if job != nil {
		s.finishJob(ctx, job.ID, n, err)
	}
	return err
}

// recordJob writes a job that already ran.
func (s *Service) recordJob(ctx context.Context, target models.TargetType, url string, started time.Time, n int, jobErr error) {
	job := &models.ScrapeJob{
		TargetURL:  url,
		TargetType: target,
		Status:     models.JobRunning,
		StartedAt:  started,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Failed to record scrape job")
		return
	}
	s.finishJob(ctx, job.ID, n, jobErr)
}

func (s *Service) finishJob(ctx context.Context, id string, n int, jobErr error) {
	status := models.JobCompleted
	var errLog *string
	if jobErr != nil {
		status = models.JobFailed
		msg := jobErr.Error()
		errLog = &msg
	}
	// The job outcome is written even when the scrape was cancelled.
	if err := s.store.FinishJob(context.WithoutCancel(ctx), id, status, n, errLog, s.now()); err != nil {
		log.Warn().Err(err).Str("job", id).Msg("Failed to finish scrape job")
	}
}
