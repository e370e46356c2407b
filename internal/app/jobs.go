package app

import (
	"context"
	"sync"
	"time"

	"github.com/alvarodevdoo/ERP-sub000/pkg/logger"
)

// Job is a periodic background task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// RunJobs runs every job on its own ticker until ctx is cancelled. Each job
// also runs once at start. A failing run is logged and retried on the next tick.
func RunJobs(ctx context.Context, log *logger.Logger, jobs ...Job) {
	var wg sync.WaitGroup
	for _, job := range jobs {
		if job.Interval <= 0 {
			log.Warnw("job disabled", "job", job.Name)
			continue
		}
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			runJob(ctx, log.With("job", job.Name), job)
		}(job)
	}
	wg.Wait()
}

func runJob(ctx context.Context, log *logger.Logger, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		if err := job.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithContext(ctx).Errorw("job failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
