// Package scheduler runs the recurring fetch, create, resolve and claim jobs
// on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner wraps a seconds-resolution cron. Jobs added to it receive the
// context passed to Run and never overlap with themselves.
type Runner struct {
	cron    *cron.Cron
	logger  *slog.Logger
	baseCtx context.Context
	jobs    int
}

// NewRunner creates a Runner that evaluates schedules in loc.
func NewRunner(loc *time.Location, logger *slog.Logger) *Runner {
	logger = logger.With(slog.String("component", "scheduler"))
	cl := cronLogger{logger: logger}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		baseCtx: context.Background(),
	}
}

// Add registers job under spec. An empty spec disables the job.
func (r *Runner) Add(name, spec string, job func(context.Context) error) error {
	if spec == "" {
		r.logger.Info("job disabled", slog.String("job", name))
		return nil
	}
	_, err := r.cron.AddFunc(spec, func() {
		ctx := r.baseCtx
		start := time.Now()
		logger := r.logger.With(slog.String("job", name))
		logger.InfoContext(ctx, "job started")
		if err := job(ctx); err != nil {
			logger.ErrorContext(ctx, "job failed",
				slog.String("error", err.Error()),
				slog.Duration("elapsed", time.Since(start)),
			)
			return
		}
		logger.InfoContext(ctx, "job finished", slog.Duration("elapsed", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("scheduler: add %s %q: %w", name, spec, err)
	}
	r.jobs++
	return nil
}

// Jobs returns the number of registered jobs.
func (r *Runner) Jobs() int { return r.jobs }

// Run starts the cron and blocks until ctx is cancelled, then waits for
// running jobs to return.
func (r *Runner) Run(ctx context.Context) error {
	r.baseCtx = ctx
	r.cron.Start()
	r.logger.Info("scheduler started", slog.Int("jobs", r.jobs))

	<-ctx.Done()

	<-r.cron.Stop().Done()
	r.logger.Info("scheduler stopped")
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
