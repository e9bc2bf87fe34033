package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/KotFed0t/papertrade/utils"
	"github.com/go-co-op/gocron/v2"
)

type taskFn func(ctx context.Context) error

type Scheduler struct {
	scheduler gocron.Scheduler
	timeout   time.Duration
}

// New creates a scheduler; every run of a job is bounded by jobTimeout when it is positive.
func New(jobTimeout time.Duration) (*Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Scheduler{scheduler: scheduler, timeout: jobTimeout}, nil
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
	slog.Info("scheduler started", slog.Int("jobs", len(s.scheduler.Jobs())))
}

func (s *Scheduler) Stop() {
	if err := s.scheduler.Shutdown(); err != nil {
		slog.Error("scheduler shutdown error", slog.String("err", err.Error()))
		return
	}
	slog.Info("scheduler stopped")
}

func (s *Scheduler) createJob(jobDefinition gocron.JobDefinition, name string, fn taskFn, startImmediately bool) error {
	opts := []gocron.JobOption{
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}

	if startImmediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	_, err := s.scheduler.NewJob(
		jobDefinition,
		gocron.NewTask(s.wrapTask(fn, name)),
		opts...,
	)
	if err != nil {
		slog.Error("Scheduler creating job error", slog.String("jobName", name), slog.String("err", err.Error()))
		return fmt.Errorf("create job %q: %w", name, err)
	}

	return nil
}

func (s *Scheduler) NewIntervalJob(name string, fn taskFn, interval time.Duration, startImmediately bool) error {
	return s.createJob(gocron.DurationJob(interval), name, fn, startImmediately)
}

func (s *Scheduler) NewCrontabJob(name string, fn taskFn, crontab string, startImmediately bool) error {
	return s.createJob(gocron.CronJob(crontab, true), name, fn, startImmediately)
}

// wrapTask gives every run its own request id and timeout, and keeps a panicking job
// from taking the process down.
func (s *Scheduler) wrapTask(fn taskFn, jobName string) func(ctx context.Context) {
	return func(ctx context.Context) {
		ctx = utils.CreateBackgroundCtxWithRqID(ctx)
		rqID := utils.GetRequestIDFromCtx(ctx)

		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				slog.Error(
					"Panic recovered in scheduler job",
					slog.String("rqID", rqID),
					slog.String("jobName", jobName),
					slog.Any("panic", r),
					slog.String("stacktrace", string(debug.Stack())),
				)
			}
		}()

		now := time.Now()
		slog.Info("job start", slog.String("rqID", rqID), slog.String("jobName", jobName))

		err := fn(ctx)
		if err != nil {
			slog.Error("job failed", slog.String("rqID", rqID), slog.String("jobName", jobName), slog.Any("error", err))
			return
		}

		slog.Info(
			"job completed",
			slog.String("rqID", rqID),
			slog.String("jobName", jobName),
			slog.String("duration", fmt.Sprintf("%.2fs", time.Since(now).Seconds())),
		)
	}
}
