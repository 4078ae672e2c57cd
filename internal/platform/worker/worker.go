// Package worker runs background maintenance tasks on fixed intervals, each
// task on its own ticker, until the context is canceled.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	logFieldWorker = "worker"
	logFieldTask   = "task"
)

// Task is a periodic job. A zero Timeout runs it without a deadline.
type Task struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Config configures a maintenance loop.
type Config struct {
	// Name identifies the worker for logging.
	Name string

	// Tasks run on their own tickers. Tasks without a positive interval are skipped.
	Tasks []Task

	// RunOnStart runs every task once before the first tick.
	RunOnStart bool

	// Logger for the worker.
	Logger *zerolog.Logger
}

// Loop runs the configured tasks until ctx is canceled and returns the wrapped
// context error. A failing or panicking task is logged and retried on its next tick.
func Loop(ctx context.Context, cfg Config) error {
	logger := getLogger(cfg.Logger)
	logger.Info().Str(logFieldWorker, cfg.Name).Int("tasks", len(cfg.Tasks)).Msg("starting worker loop")

	var wg sync.WaitGroup

	for _, task := range cfg.Tasks {
		if task.Interval <= 0 || task.Run == nil {
			continue
		}

		wg.Add(1)

		go func() {
			defer wg.Done()

			runTicker(ctx, task, cfg.RunOnStart, logger)
		}()
	}

	wg.Wait()
	<-ctx.Done()

	logger.Info().Str(logFieldWorker, cfg.Name).Msg("worker loop stopped")

	return fmt.Errorf("worker loop %s: %w", cfg.Name, ctx.Err())
}

func runTicker(ctx context.Context, task Task, runOnStart bool, logger *zerolog.Logger) {
	if runOnStart {
		runTask(ctx, task, logger)
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runTask(ctx, task, logger)
		}
	}
}

func runTask(ctx context.Context, task Task, logger *zerolog.Logger) {
	defer RecoverPanic(logger, task.Name)

	logger.Debug().Str(logFieldTask, task.Name).Msg("running periodic task")

	run := task.Run
	if task.Timeout > 0 {
		run = func(ctx context.Context) error {
			return RunWithTimeout(ctx, task.Timeout, task.Run)
		}
	}

	if err := run(ctx); err != nil {
		logger.Warn().Err(err).Str(logFieldTask, task.Name).Msg("periodic task failed")
	}
}

// Wait blocks until duration elapses or context is canceled.
// Returns a wrapped context error if context is canceled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// RunWithTimeout runs fn with a timeout derived from the parent context.
func RunWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return fn(timeoutCtx)
}

// RecoverPanic recovers from panics and logs them.
// Use as: defer worker.RecoverPanic(logger, "operation name")
func RecoverPanic(logger *zerolog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error().
			Interface("panic", r).
			Str("operation", operation).
			Msg("recovered from panic")
	}
}

func getLogger(logger *zerolog.Logger) *zerolog.Logger {
	if logger == nil {
		nop := zerolog.Nop()

		return &nop
	}

	return logger
}
