package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lueurxax/media-guard-bot/internal/core/classifier"
	coreerrors "github.com/lueurxax/media-guard-bot/internal/core/errors"
	"github.com/lueurxax/media-guard-bot/internal/platform/observability"
	"github.com/lueurxax/media-guard-bot/internal/platform/worker"
)

const (
	taskDedupSweep      = "dedup_sweep"
	taskClassifierCheck = "classifier_check"
	taskCaseCount       = "case_count"

	checkTimeout     = 15 * time.Second
	caseCountTimeout = 10 * time.Second
)

type sweeper interface {
	Sweep()
}

type statsChecker interface {
	Enabled() bool
	Ping(ctx context.Context) error
	Tokens() *classifier.TokenSource
}

type caseCounter interface {
	Size(ctx context.Context) (int, error)
}

// maintenanceTasks builds the periodic upkeep jobs of bot mode. A nil sweeper
// (shared Redis cache) skips the dedup sweep.
func maintenanceTasks(interval time.Duration, cache sweeper, checker statsChecker, cases caseCounter) []worker.Task {
	tasks := make([]worker.Task, 0, 3)

	if cache != nil {
		tasks = append(tasks, worker.Task{
			Name:     taskDedupSweep,
			Interval: interval,
			Run: func(context.Context) error {
				cache.Sweep()
				return nil
			},
		})
	}

	tasks = append(tasks,
		worker.Task{
			Name:     taskClassifierCheck,
			Interval: interval,
			Timeout:  checkTimeout,
			Run: func(ctx context.Context) error {
				return checkClassifier(ctx, checker)
			},
		},
		worker.Task{
			Name:     taskCaseCount,
			Interval: interval,
			Timeout:  caseCountTimeout,
			Run: func(ctx context.Context) error {
				n, err := cases.Size(ctx)
				if err != nil {
					return fmt.Errorf("count cases: %w", err)
				}

				observability.CasesStored.Set(float64(n))

				return nil
			},
		},
	)

	return tasks
}

// checkClassifier updates the classifier gauges. A disabled client is reported
// as down without counting as a task failure.
func checkClassifier(ctx context.Context, checker statsChecker) error {
	defer reportTokenExpiry(checker.Tokens())

	if !checker.Enabled() {
		observability.ClassifierUp.Set(0)
		return nil
	}

	if err := checker.Ping(ctx); err != nil {
		observability.ClassifierUp.Set(0)

		if errors.Is(err, coreerrors.ErrClientDisabled) {
			return nil
		}

		return fmt.Errorf("classifier stats check: %w", err)
	}

	observability.ClassifierUp.Set(1)

	return nil
}

func reportTokenExpiry(tokens *classifier.TokenSource) {
	expiresAt := tokens.ExpiresAt()
	if expiresAt.IsZero() {
		observability.ClassifierTokenExpiry.Set(0)
		return
	}

	observability.ClassifierTokenExpiry.Set(float64(expiresAt.Unix()))
}
