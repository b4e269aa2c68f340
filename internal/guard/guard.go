// Package guard runs one upstream fetch so that its failure degrades to a
// fallback value instead of failing the aggregation around it.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/web3-frozen/defi-overview/internal/metrics"
)

// Status is the outcome of a guarded task.
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusSkipped  Status = "skipped"
)

// Task describes one guarded fetch for logging and metrics.
type Task struct {
	Source   string
	Protocol string
	Timeout  time.Duration // zero means no per-task bound
	Logger   *slog.Logger
}

// Result is the settled value of a task. Value is the fallback unless
// Status is StatusOK.
type Result[T any] struct {
	Status Status
	Value  T
	Reason string
}

// Skip returns the result of a task that was never started.
func Skip[T any](fallback T) Result[T] {
	return Result[T]{Status: StatusSkipped, Value: fallback}
}

// Run executes fn and settles it. Errors, panics and timeouts are logged,
// counted and replaced by fallback.
func Run[T any](ctx context.Context, task Task, fallback T, fn func(context.Context) (T, error)) (res Result[T]) {
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = degrade(task, fallback, fmt.Errorf("panic: %v", r))
		}
		metrics.SourceFetchDuration.WithLabelValues(task.Source).Observe(time.Since(start).Seconds())
		metrics.SourceFetchTotal.WithLabelValues(task.Source, string(res.Status)).Inc()
	}()

	v, err := fn(ctx)
	if err != nil {
		return degrade(task, fallback, err)
	}
	return Result[T]{Status: StatusOK, Value: v}
}

func degrade[T any](task Task, fallback T, err error) Result[T] {
	logger := task.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("source unavailable",
		"source", task.Source,
		"protocol", task.Protocol,
		"error", err,
	)
	return Result[T]{Status: StatusDegraded, Value: fallback, Reason: err.Error()}
}
