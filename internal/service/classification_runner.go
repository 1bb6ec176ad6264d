package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/spec-kit/triage-service/internal/classifier"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/observability"
)

// ClassificationOutcome is the terminal state of one classification task.
type ClassificationOutcome string

const (
	OutcomeSucceeded ClassificationOutcome = "succeeded"
	OutcomeTimedOut  ClassificationOutcome = "timed_out"
	OutcomeFailed    ClassificationOutcome = "failed"
	OutcomeSkipped   ClassificationOutcome = "skipped"
)

// TaskResult is delivered once per dispatched task.
type TaskResult struct {
	TicketID string
	Outcome  ClassificationOutcome
	Err      error
	Duration time.Duration
}

// classificationSink receives the runner's results.
type classificationSink interface {
	ApplyClassification(ctx context.Context, ticketID string, result domain.ClassificationResult, receivedAt time.Time) (*domain.Ticket, error)
	RecordClassificationFailure(ctx context.Context, ticketID string, outcome ClassificationOutcome, cause error)
}

// RunnerConfig bounds the runner.
type RunnerConfig struct {
	Timeout     time.Duration
	MaxInFlight int64
}

// ClassificationRunner executes classifier calls outside the request that triggered them.
type ClassificationRunner struct {
	client  classifier.Client
	sink    classificationSink
	sem     *semaphore.Weighted
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
	metrics *observability.Metrics

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newClassificationRunner(client classifier.Client, sink classificationSink, cfg RunnerConfig, now func() time.Time, logger *zap.Logger, metrics *observability.Metrics) *ClassificationRunner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 16
	}
	base, cancel := context.WithCancel(context.Background())
	return &ClassificationRunner{
		client:  client,
		sink:    sink,
		sem:     semaphore.NewWeighted(cfg.MaxInFlight),
		timeout: cfg.Timeout,
		now:     now,
		logger:  logger,
		metrics: metrics,
		base:    base,
		cancel:  cancel,
	}
}

// Dispatch starts a task and returns immediately. The returned channel receives
// exactly one result and is buffered so callers may ignore it.
func (r *ClassificationRunner) Dispatch(ticketID, subject, description string) <-chan TaskResult {
	out := make(chan TaskResult, 1)

	if r.client == nil || !r.sem.TryAcquire(1) {
		res := TaskResult{TicketID: ticketID, Outcome: OutcomeSkipped}
		r.finish(res)
		out <- res
		close(out)
		return out
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.sem.Release(1)
		defer close(out)

		res := r.run(ticketID, subject, description)
		r.finish(res)
		out <- res
	}()
	return out
}

func (r *ClassificationRunner) run(ticketID, subject, description string) TaskResult {
	started := time.Now()
	ctx, cancel := context.WithTimeout(r.base, r.timeout)
	defer cancel()

	res := TaskResult{TicketID: ticketID}
	result, err := r.client.Classify(ctx, subject, description)
	if err == nil {
		// the write path gets its own budget so a slow classifier cannot starve it
		applyCtx, applyCancel := context.WithTimeout(r.base, r.timeout)
		_, err = r.sink.ApplyClassification(applyCtx, ticketID, result, r.now())
		applyCancel()
	}
	res.Duration = time.Since(started)

	switch {
	case err == nil:
		res.Outcome = OutcomeSucceeded
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Outcome, res.Err = OutcomeTimedOut, err
	default:
		res.Outcome, res.Err = OutcomeFailed, err
	}

	if res.Outcome != OutcomeSucceeded {
		recordCtx, recordCancel := context.WithTimeout(context.Background(), 5*time.Second)
		r.sink.RecordClassificationFailure(recordCtx, ticketID, res.Outcome, res.Err)
		recordCancel()
	}
	return res
}

func (r *ClassificationRunner) finish(res TaskResult) {
	r.metrics.RecordClassification(string(res.Outcome))
	fields := []zap.Field{
		zap.String("ticket_id", res.TicketID),
		zap.String("outcome", string(res.Outcome)),
		zap.Duration("duration", res.Duration),
	}
	switch res.Outcome {
	case OutcomeSucceeded:
		r.logger.Info("classification finished", fields...)
	case OutcomeSkipped:
		r.logger.Warn("classification skipped; runner saturated or unconfigured", fields...)
	default:
		r.logger.Warn("classification failed", append(fields, zap.Error(res.Err))...)
	}
}

// Wait blocks until all in-flight tasks finish.
func (r *ClassificationRunner) Wait() {
	r.wg.Wait()
}

// Close cancels in-flight tasks and waits for them.
func (r *ClassificationRunner) Close() {
	r.cancel()
	r.wg.Wait()
}
