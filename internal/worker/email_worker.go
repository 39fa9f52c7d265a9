package worker

import (
	"context"
	"time"

	"github.com/fieldserve/workorder/internal/domain/entity"
	"github.com/fieldserve/workorder/internal/email"
	"go.uber.org/zap"
)

const emailBatchSize = 20

// RetryableLister finds dispatch attempts worth retrying
type RetryableLister interface {
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]*entity.EmailLog, error)
}

// EmailWorker periodically resends pending and failed emails until their
// attempt budget runs out
type EmailWorker struct {
	sender   *email.Sender
	logs     RetryableLister
	strategy *RetryStrategy
	interval time.Duration
	logger   *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewEmailWorker creates a new retry worker
func NewEmailWorker(sender *email.Sender, logs RetryableLister, interval time.Duration, logger *zap.Logger) *EmailWorker {
	return &EmailWorker{
		sender:   sender,
		logs:     logs,
		strategy: NewRetryStrategy(),
		interval: interval,
		logger:   logger,
	}
}

// Name implements Worker
func (w *EmailWorker) Name() string { return "email-retry" }

// Start launches the retry loop
func (w *EmailWorker) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})

	go w.run(ctx)
	return nil
}

// Stop cancels the loop and waits for it to drain
func (w *EmailWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.done != nil {
		<-w.done
	}
}

func (w *EmailWorker) run(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep retries one batch of deliverable emails
func (w *EmailWorker) sweep(ctx context.Context) {
	logs, err := w.logs.ListRetryable(ctx, w.strategy.MaxAttempts, emailBatchSize)
	if err != nil {
		w.logger.Error("Failed to list retryable emails", zap.Error(err))
		return
	}
	if len(logs) == 0 {
		return
	}

	w.logger.Info("Retrying emails", zap.Int("count", len(logs)))

	for _, log := range logs {
		if ctx.Err() != nil {
			return
		}

		// Respect backoff relative to the last attempt
		wait := w.strategy.Backoff(log.Attempts)
		if since := time.Since(log.UpdatedAt); since < wait {
			continue
		}

		if err := w.sender.Deliver(ctx, log); err != nil {
			w.logger.Warn("Email retry failed",
				zap.Int64("log_id", log.ID),
				zap.Int("attempts", log.Attempts),
				zap.Error(err))
		}
	}
}

// Verify interface compliance
var _ Worker = (*EmailWorker)(nil)
