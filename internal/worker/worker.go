package worker

import (
	"context"
	"sync"
	"time"

	"github.com/Aaditya473/Alpha-Fitness/internal/util"

	"go.uber.org/zap"
)

// Sweeper is a periodic maintenance job
type Sweeper interface {
	ExpirePending(ctx context.Context) (int, error)
}

const DefaultInterval = time.Minute

// ExpiryWorker runs the pending-booking sweep on a fixed interval
type ExpiryWorker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewExpiryWorker creates a new expiry worker. A non-positive interval falls
// back to DefaultInterval.
func NewExpiryWorker(sweeper Sweeper, interval time.Duration) *ExpiryWorker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &ExpiryWorker{
		sweeper:  sweeper,
		interval: interval,
		logger:   util.ComponentLogger("worker"),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep until ctx is cancelled or Stop is called. It blocks.
func (w *ExpiryWorker) Start(ctx context.Context) error {
	defer close(w.done)

	w.logger.Info("Starting expiry worker", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the worker and waits for an in-flight sweep to finish
func (w *ExpiryWorker) Stop() error {
	w.logger.Info("Stopping expiry worker")
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
	return nil
}

func (w *ExpiryWorker) runOnce(ctx context.Context) {
	n, err := w.sweeper.ExpirePending(ctx)
	if err != nil {
		w.logger.Error("Expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		w.logger.Debug("Expiry sweep finished", zap.Int("expired", n))
	}
}
