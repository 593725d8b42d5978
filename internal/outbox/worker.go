package outbox

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 32
)

var errMissingOutbox = errors.New("outbox is required")

// Deliverer ships one payload to the remote document store.
type Deliverer interface {
	Persist(ctx context.Context, collection, recordID string, payloadJSON string) error
}

// WorkerConfig carries the dependencies of the delivery worker.
type WorkerConfig struct {
	Outbox       *Outbox
	Deliverer    Deliverer
	Logger       *zap.Logger
	PollInterval time.Duration
	BatchSize    int
}

// Worker drains due outbox entries on a fixed interval. It runs on its own
// goroutine and never blocks the synchronization paths that enqueue.
type Worker struct {
	outbox       *Outbox
	deliverer    Deliverer
	logger       *zap.Logger
	pollInterval time.Duration
	batchSize    int
}

// NewWorker validates the configuration and constructs a Worker.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Outbox == nil {
		return nil, errMissingOutbox
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &Worker{
		outbox:       cfg.Outbox,
		deliverer:    cfg.Deliverer,
		logger:       logger,
		pollInterval: interval,
		batchSize:    batch,
	}, nil
}

// Run polls for due entries until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w.deliverer == nil {
		w.logger.Info("outbox worker idle: no remote store configured")
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.DrainOnce(ctx)
		}
	}
}

// DrainOnce attempts delivery of one batch of due entries. Exposed so tests
// and shutdown hooks can flush without waiting for the ticker.
func (w *Worker) DrainOnce(ctx context.Context) {
	entries, err := w.outbox.Due(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("outbox poll failed", zap.Error(err))
		return
	}
	for _, entry := range entries {
		if err := w.deliverer.Persist(ctx, entry.Collection, entry.RecordID, entry.PayloadJSON); err != nil {
			if markErr := w.outbox.MarkAttemptFailed(ctx, entry, err); markErr != nil {
				w.logger.Error("outbox failure bookkeeping failed",
					zap.String("entry_id", entry.EntryID), zap.Error(markErr))
			}
			continue
		}
		if err := w.outbox.MarkDelivered(ctx, entry.EntryID); err != nil {
			w.logger.Error("outbox delivery bookkeeping failed",
				zap.String("entry_id", entry.EntryID), zap.Error(err))
			continue
		}
		w.logger.Debug("outbox entry delivered",
			zap.String("entry_id", entry.EntryID),
			zap.String("collection", entry.Collection),
			zap.String("record_id", entry.RecordID))
	}
}
