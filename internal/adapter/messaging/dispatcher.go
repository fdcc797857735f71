package messaging

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/stockledger/internal/core/domain"
	"github.com/rl1809/stockledger/internal/port"
)

const (
	publishTimeout  = 5 * time.Second
	publishAttempts = 3
	retryBackoff    = 200 * time.Millisecond
)

// Dispatcher drains the committed-movement queue with a fixed pool of
// workers. It stops once the queue is closed and drained.
type Dispatcher struct {
	publisher port.EventPublisher
	logger    *zap.Logger
	workers   int
	backoff   time.Duration
	wg        sync.WaitGroup
}

func NewDispatcher(publisher port.EventPublisher, logger *zap.Logger, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		publisher: publisher,
		logger:    logger,
		workers:   workers,
		backoff:   retryBackoff,
	}
}

func (d *Dispatcher) Start(queue <-chan domain.MovementEvent) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id, queue)
		}(i)
	}
	d.logger.Info("started event workers", zap.Int("workers", d.workers))
}

// Wait blocks until every worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) workerLoop(id int, queue <-chan domain.MovementEvent) {
	for event := range queue {
		if err := d.publish(event); err != nil {
			d.logger.Error("failed to publish movement event",
				zap.Int("worker", id),
				zap.Int64("transaction_id", event.TransactionID),
				zap.Int64("item_id", event.ItemID),
				zap.Error(err),
			)
			continue
		}
		d.logger.Debug("published movement event",
			zap.Int("worker", id),
			zap.Int64("transaction_id", event.TransactionID),
		)
	}
}

func (d *Dispatcher) publish(event domain.MovementEvent) error {
	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err = d.publisher.PublishMovement(ctx, event)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < publishAttempts {
			time.Sleep(d.backoff * time.Duration(attempt))
		}
	}
	return err
}
