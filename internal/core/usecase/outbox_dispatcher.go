package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/ports"
)

// Dispatch outcomes passed to ports.ValidationObserver.ObserveDispatch.
const (
	DispatchSuccess = "success"
	DispatchFailure = "failure"
	DispatchDead    = "dead"
)

// OutboxDispatcher delivers pending outbox events to a publisher, retrying
// with backoff and dead-lettering after maxRetry attempts.
type OutboxDispatcher struct {
	repo      ports.OutboxRepository
	publisher ports.EventPublisher
	observer  ports.ValidationObserver
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
	maxRetry  int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dispatchSuccessTotal atomic.Int64
	dispatchFailureTotal atomic.Int64
	dispatchDeadTotal    atomic.Int64
}

type OutboxDispatcherMetrics struct {
	DispatchSuccessTotal int64
	DispatchFailureTotal int64
	DispatchDeadTotal    int64
}

func NewOutboxDispatcher(repo ports.OutboxRepository, publisher ports.EventPublisher, interval time.Duration, batchSize int) *OutboxDispatcher {
	return NewObservedOutboxDispatcher(repo, publisher, interval, batchSize, nil, nil)
}

func NewObservedOutboxDispatcher(repo ports.OutboxRepository, publisher ports.EventPublisher, interval time.Duration, batchSize int, observer ports.ValidationObserver, logger *slog.Logger) *OutboxDispatcher {
	if observer == nil {
		observer = ports.NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &OutboxDispatcher{
		repo:      repo,
		publisher: publisher,
		observer:  observer,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		maxRetry:  5,
	}
}

func (d *OutboxDispatcher) Start(parent context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	d.cancel = cancel
	d.wg.Add(1)
	go d.loop(ctx)
}

func (d *OutboxDispatcher) Close() error {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	d.wg.Wait()
	return nil
}

func (d *OutboxDispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if err := d.dispatchBatch(ctx); err != nil {
			d.logger.Error("outbox dispatch batch failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (d *OutboxDispatcher) dispatchBatch(ctx context.Context) error {
	events, err := d.repo.FetchPending(ctx, d.batchSize)
	if err != nil {
		return err
	}

	for _, event := range events {
		envelope, err := decodeRunEvent(event)
		if err != nil {
			if markErr := d.markFailure(ctx, event, fmt.Sprintf("decode validation event: %v", err)); markErr != nil {
				return markErr
			}
			d.recordFailure(event, "decode validation event")
			continue
		}

		if err := d.publisher.Publish(ctx, event.Topic, envelope); err != nil {
			if markErr := d.markFailure(ctx, event, err.Error()); markErr != nil {
				return markErr
			}
			d.recordFailure(event, err.Error())
			continue
		}

		if err := d.repo.MarkDispatched(ctx, event.ID); err != nil {
			return err
		}
		d.dispatchSuccessTotal.Add(1)
		d.observer.ObserveDispatch(DispatchSuccess)
	}

	return nil
}

// decodeRunEvent reads the envelope stored with a recorded run. The row's
// topic must be the one the envelope's tenant and type address.
func decodeRunEvent(event domain.OutboxEvent) (domain.EventEnvelope, error) {
	var envelope domain.EventEnvelope
	if err := json.Unmarshal(event.PayloadJSON, &envelope); err != nil {
		return domain.EventEnvelope{}, err
	}
	if want := domain.EventTopic(envelope.TenantID, envelope.EventType); event.Topic != want {
		return domain.EventEnvelope{}, fmt.Errorf("topic %q does not match %q", event.Topic, want)
	}
	return envelope, nil
}

func (d *OutboxDispatcher) markFailure(ctx context.Context, event domain.OutboxEvent, errMsg string) error {
	attempts := event.Attempts + 1
	if attempts >= d.maxRetry {
		if err := d.repo.MarkDead(ctx, event.ID, attempts, errMsg); err != nil {
			return err
		}
		d.dispatchDeadTotal.Add(1)
		d.observer.ObserveDispatch(DispatchDead)
		d.logger.Warn("outbox event dead-lettered", "event_id", event.EventID, "attempts", attempts, "error", errMsg)
		return nil
	}
	next := time.Now().UTC().Add(backoffDuration(attempts)).Format(time.RFC3339Nano)
	return d.repo.MarkFailed(ctx, event.ID, attempts, next, errMsg)
}

func (d *OutboxDispatcher) recordFailure(event domain.OutboxEvent, errMsg string) {
	d.dispatchFailureTotal.Add(1)
	d.observer.ObserveDispatch(DispatchFailure)
	d.logger.Warn("outbox dispatch failed", "event_id", event.EventID, "topic", event.Topic, "error", errMsg)
}

func (d *OutboxDispatcher) Metrics() OutboxDispatcherMetrics {
	return OutboxDispatcherMetrics{
		DispatchSuccessTotal: d.dispatchSuccessTotal.Load(),
		DispatchFailureTotal: d.dispatchFailureTotal.Load(),
		DispatchDeadTotal:    d.dispatchDeadTotal.Load(),
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt <= 1 {
		return 1 * time.Second
	}
	d := time.Duration(attempt*attempt) * time.Second
	if d > 5*time.Minute {
		return 5 * time.Minute
	}
	return d
}
