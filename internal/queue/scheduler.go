// Package queue runs the delivery loop: it claims due entries, hands each
// one to the lifecycle controller for a single attempt, and applies the
// retry policy to the outcome.
package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rezonia/einvoice-hub/internal/model"
	"github.com/rezonia/einvoice-hub/internal/store"
)

// Dispatcher is the lifecycle seam the scheduler drives. Dispatch performs
// one attempt; the remaining methods let the invoice mirror the scheduler's
// decision.
type Dispatcher interface {
	Dispatch(ctx context.Context, entry *model.QueueEntry) error
	FollowUp(ctx context.Context, entry *model.QueueEntry) error
	MarkRetrying(ctx context.Context, entry *model.QueueEntry, nextAttempt time.Time) error
	MarkExhausted(ctx context.Context, entry *model.QueueEntry, lastErr string) error
	MarkWithdrawn(ctx context.Context, entry *model.QueueEntry) error
}

// Scheduler polls the queue store for due entries and processes them on a
// bounded worker pool.
type Scheduler struct {
	queue      store.QueueStore
	dispatcher Dispatcher
	clock      clockwork.Clock

	pollInterval time.Duration
	batchSize    int
	workers      int
}

// SchedulerOption configures the scheduler.
type SchedulerOption func(*Scheduler)

// WithPollInterval sets the queue poll interval.
func WithPollInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.pollInterval = d }
}

// WithBatchSize sets how many due entries one tick claims.
func WithBatchSize(n int) SchedulerOption {
	return func(s *Scheduler) { s.batchSize = n }
}

// WithWorkers sets the concurrent attempt limit.
func WithWorkers(n int) SchedulerOption {
	return func(s *Scheduler) { s.workers = n }
}

// WithSchedulerClock injects the clock, for tests.
func WithSchedulerClock(clock clockwork.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = clock }
}

// NewScheduler creates a scheduler over the given queue store and
// dispatcher.
func NewScheduler(queue store.QueueStore, dispatcher Dispatcher, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		queue:        queue,
		dispatcher:   dispatcher,
		clock:        clockwork.NewRealClock(),
		pollInterval: time.Second,
		batchSize:    50,
		workers:      8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run polls until the context is cancelled. In-flight attempts finish
// before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("level=info component=scheduler msg=\"delivery scheduler started\" poll_interval=%s workers=%d", s.pollInterval, s.workers)
	ticker := s.clock.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("level=info component=scheduler msg=\"delivery scheduler stopping\"")
			return
		case <-ticker.Chan():
			s.Tick(ctx)
		}
	}
}

// Tick claims and processes one batch of due entries, blocking until every
// claimed entry in the batch has completed its attempt.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()
	due, err := s.queue.DueEntries(ctx, now, s.batchSize)
	if err != nil {
		log.Printf("level=error component=scheduler op=list_due err=%q", err)
		return
	}

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for _, entry := range due {
		claimed, err := s.queue.ClaimEntry(ctx, entry.ID, now)
		if err != nil {
			log.Printf("level=error component=scheduler op=claim entry=%s err=%q", entry.ID, err)
			continue
		}
		if !claimed {
			continue
		}
		entry.Status = model.EntryProcessing

		wg.Add(1)
		sem <- struct{}{}
		go func(e *model.QueueEntry) {
			defer wg.Done()
			defer func() { <-sem }()
			s.process(ctx, e)
		}(entry)
	}
	wg.Wait()
}

// process runs one attempt for a claimed entry and applies the retry
// policy to the result.
func (s *Scheduler) process(ctx context.Context, entry *model.QueueEntry) {
	err := s.dispatcher.Dispatch(ctx, entry)
	entry.Attempts++

	switch {
	case err == nil:
		entry.Status = model.EntryCompleted
		entry.LastError = ""
		if uerr := s.queue.UpdateEntry(ctx, entry); uerr != nil {
			log.Printf("level=error component=scheduler op=complete entry=%s err=%q", entry.ID, uerr)
			return
		}
		if ferr := s.dispatcher.FollowUp(ctx, entry); ferr != nil {
			log.Printf("level=error component=scheduler op=follow_up entry=%s err=%q", entry.ID, ferr)
		}
		return

	case model.Retryable(err) && entry.Attempts < entry.MaxAttempts:
		nextAttempt := s.clock.Now().Add(Backoff(entry.Attempts))
		entry.Status = model.EntryRetrying
		entry.NextRetryAt = nextAttempt
		entry.LastError = err.Error()
		if uerr := s.queue.UpdateEntry(ctx, entry); uerr != nil {
			log.Printf("level=error component=scheduler op=requeue entry=%s err=%q", entry.ID, uerr)
			return
		}
		if merr := s.dispatcher.MarkRetrying(ctx, entry, nextAttempt); merr != nil {
			log.Printf("level=error component=scheduler op=mark_retrying entry=%s err=%q", entry.ID, merr)
		}
		log.Printf("level=warn component=scheduler op=%s entry=%s attempt=%d/%d next_retry=%s err=%q",
			entry.Operation, entry.ID, entry.Attempts, entry.MaxAttempts, nextAttempt.Format(time.RFC3339), err)

	default:
		entry.Status = model.EntryFailed
		entry.LastError = errString(err)
		if uerr := s.queue.UpdateEntry(ctx, entry); uerr != nil {
			log.Printf("level=error component=scheduler op=fail entry=%s err=%q", entry.ID, uerr)
			return
		}
		if merr := s.dispatcher.MarkExhausted(ctx, entry, entry.LastError); merr != nil {
			log.Printf("level=error component=scheduler op=mark_exhausted entry=%s err=%q", entry.ID, merr)
		}
		log.Printf("level=error component=scheduler op=%s entry=%s attempt=%d/%d msg=\"entry failed permanently\" err=%q",
			entry.Operation, entry.ID, entry.Attempts, entry.MaxAttempts, err)
	}

	s.applyDeferredCancel(ctx, entry)
}

// applyDeferredCancel honours a merchant cancel that arrived while the
// attempt was in flight. A completed attempt already issued the invoice, so
// only a retrying or failed entry can still be withdrawn.
func (s *Scheduler) applyDeferredCancel(ctx context.Context, entry *model.QueueEntry) {
	current, err := s.queue.GetEntry(ctx, entry.ID)
	if err != nil {
		log.Printf("level=error component=scheduler op=deferred_cancel entry=%s err=%q", entry.ID, err)
		return
	}
	if !current.CancelRequested || current.Status == model.EntryCompleted || current.Status == model.EntryCancelled {
		return
	}
	current.Status = model.EntryCancelled
	if err := s.queue.UpdateEntry(ctx, current); err != nil {
		log.Printf("level=error component=scheduler op=deferred_cancel entry=%s err=%q", entry.ID, err)
		return
	}
	if err := s.dispatcher.MarkWithdrawn(ctx, current); err != nil {
		log.Printf("level=error component=scheduler op=deferred_cancel entry=%s err=%q", entry.ID, err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
