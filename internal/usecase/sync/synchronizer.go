package sync

import (
	"context"
	"errors"
	"log/slog"
	stdsync "sync"

	"github.com/cenkalti/backoff/v4"

	"campussync/internal/bootstrap/logging"
	"campussync/internal/errs"
	"campussync/internal/ports"

	"campussync/internal/domain/feed"
)

// Collection names in the document store.
const (
	CollectionReports = "reports"
	CollectionAlerts  = "emergency_alerts"
)

// Synchronizer maintains live, always-current snapshots of the Reports and
// Alerts collections and republishes them to consumers on every change. Each
// published snapshot is a complete replacement and is immutable once
// published. Subscription failures are absorbed: the last-known-good
// snapshot stays in place (stale beats empty) while resubscription retries
// with exponential backoff.
type Synchronizer struct {
	store ports.DocumentStore

	mu           stdsync.RWMutex
	reports      []feed.Report
	alerts       []feed.EmergencyAlert
	reportsReady bool
	alertsReady  bool

	readyOnce stdsync.Once
	ready     chan struct{}

	nextSub    int
	reportSubs map[int]chan []feed.Report
	alertSubs  map[int]chan []feed.EmergencyAlert

	cancel  context.CancelFunc
	wg      stdsync.WaitGroup
	started bool
}

func NewSynchronizer(store ports.DocumentStore) *Synchronizer {
	return &Synchronizer{
		store:      store,
		ready:      make(chan struct{}),
		reportSubs: make(map[int]chan []feed.Report),
		alertSubs:  make(map[int]chan []feed.EmergencyAlert),
	}
}

// Start opens both collection subscriptions. Emissions begin as soon as the
// store delivers initial data; an empty collection is a valid first emission.
func (s *Synchronizer) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("synchronizer already started")
	}
	s.started = true
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = logging.WithLogger(runCtx, logging.Logger(ctx))
	runCtx = logging.WithAttrs(runCtx, logging.Attrs(ctx)...)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(2)
	go s.runCollection(runCtx, CollectionReports)
	go s.runCollection(runCtx, CollectionAlerts)
	return nil
}

// Stop releases the live subscriptions. Failing to stop leaks the listeners.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// WaitReady blocks until both collections have delivered their first
// snapshot.
func (s *Synchronizer) WaitReady(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "wait for first snapshots")
	}
}

// Loading reports whether either collection is still waiting for its first
// emission.
func (s *Synchronizer) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !(s.reportsReady && s.alertsReady)
}

// Reports returns the latest report snapshot. Treat it as immutable.
func (s *Synchronizer) Reports() []feed.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reports
}

// Alerts returns the latest alert snapshot. Treat it as immutable.
func (s *Synchronizer) Alerts() []feed.EmergencyAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alerts
}

// SubscribeReports returns a latest-wins stream of complete report
// snapshots. The cancel func releases the stream.
func (s *Synchronizer) SubscribeReports() (<-chan []feed.Report, func()) {
	ch := make(chan []feed.Report, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.reportSubs[id] = ch
	if s.reportsReady {
		ch <- s.reports
	}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.reportSubs, id)
		s.mu.Unlock()
	}
}

// SubscribeAlerts returns a latest-wins stream of complete alert snapshots.
func (s *Synchronizer) SubscribeAlerts() (<-chan []feed.EmergencyAlert, func()) {
	ch := make(chan []feed.EmergencyAlert, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.alertSubs[id] = ch
	if s.alertsReady {
		ch <- s.alerts
	}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		delete(s.alertSubs, id)
		s.mu.Unlock()
	}
}

// runCollection owns one collection stream: subscribe (with backoff on
// failure), drain deliveries, resubscribe if the stream ends while the
// context is still live. One goroutine per collection serializes snapshot
// application for that collection.
func (s *Synchronizer) runCollection(ctx context.Context, collection string) {
	defer s.wg.Done()

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "synchronizer"),
		slog.String("collection", collection))

	for {
		if ctx.Err() != nil {
			return
		}

		sub, err := s.subscribeWithBackoff(logCtx, collection)
		if err != nil {
			// Only a dead context gets here; last-known-good stays in place.
			return
		}

		s.drain(logCtx, collection, sub)

		if ctx.Err() != nil {
			return
		}
		logging.Warn(logCtx, "subscription ended, resubscribing")
	}
}

func (s *Synchronizer) subscribeWithBackoff(ctx context.Context, collection string) (ports.Subscription, error) {
	var sub ports.Subscription
	operation := func() error {
		var err error
		sub, err = s.store.SubscribeOrdered(ctx, collection, "createdAt", ports.SortDesc)
		if err != nil {
			logging.Warn(ctx, "subscribe failed, retrying",
				slog.Any("err", errs.Loggable(err)))
			return err
		}
		return nil
	}

	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, errs.Wrap(err, "subscribe with backoff")
	}
	return sub, nil
}

func (s *Synchronizer) drain(ctx context.Context, collection string, sub ports.Subscription) {
	defer sub.Cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case docs, ok := <-sub.C():
			if !ok {
				return
			}
			switch collection {
			case CollectionReports:
				s.applyReports(decodeReports(docs))
			case CollectionAlerts:
				s.applyAlerts(decodeAlerts(docs))
			}
		}
	}
}

func (s *Synchronizer) applyReports(reports []feed.Report) {
	s.mu.Lock()
	s.reports = reports
	s.reportsReady = true
	bothReady := s.alertsReady
	subs := make([]chan []feed.Report, 0, len(s.reportSubs))
	for _, ch := range s.reportSubs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	if bothReady {
		s.readyOnce.Do(func() { close(s.ready) })
	}
	for _, ch := range subs {
		deliverLatest(ch, reports)
	}
}

func (s *Synchronizer) applyAlerts(alerts []feed.EmergencyAlert) {
	s.mu.Lock()
	s.alerts = alerts
	s.alertsReady = true
	bothReady := s.reportsReady
	subs := make([]chan []feed.EmergencyAlert, 0, len(s.alertSubs))
	for _, ch := range s.alertSubs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	if bothReady {
		s.readyOnce.Do(func() { close(s.ready) })
	}
	for _, ch := range subs {
		deliverLatest(ch, alerts)
	}
}

// deliverLatest replaces a pending undelivered snapshot with the newest one.
func deliverLatest[T any](ch chan T, value T) {
	for {
		select {
		case ch <- value:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
