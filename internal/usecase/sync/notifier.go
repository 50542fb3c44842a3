package sync

import (
	"context"
	"errors"
	"log/slog"
	stdsync "sync"

	"campussync/internal/bootstrap/logging"
	"campussync/internal/domain/feed"
	"campussync/internal/errs"
	"campussync/internal/ports"
)

// EventSink receives derived notification events for side-effectful
// delivery: a websocket hub, the NATS bridge, a terminal banner.
type EventSink interface {
	Publish(ctx context.Context, ev feed.Event) error
}

// PreferencesSource resolves the observing user's notification preferences
// at delivery time. Resolution failures fall back to all-enabled defaults.
type PreferencesSource interface {
	For(ctx context.Context, userID string) feed.NotificationPreferences
}

const recentEventsCap = 64

// Notifier drives one delta engine per session: it serializes both snapshot
// streams through a single loop, diffs consecutive snapshots on behalf of
// the current user, filters the resulting events through the user's
// preferences, and hands survivors to the registered sinks. A sign-in change
// resets the baseline so the new user gets no storm of stale events.
type Notifier struct {
	syncer   *Synchronizer
	identity ports.Identity
	prefs    PreferencesSource
	sinks    []EventSink

	mu        stdsync.Mutex
	recent    []feed.Event
	eventSubs map[int]chan feed.Event
	nextSub   int
}

func NewNotifier(syncer *Synchronizer, identity ports.Identity, prefs PreferencesSource, sinks ...EventSink) *Notifier {
	return &Notifier{
		syncer:    syncer,
		identity:  identity,
		prefs:     prefs,
		sinks:     sinks,
		eventSubs: make(map[int]chan feed.Event),
	}
}

// AddSink registers an additional sink. Call before Run.
func (n *Notifier) AddSink(sink EventSink) {
	if sink != nil {
		n.sinks = append(n.sinks, sink)
	}
}

// Events returns a stream of delivered events. Slow consumers lose oldest
// events, never see them out of order.
func (n *Notifier) Events() (<-chan feed.Event, func()) {
	ch := make(chan feed.Event, 16)

	n.mu.Lock()
	id := n.nextSub
	n.nextSub++
	n.eventSubs[id] = ch
	n.mu.Unlock()

	return ch, func() {
		n.mu.Lock()
		delete(n.eventSubs, id)
		n.mu.Unlock()
	}
}

// Recent returns the newest delivered events, newest first.
func (n *Notifier) Recent() []feed.Event {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]feed.Event, len(n.recent))
	for i, ev := range n.recent {
		out[len(n.recent)-1-i] = ev
	}
	return out
}

// Run blocks until ctx is done. All diffing happens inside this loop, so
// the engine never compares against a half-updated baseline.
func (n *Notifier) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "notifier"))

	userID := ""
	if principal, signedIn, err := n.identity.CurrentUser(ctx); err == nil && signedIn {
		userID = principal.ID
	}
	engine := feed.NewEngine(userID)

	// Only the newest auth state matters; a pending older one is replaced so
	// a burst of sign-in changes always lands on the final user.
	authCh := make(chan string, 1)
	cancelAuth := n.identity.OnAuthStateChange(func(p feed.Principal, signedIn bool) {
		next := ""
		if signedIn {
			next = p.ID
		}
		for {
			select {
			case authCh <- next:
				return
			default:
				select {
				case <-authCh:
				default:
				}
			}
		}
	})
	defer cancelAuth()

	reportsCh, cancelReports := n.syncer.SubscribeReports()
	defer cancelReports()
	alertsCh, cancelAlerts := n.syncer.SubscribeAlerts()
	defer cancelAlerts()

	for {
		select {
		case <-ctx.Done():
			return nil
		case nextUser := <-authCh:
			// New observer, new baseline.
			engine.SetUser(nextUser)
			userID = nextUser
		case reports := <-reportsCh:
			n.dispatch(logCtx, userID, engine.ObserveReports(reports))
		case alerts := <-alertsCh:
			n.dispatch(logCtx, userID, engine.ObserveAlerts(alerts))
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, userID string, events []feed.Event) {
	if len(events) == 0 {
		return
	}

	prefs := feed.DefaultPreferences()
	if n.prefs != nil && userID != "" {
		prefs = n.prefs.For(ctx, userID)
	}
	events = feed.FilterEvents(prefs, events)
	if len(events) == 0 {
		return
	}

	n.mu.Lock()
	for _, ev := range events {
		n.recent = append(n.recent, ev)
		for _, ch := range n.eventSubs {
			select {
			case ch <- ev:
			default:
			}
		}
	}
	if len(n.recent) > recentEventsCap {
		n.recent = n.recent[len(n.recent)-recentEventsCap:]
	}
	n.mu.Unlock()

	for _, ev := range events {
		logging.Info(ctx, "local alert raised",
			slog.String("kind", string(ev.Kind)),
			slog.String("entity_id", ev.EntityID),
			slog.String("status", string(ev.Status)))
		for _, sink := range n.sinks {
			if err := sink.Publish(ctx, ev); err != nil {
				logging.Warn(ctx, "event sink delivery failed",
					slog.String("kind", string(ev.Kind)),
					slog.Any("err", errs.Loggable(err)))
			}
		}
	}
}
