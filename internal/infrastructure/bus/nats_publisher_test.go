package bus

import (
	"context"
	"testing"
	"time"

	"campussync/internal/domain/feed"
	livesync "campussync/internal/usecase/sync"
)

func TestConnectRequiresURL(t *testing.T) {
	if _, err := Connect(context.Background(), "   ", ""); err == nil {
		t.Fatal("blank url accepted")
	}
}

func TestConnectUnreachableBrokerFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Port 1 is never a NATS broker; the dial must error out so the caller
	// can fall back to the no-op sink.
	if _, err := Connect(ctx, "nats://127.0.0.1:1", ""); err == nil {
		t.Fatal("dial to unreachable broker succeeded")
	}
}

func TestNoopDropsEveryEvent(t *testing.T) {
	var sink livesync.EventSink = Noop{}

	kinds := []feed.EventKind{
		feed.EventEmergencyRaised,
		feed.EventStatusChanged,
		feed.EventReportRemoved,
	}
	for _, kind := range kinds {
		if err := sink.Publish(context.Background(), feed.Event{Kind: kind}); err != nil {
			t.Fatalf("noop publish %s: %v", kind, err)
		}
	}
}
