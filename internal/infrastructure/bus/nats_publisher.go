package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"

	"campussync/internal/bootstrap/logging"
	"campussync/internal/domain/feed"
	"campussync/internal/errs"
)

// Publisher mirrors derived feed events onto NATS subjects so sibling
// processes (an email worker, a push gateway) can consume them without
// subscribing to the document store themselves.
type Publisher struct {
	conn          *nats.Conn
	subjectPrefix string
}

// Connect dials NATS. The caller decides whether a failed dial is fatal;
// the serve path degrades to a no-op publisher with a warning.
func Connect(ctx context.Context, url string, subjectPrefix string) (*Publisher, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("nats url is required")
	}

	conn, err := nats.Connect(url, nats.Name("campussync"))
	if err != nil {
		return nil, errs.Wrap(err, "connect to nats")
	}

	logging.Info(ctx, "nats event bridge connected",
		slog.String("component", "bus"),
		slog.String("url", url))

	if subjectPrefix == "" {
		subjectPrefix = "campussync.events"
	}
	return &Publisher{conn: conn, subjectPrefix: subjectPrefix}, nil
}

func (p *Publisher) subjectFor(kind feed.EventKind) string {
	switch kind {
	case feed.EventEmergencyRaised:
		return p.subjectPrefix + ".emergency"
	case feed.EventStatusChanged:
		return p.subjectPrefix + ".status"
	case feed.EventReportRemoved:
		return p.subjectPrefix + ".removed"
	default:
		return p.subjectPrefix + ".other"
	}
}

func (p *Publisher) Publish(ctx context.Context, ev feed.Event) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return errs.Wrap(err, "encode event")
	}

	if err := p.conn.Publish(p.subjectFor(ev.Kind), payload); err != nil {
		return errs.Wrap(err, "publish event")
	}
	return nil
}

func (p *Publisher) Close() {
	p.conn.Close()
}

// Noop satisfies the event sink contract while dropping everything. Used
// when the bridge is disabled or unreachable.
type Noop struct{}

func (Noop) Publish(context.Context, feed.Event) error { return nil }
