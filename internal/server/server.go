package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"campussync/internal/bootstrap/logging"
	"campussync/internal/errs"
	"campussync/internal/ports"
	"campussync/internal/server/ws"
	feedsvc "campussync/internal/usecase/feed"
	prefssvc "campussync/internal/usecase/prefs"
	livesync "campussync/internal/usecase/sync"
)

// Server exposes the feed to UI shells: a JSON API for pulls and mutations,
// plus a websocket stream pushing snapshot replacements and derived events.
type Server struct {
	addr     string
	feed     *feedsvc.Service
	syncer   *livesync.Synchronizer
	notifier *livesync.Notifier
	prefs    *prefssvc.Service
	identity ports.Identity
	hub      *ws.Hub
}

func New(addr string, feed *feedsvc.Service, syncer *livesync.Synchronizer, notifier *livesync.Notifier, prefs *prefssvc.Service, identity ports.Identity, hub *ws.Hub) *Server {
	return &Server{
		addr:     addr,
		feed:     feed,
		syncer:   syncer,
		notifier: notifier,
		prefs:    prefs,
		identity: identity,
		hub:      hub,
	}
}

// Run serves until ctx is done. The hub and the snapshot forwarders share
// the server's lifetime.
func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "server"))

	go s.hub.Run(ctx)
	go s.forwardSnapshots(ctx)

	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return logCtx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(logCtx, "http server listening", slog.String("addr", s.addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return errs.Wrap(err, "shutdown http server")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.Wrap(err, "serve http")
	}
}

// forwardSnapshots mirrors every published snapshot onto the websocket hub.
func (s *Server) forwardSnapshots(ctx context.Context) {
	reportsOut, cancelReports := s.syncer.SubscribeReports()
	defer cancelReports()
	alertsOut, cancelAlerts := s.syncer.SubscribeAlerts()
	defer cancelAlerts()

	for {
		select {
		case <-ctx.Done():
			return
		case reports := <-reportsOut:
			s.hub.BroadcastReports(ctx, reports)
		case alerts := <-alertsOut:
			s.hub.BroadcastAlerts(ctx, alerts)
		}
	}
}
