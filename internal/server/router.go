package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"campussync/internal/bootstrap/logging"
	domainfeed "campussync/internal/domain/feed"
	"campussync/internal/errs"
	"campussync/internal/server/ws"
	feedsvc "campussync/internal/usecase/feed"
)

// Router builds the HTTP surface. Reads serve the last-known-good snapshot
// and never fail on a broken live feed; write failures always surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWS(s.hub, w, req)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/reports", s.handleListReports)
		r.Post("/reports", s.handleCreateReport)
		r.Get("/reports/followed", s.handleFollowedReports)
		r.Get("/reports/{id}", s.handleGetReport)
		r.Patch("/reports/{id}", s.handleUpdateReport)
		r.Delete("/reports/{id}", s.handleDeleteReport)
		r.Patch("/reports/{id}/status", s.handleUpdateStatus)
		r.Post("/reports/{id}/follow", s.handleToggleFollow)

		r.Get("/alerts", s.handleListAlerts)
		r.Post("/alerts", s.handleCreateAlert)
		r.Delete("/alerts/{id}", s.handleDeleteAlert)

		r.Get("/events/recent", s.handleRecentEvents)
		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handlePutPreferences)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		logging.Info(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", wrapped.Status()),
			slog.Duration("duration", time.Since(start)))
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Error string `json:"error"`
}

// respondError maps domain failures onto HTTP statuses. Unknown errors stay
// opaque to the client.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domainfeed.ErrAuthenticationRequired):
		status = http.StatusUnauthorized
	case errors.Is(err, domainfeed.ErrAuthorizationDenied):
		status = http.StatusForbidden
	case errors.Is(err, domainfeed.ErrReportNotFound), errors.Is(err, domainfeed.ErrAlertNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domainfeed.ErrWriteInFlight):
		status = http.StatusConflict
	case errors.Is(err, domainfeed.ErrEmptyUpdate),
		errors.Is(err, domainfeed.ErrInvalidStatus),
		errors.Is(err, domainfeed.ErrInvalidReportType):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, domainfeed.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
		respondJSON(w, status, errorBody{Error: "internal error"})
		return
	}

	logging.Warn(r.Context(), "request refused",
		slog.Int("status", status),
		slog.Any("err", errs.Loggable(err)))
	respondJSON(w, status, errorBody{Error: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"loading":    s.syncer.Loading(),
		"ws_clients": s.hub.Connected(),
	})
}

func (s *Server) handleListReports(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"reports": s.feed.Reports(),
		"loading": s.feed.Loading(),
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, found := s.feed.GetByID(chi.URLParam(r, "id"))
	if !found {
		respondError(w, r, domainfeed.ErrReportNotFound)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleFollowedReports(w http.ResponseWriter, r *http.Request) {
	principal, signedIn, err := s.identity.CurrentUser(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !signedIn {
		respondError(w, r, domainfeed.ErrAuthenticationRequired)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"reports": s.feed.GetFollowed(principal.ID),
	})
}

type createReportRequest struct {
	Type        string              `json:"type"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Location    domainfeed.Location `json:"location"`
	PhotoURL    string              `json:"photoUrl,omitempty"`
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}

	report, err := s.feed.CreateReport(r.Context(), domainfeed.NewReportInput{
		Type:        domainfeed.ReportType(req.Type),
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, report)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}

	if err := s.feed.UpdateStatus(r.Context(), chi.URLParam(r, "id"), domainfeed.ReportStatus(req.Status)); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": req.Status})
}

type updateReportRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Location    *domainfeed.Location `json:"location"`
	PhotoURL    *string              `json:"photoUrl"`
	Type        *string              `json:"type"`
}

func (s *Server) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	var req updateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}

	input := feedsvc.UpdateFieldsInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		PhotoURL:    req.PhotoURL,
	}
	if req.Type != nil {
		reportType := domainfeed.ReportType(*req.Type)
		input.Type = &reportType
	}

	if err := s.feed.UpdateFields(r.Context(), chi.URLParam(r, "id"), input); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := s.feed.DeleteReport(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleFollow(w http.ResponseWriter, r *http.Request) {
	following, err := s.feed.ToggleFollow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"following": following})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"alerts":  s.feed.Alerts(),
		"loading": s.feed.Loading(),
	})
}

type createAlertRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}

	alert, err := s.feed.CreateEmergencyAlert(r.Context(), req.Title, req.Message)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, alert)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.feed.DeleteEmergencyAlert(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecentEvents(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"events": s.notifier.Recent(),
	})
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	principal, signedIn, err := s.identity.CurrentUser(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !signedIn {
		respondError(w, r, domainfeed.ErrAuthenticationRequired)
		return
	}
	respondJSON(w, http.StatusOK, s.prefs.For(r.Context(), principal.ID))
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	principal, signedIn, err := s.identity.CurrentUser(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !signedIn {
		respondError(w, r, domainfeed.ErrAuthenticationRequired)
		return
	}

	var prefs domainfeed.NotificationPreferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}

	if err := s.prefs.Save(r.Context(), principal.ID, prefs); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}
