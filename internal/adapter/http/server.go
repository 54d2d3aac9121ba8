// Package http exposes the viewer-facing query API plus the operational
// endpoints (health, readiness, metrics, refresh control).
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/shelter-status-service/internal/domain"
	"github.com/couchcryptid/shelter-status-service/internal/query"
)

const sessionCookie = "session_id"

// SnapshotProvider yields the current dataset snapshot, nil before the first
// successful refresh.
type SnapshotProvider interface {
	Current() *domain.Snapshot
}

// RefreshController drives the background refresh scheduler.
type RefreshController interface {
	Trigger() bool
	Interval() time.Duration
	SetInterval(d time.Duration) time.Duration
}

// SessionProvider resolves and mutates per-viewer session state.
type SessionProvider interface {
	GetOrInit(ctx context.Context, sessionID, addr string) domain.SessionContext
	SetLanguage(ctx context.Context, sessionID, addr string, lang domain.Language) (domain.SessionContext, error)
}

// ReadinessChecker reports whether the service can answer queries.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server routes viewer queries against the snapshot and session state.
type Server struct {
	httpServer *http.Server
	snapshots  SnapshotProvider
	refresher  RefreshController
	sessions   SessionProvider
	engine     *query.Engine
	logger     *slog.Logger
}

// NewServer wires all routes onto a mux with production timeouts.
func NewServer(addr string, snapshots SnapshotProvider, refresher RefreshController,
	sessions SessionProvider, engine *query.Engine, ready ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		snapshots: snapshots,
		refresher: refresher,
		sessions:  sessions,
		engine:    engine,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := ready.CheckReadiness(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("PUT /refresh/interval", s.handleSetInterval)
	mux.HandleFunc("GET /shelters", s.handleShelters)
	mux.HandleFunc("POST /session/language", s.handleSetLanguage)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleRefresh kicks off a background cycle without waiting for it. A
// trigger during an in-flight cycle coalesces into it.
func (s *Server) handleRefresh(w http.ResponseWriter, _ *http.Request) {
	if s.refresher.Trigger() {
		writeJSON(w, http.StatusAccepted, map[string]string{"message": "refresh started"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "refresh already in progress"})
}

func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Interval *int `json:"interval"`
		Minutes  *int `json:"minutes"` // accepted alias for interval
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	minutes := body.Interval
	if minutes == nil {
		minutes = body.Minutes
	}
	if minutes == nil || *minutes < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "interval must be at least 1 minute"})
		return
	}
	effective := s.refresher.SetInterval(time.Duration(*minutes) * time.Minute)
	s.logger.Info("refresh interval updated", "interval", effective)
	writeJSON(w, http.StatusOK, map[string]any{"interval": int(effective.Minutes())})
}

// sheltersResponse is the table/aggregate view payload. Cities lists the
// snapshot's distinct cities so clients can build filter options.
type sheltersResponse struct {
	Items       []domain.Shelter `json:"items"`
	Aggregates  query.Aggregates `json:"aggregates"`
	Cities      []string         `json:"cities"`
	RefreshedAt time.Time        `json:"refreshedAt"`
	Language    domain.Language  `json:"language"`
}

// mapResponse is the map-oriented view payload, including the synthetic
// viewer marker.
type mapResponse struct {
	Points      []query.MapPoint `json:"points"`
	Aggregates  query.Aggregates `json:"aggregates"`
	RefreshedAt time.Time        `json:"refreshedAt"`
	Language    domain.Language  `json:"language"`
}

func (s *Server) handleShelters(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Current()
	if snap == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "dataset not available yet"})
		return
	}

	filters, err := parseFilters(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sessionID := s.sessionID(w, r)
	sc := s.sessions.GetOrInit(r.Context(), sessionID, clientAddr(r))

	res := s.engine.Query(snap, filters, sc)

	if r.URL.Query().Get("view") == "map" {
		writeJSON(w, http.StatusOK, mapResponse{
			Points:      s.engine.MapView(res, sc),
			Aggregates:  res.Aggregates,
			RefreshedAt: snap.RefreshedAt,
			Language:    sc.Language,
		})
		return
	}
	writeJSON(w, http.StatusOK, sheltersResponse{
		Items:       res.Items,
		Aggregates:  res.Aggregates,
		Cities:      snap.Cities(),
		RefreshedAt: snap.RefreshedAt,
		Language:    sc.Language,
	})
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	lang := domain.ParseLanguage(body.Language)

	sessionID := s.sessionID(w, r)
	sc, err := s.sessions.SetLanguage(r.Context(), sessionID, clientAddr(r), lang)
	if err != nil {
		s.logger.Error("language override failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session store unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"language": string(sc.Language)})
}

// parseFilters builds the predicate set from query parameters. Absent
// parameters disable their predicate; there are no "all" sentinels.
func parseFilters(r *http.Request) (query.Filters, error) {
	q := r.URL.Query()
	f := query.Filters{Search: q.Get("q")}

	f.Cities = splitParam(q.Get("cities"))

	for _, raw := range splitParam(q.Get("statuses")) {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return query.Filters{}, &badParamError{param: "statuses", value: raw}
		}
		f.Statuses = append(f.Statuses, status)
	}

	var err error
	if f.Verified, err = parseBoolParam(q.Get("verified"), "verified"); err != nil {
		return query.Filters{}, err
	}
	if f.PetFriendly, err = parseBoolParam(q.Get("pet"), "pet"); err != nil {
		return query.Filters{}, err
	}
	return f, nil
}

type badParamError struct {
	param string
	value string
}

func (e *badParamError) Error() string {
	return "invalid value " + strconv.Quote(e.value) + " for parameter " + strconv.Quote(e.param)
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseBoolParam(raw, name string) (*bool, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, &badParamError{param: name, value: raw}
	}
	return &v, nil
}

// sessionID returns the viewer's session id from the cookie or X-Session-ID
// header, minting and setting a new one when absent.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if id := r.Header.Get("X-Session-ID"); id != "" {
		return id
	}

	id := newSessionID()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// clientAddr prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
