package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"chorenote/internal/config"
	"chorenote/internal/daily"
	"chorenote/internal/ics"
	appLog "chorenote/internal/log"
	"chorenote/internal/model"
	"chorenote/internal/recur"
)

const (
	defaultUpcoming = 10
	maxUpcoming     = 366

	// Manual runs may print, so they are throttled.
	runInterval = 10 * time.Second
)

// Server exposes the chore schedule over a small local HTTP API.
type Server struct {
	config func() *config.Config
	runner *daily.Runner
	now    func() time.Time
	mux    *http.ServeMux

	runLimiter *rate.Limiter
}

// NewServer constructs a new Server. current returns the live config.
func NewServer(current func() *config.Config, runner *daily.Runner) *Server {
	s := &Server{
		config:     current,
		runner:     runner,
		now:        time.Now,
		mux:        http.NewServeMux(),
		runLimiter: rate.NewLimiter(rate.Every(runInterval), 1),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	if _, ok := s.basicAuth(); ok {
		appLog.Info("HTTP basic auth enabled")
	}
	return s.basicAuthMiddleware(s.mux)
}

// basicAuth returns the configured credentials. Empty username or password
// leaves auth off.
func (s *Server) basicAuth() (*config.BasicAuthConfig, bool) {
	cfg := s.config()
	if cfg == nil || cfg.BasicAuth == nil {
		return nil, false
	}
	ba := cfg.BasicAuth
	return ba, ba.Username != "" && ba.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
// Credentials are read per request so config reloads apply immediately.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		ba, ok := s.basicAuth()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, ba.Username) || !secureCompare(p, ba.Password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="chorenote", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/due", s.handleDue)
	s.mux.HandleFunc("GET /api/upcoming", s.handleUpcoming)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)
	s.mux.HandleFunc("POST /api/run", s.handleRun)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// today is the current date in the configured timezone.
func (s *Server) today() recur.Date {
	loc, err := s.config().Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err)
		loc = time.Local
	}
	return recur.DateOf(s.now().In(loc))
}

// dateParam reads a YYYY-MM-DD query parameter, defaulting to today.
func (s *Server) dateParam(r *http.Request, name string) (recur.Date, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return s.today(), nil
	}
	return recur.ParseDate(v)
}

// handleDue returns the chores due on a date.
//
// GET /api/due?date=2023-07-23
func (s *Server) handleDue(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.runner.Plan(date)
	if err != nil {
		appLog.Error("api due: plan failed", err, "date", date.String())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// upcomingResponse is the JSON response shape for /api/upcoming.
type upcomingResponse struct {
	After       recur.Date         `json:"after"`
	Engine      string             `json:"engine"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

// handleUpcoming lists the next occurrences of every chore, ordered by date
// and then by config order.
//
// GET /api/upcoming?count=10&after=2023-07-23&engine=rrule
//   - count:  occurrences per chore (default 10, max 366)
//   - after:  exclusive start date (default today)
//   - engine: "rrule" to expand via the iCalendar rule instead
func (s *Server) handleUpcoming(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count := parseIntDefault(q.Get("count"), defaultUpcoming)
	if count < 0 || count > maxUpcoming {
		writeError(w, http.StatusBadRequest, "count must be between 0 and "+strconv.Itoa(maxUpcoming))
		return
	}
	after, err := s.dateParam(r, "after")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.config().EventDefinitions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	engine := "recur"
	expand := recur.NextOccurrences
	if q.Get("engine") == "rrule" {
		engine = "rrule"
		expand = ics.Expand
	}

	occs := make([]model.Occurrence, 0, len(events)*min(count, defaultUpcoming))
	for _, ev := range events {
		dates, err := expand(ev, after, count)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, d := range dates {
			occs = append(occs, model.Occurrence{Name: ev.Name, Date: d, Every: ev.FrequencyDays})
		}
	}
	slices.SortStableFunc(occs, func(a, b model.Occurrence) int {
		return int(a.Date.DaysSince(b.Date))
	})

	writeJSON(w, http.StatusOK, upcomingResponse{After: after, Engine: engine, Occurrences: occs})
}

// handleICS serves the chore list as a subscribable calendar.
func (s *Server) handleICS(w http.ResponseWriter, _ *http.Request) {
	events, err := s.config().EventDefinitions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="chores.ics"`)
	if err := ics.Export(w, events, s.now()); err != nil {
		appLog.Error("ics export failed", err)
	}
}

// handleRun triggers a daily run, printing included.
//
// POST /api/run?date=2023-07-23
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	date, err := s.dateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !s.runLimiter.Allow() {
		w.Header().Set("Retry-After", strconv.Itoa(int(runInterval.Seconds())))
		writeError(w, http.StatusTooManyRequests, "a run was triggered recently; try again later")
		return
	}

	appLog.Info("manual run requested", "date", date.String(), "remote", r.RemoteAddr)
	p, err := s.runner.Run(r.Context(), date)
	if err != nil {
		type runResp struct {
			Plan  model.DailyPlan `json:"plan"`
			Error string          `json:"error"`
		}
		writeJSON(w, http.StatusBadGateway, runResp{Plan: p, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
