package web

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chorenote/internal/config"
	"chorenote/internal/daily"
	"chorenote/internal/model"
	"chorenote/internal/printer"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) (*Server, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Quote.Enabled = false
	cfg.Note = config.NoteConfig{}
	cfg.Events = []config.EventConfig{
		{Name: "Vaccum Floor", StartDate: "2023-07-23", Frequency: "2d"},
		{Name: "Feed fish", StartDate: "2023-07-23", Frequency: "7d"},
	}
	for _, m := range mutate {
		m(cfg)
	}
	require.NoError(t, cfg.Validate())

	var out bytes.Buffer
	current := func() *config.Config { return cfg }
	s := NewServer(current, daily.NewRunner(current, daily.WithPrinter(printer.TextPrinter{W: &out, Width: 32})))
	s.now = func() time.Time { return time.Date(2023, time.July, 30, 9, 0, 0, 0, time.UTC) }
	return s, &out
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestDue(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		target string
		want   []string
	}{
		{"/api/due", []string{"Feed fish"}}, // today is 2023-07-30
		{"/api/due?date=2023-07-23", []string{"Vaccum Floor", "Feed fish"}},
		{"/api/due?date=2023-07-25", []string{"Vaccum Floor"}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodGet, tt.target)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var p model.DailyPlan
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
			assert.Equal(t, tt.want, p.Tasks)
			assert.False(t, p.Printed)
		})
	}
}

func TestDueRejectsBadDate(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/due?date=23-07-2023")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestUpcoming(t *testing.T) {
	s, _ := newTestServer(t)

	for _, engine := range []string{"", "rrule"} {
		t.Run("engine="+engine, func(t *testing.T) {
			rec := do(t, s.Handler(), http.MethodGet, "/api/upcoming?count=2&after=2023-07-23&engine="+engine)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp upcomingResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			var got []string
			for _, o := range resp.Occurrences {
				got = append(got, o.Date.String()+" "+o.Name)
			}
			assert.Equal(t, []string{
				"2023-07-25 Vaccum Floor",
				"2023-07-27 Vaccum Floor",
				"2023-07-30 Feed fish",
				"2023-08-06 Feed fish",
			}, got)
		})
	}
}

func TestUpcomingRejectsBadCount(t *testing.T) {
	s, _ := newTestServer(t)
	for _, q := range []string{"count=-1", "count=abc", "count=100000"} {
		rec := do(t, s.Handler(), http.MethodGet, "/api/upcoming?"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestCalendarICS(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/calendar.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))

	cal, err := ical.ParseCalendar(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	assert.Len(t, cal.Events(), 2)
}

func TestRunIsRateLimited(t *testing.T) {
	s, out := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/run?date=2023-07-23")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p model.DailyPlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.True(t, p.Printed)
	assert.Contains(t, out.String(), "- [ ] Feed fish")

	rec = do(t, h, http.MethodPost, "/api/run?date=2023-07-23")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRunRequiresPost(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/run")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health").Code, "health stays open")
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/due").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/due", nil)
	req.SetBasicAuth("admin", "wrong")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/due", nil)
	req.SetBasicAuth("admin", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBasicAuthFollowsConfigReload(t *testing.T) {
	s, _ := newTestServer(t)
	var live atomic.Pointer[config.Config]
	live.Store(s.config())
	s.config = live.Load
	h := s.Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/due?date=2023-07-23").Code)

	withAuth := *live.Load()
	withAuth.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	live.Store(&withAuth)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/due?date=2023-07-23").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/run?date=2023-07-23").Code)

	emptyUser := withAuth
	emptyUser.BasicAuth = &config.BasicAuthConfig{Username: "", Password: "secret"}
	live.Store(&emptyUser)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/due?date=2023-07-23").Code,
		"empty credentials leave auth off")
}

func TestRunBadDateDoesNotConsumeRateLimit(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/run?date=not-a-date")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/run?date=2023-07-23")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
