package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
	"github.com/tartampluch/go-enroll/internal/metrics"
)

func serve(srv *CalendarServer, req *http.Request) *http.Response {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w.Result()
}

// -----------------------------------------------------------------------------
// Handler Tests
// -----------------------------------------------------------------------------

func TestHandler_ServingContent(t *testing.T) {
	srv := NewCalendarServer("0")
	expectedICS := []byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR")
	srv.Update(expectedICS)

	resp := serve(srv, httptest.NewRequest(http.MethodGet, config.RouteCalendar, nil))
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, config.MimeTextCalendar, resp.Header.Get(config.HeaderContentType))
	assert.Equal(t, config.MimeNoSniff, resp.Header.Get(config.HeaderXContentType))
	assert.Contains(t, resp.Header.Get(config.HeaderCacheControl), "no-cache")
	assert.NotEmpty(t, resp.Header.Get(config.HeaderETag))

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, expectedICS, body)
}

func TestHandler_Milestones(t *testing.T) {
	srv := NewCalendarServer("0")

	resp := serve(srv, httptest.NewRequest(http.MethodGet, config.RouteMilestones, nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()

	srv.UpdateMilestones([]engine.Milestone{{
		UID:      "uid-1",
		PersonID: "m1",
		Name:     "Kim Doe",
		Kind:     config.MilestoneMinor,
		Date:     time.Date(2034, 5, 5, 0, 0, 0, 0, time.UTC),
		Age:      19,
	}})

	resp = serve(srv, httptest.NewRequest(http.MethodGet, config.RouteMilestones, nil))
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, config.MimeJSON, resp.Header.Get(config.HeaderContentType))

	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `[{"personId":"m1","kind":"`+config.MilestoneMinor+`","date":"2034-05-05","age":19}]`, string(body))
	assert.NotContains(t, string(body), "Kim", "names stay out of the JSON feed")
}

func TestHandler_EmptyMilestonesIsArray(t *testing.T) {
	srv := NewCalendarServer("0")
	srv.UpdateMilestones(nil)

	resp := serve(srv, httptest.NewRequest(http.MethodGet, config.RouteMilestones, nil))
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "[]", string(body))
}

func TestHandler_IfModifiedSince(t *testing.T) {
	srv := NewCalendarServer("0")
	srv.Update([]byte("BEGIN:VCALENDAR"))

	req := httptest.NewRequest(http.MethodGet, config.RouteCalendar, nil)
	req.Header.Set(config.HeaderIfModifiedSince, time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	resp := serve(srv, req)
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
	_ = resp.Body.Close()

	req = httptest.NewRequest(http.MethodGet, config.RouteCalendar, nil)
	req.Header.Set(config.HeaderIfModifiedSince, time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat))
	resp = serve(srv, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	// A stale ETag wins over a fresh date.
	req = httptest.NewRequest(http.MethodGet, config.RouteCalendar, nil)
	req.Header.Set(config.HeaderIfNoneMatch, `"stale"`)
	req.Header.Set(config.HeaderIfModifiedSince, time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	resp = serve(srv, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestHandler_HeadHasNoBody(t *testing.T) {
	srv := NewCalendarServer("0")
	srv.Update([]byte("BEGIN:VCALENDAR"))

	resp := serve(srv, httptest.NewRequest(http.MethodHead, config.RouteCalendar, nil))
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Empty(t, body)
}

func TestHandler_Caching(t *testing.T) {
	srv := NewCalendarServer("0")
	srv.Update([]byte("DATA_VERSION_1"))

	resp1 := serve(srv, httptest.NewRequest(http.MethodGet, config.RouteCalendar, nil))
	etag := resp1.Header.Get(config.HeaderETag)
	require.NotEmpty(t, etag)

	req2 := httptest.NewRequest(http.MethodGet, config.RouteCalendar, nil)
	req2.Header.Set(config.HeaderIfNoneMatch, etag)
	resp2 := serve(srv, req2)
	defer func() { _ = resp2.Body.Close() }()

	assert.Equal(t, http.StatusNotModified, resp2.StatusCode)
	body, _ := io.ReadAll(resp2.Body)
	assert.Empty(t, body, "Body must be empty on 304 Not Modified")
}

func TestUpdate_SameContentKeepsLastModified(t *testing.T) {
	srv := NewCalendarServer("0")
	srv.Update([]byte("A"))
	first := srv.cache.Load()

	srv.Update([]byte("A"))
	assert.Same(t, first, srv.cache.Load())

	srv.Update([]byte("B"))
	assert.NotEqual(t, first.etag, srv.cache.Load().etag)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	srv := NewCalendarServer("0")

	resp := serve(srv, httptest.NewRequest(http.MethodPost, config.RouteCalendar, nil))
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, config.AllowedMethods, resp.Header.Get(config.HeaderAllow))
}

func TestHandler_Initializing(t *testing.T) {
	srv := NewCalendarServer("0")

	resp := serve(srv, httptest.NewRequest(http.MethodGet, config.RouteCalendar, nil))
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, config.RetryAfterSeconds, resp.Header.Get(config.HeaderRetryAfter))
}

func TestHandler_Health(t *testing.T) {
	srv := NewCalendarServer("0")

	resp := serve(srv, httptest.NewRequest(http.MethodGet, config.RouteHealth, nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, config.HTTPMsgOK, string(body))

	srv.Health = func(context.Context) error { return errors.New("redis down") }
	resp = serve(srv, httptest.NewRequest(http.MethodGet, config.RouteHealth, nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandler_Metrics(t *testing.T) {
	srv := NewCalendarServer("0")
	resp := serve(srv, httptest.NewRequest(http.MethodGet, config.RouteMetrics, nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "not mounted without a handler")

	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg).Submitted()
	srv.Metrics = metrics.Handler(reg)

	resp = serve(srv, httptest.NewRequest(http.MethodGet, config.RouteMetrics, nil))
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "go_enroll_submissions_total")
}

// -----------------------------------------------------------------------------
// Concurrency Tests
// -----------------------------------------------------------------------------

// TestServer_RaceCondition runs writers and readers concurrently. Run with -race.
func TestServer_RaceCondition(t *testing.T) {
	srv := NewCalendarServer("0")
	handler := srv.Handler()
	var wg sync.WaitGroup
	end := time.Now().Add(300 * time.Millisecond)

	for w := 0; w < 5; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; time.Now().Before(end); i++ {
				srv.Update([]byte(fmt.Sprintf("VERSION:%d-%d", id, i)))
				time.Sleep(time.Microsecond)
			}
		}(w)
	}

	for r := 0; r < 20; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, config.RouteCalendar, nil))
				if w.Code != http.StatusOK && w.Code != http.StatusServiceUnavailable {
					t.Errorf("Unexpected status code during race test: %d", w.Code)
				}
			}
		}()
	}

	wg.Wait()
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

func TestServer_StartRequiresPort(t *testing.T) {
	err := NewCalendarServer("").Start(context.Background())
	assert.EqualError(t, err, config.ErrPortRequired)
}

func TestServer_Lifecycle(t *testing.T) {
	const port = "18099"

	srv := NewCalendarServer(port)
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)

	go func() {
		errChan <- srv.Start(ctx)
	}()

	url := "http://127.0.0.1:" + port + config.RouteCalendar

	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return true
	}, 2*time.Second, 50*time.Millisecond, "Server failed to bind/listen in time")

	resp, err := http.Get(url)
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_ = resp.Body.Close()

	srv.Update([]byte("BEGIN:VCALENDAR\nEND:VCALENDAR"))

	resp, err = http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.Contains(t, string(body), "BEGIN:VCALENDAR")

	cancel()

	select {
	case err := <-errChan:
		assert.NoError(t, err, "Server should shutdown gracefully without error")
	case <-time.After(5 * time.Second):
		t.Fatal("Server shutdown timed out")
	}
}
