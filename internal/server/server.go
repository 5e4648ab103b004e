// Package server exposes the eligibility milestones (as ICS and JSON),
// Prometheus metrics and a health probe on the loopback interface.
package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/tartampluch/go-enroll/internal/config"
	"github.com/tartampluch/go-enroll/internal/engine"
)

// cacheItem stores the rendered calendar and its metadata for HTTP caching.
type cacheItem struct {
	data         []byte
	etag         string
	lastModified string // RFC1123 format required by HTTP headers
}

// CalendarServer serves the milestone calendar built from the household.
type CalendarServer struct {
	// cache is read on every request and replaced on every household change.
	cache      atomic.Pointer[cacheItem]
	milestones atomic.Pointer[cacheItem]
	Port       string

	// Metrics is mounted on RouteMetrics when set.
	Metrics http.Handler
	// Health reports backend reachability; nil means always healthy.
	Health func(ctx context.Context) error
}

// NewCalendarServer creates a new instance of the server.
func NewCalendarServer(port string) *CalendarServer {
	return &CalendarServer{
		Port: port,
	}
}

// Handler builds the router.
func (s *CalendarServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(config.HeaderAllow, config.AllowedMethods)
		http.Error(w, config.HTTPMsgMethodNotAll, http.StatusMethodNotAllowed)
	})

	r.Get(config.RouteCalendar, s.handleCalendarRequest)
	r.Head(config.RouteCalendar, s.handleCalendarRequest)
	r.Get(config.RouteMilestones, s.handleMilestonesRequest)
	r.Head(config.RouteMilestones, s.handleMilestonesRequest)
	r.Get(config.RouteHealth, s.handleHealth)
	if s.Metrics != nil {
		r.Method(http.MethodGet, config.RouteMetrics, s.Metrics)
	}
	return r
}

// Start initializes the HTTP server and blocks until the context is cancelled.
func (s *CalendarServer) Start(ctx context.Context) error {
	if s.Port == "" {
		return errors.New(config.ErrPortRequired)
	}

	srv := &http.Server{
		Addr:         config.LocalhostBindAddr + config.AddrSeparator + s.Port,
		Handler:      s.Handler(),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	serverError := make(chan error, config.ChannelBufferSize)

	go func() {
		slog.Info(config.MsgServerListen,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyPort, s.Port,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverError <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info(config.MsgServerStop, config.LogKeyComponent, config.CompServer)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: %w", config.ErrServerShutdown, err)
		}
		return nil

	case err := <-serverError:
		return fmt.Errorf("%s: %w", config.ErrServerStartup, err)
	}
}

// Update atomically replaces the served calendar. Identical content keeps
// its ETag and Last-Modified so clients are not told it changed.
func (s *CalendarServer) Update(data []byte) {
	if item, changed := nextItem(s.cache.Load(), data); changed {
		s.cache.Store(item)
		logCacheUpdate(config.RouteCalendar, item)
	}
}

// UpdateMilestones replaces the JSON milestone list. Names are left out;
// the endpoint is unauthenticated.
func (s *CalendarServer) UpdateMilestones(milestones []engine.Milestone) {
	doc := make([]milestoneJSON, 0, len(milestones))
	for _, m := range milestones {
		doc = append(doc, milestoneJSON{
			PersonID: string(m.PersonID),
			Kind:     m.Kind,
			Date:     m.Date.Format(config.DateFormatFullDash),
			Age:      m.Age,
		})
	}
	data, err := json.Marshal(doc)
	if err != nil {
		slog.Error(config.ErrEncodeMilestones,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
		return
	}
	if item, changed := nextItem(s.milestones.Load(), data); changed {
		s.milestones.Store(item)
		logCacheUpdate(config.RouteMilestones, item)
	}
}

type milestoneJSON struct {
	PersonID string `json:"personId"`
	Kind     string `json:"kind"`
	Date     string `json:"date"`
	Age      int    `json:"age"`
}

// nextItem builds the cache entry for data, reporting false when old already holds it.
func nextItem(old *cacheItem, data []byte) (*cacheItem, bool) {
	hash := sha256.Sum256(data)
	etag := fmt.Sprintf(config.FormatETag, hex.EncodeToString(hash[:]))
	if old != nil && old.etag == etag {
		return old, false
	}
	return &cacheItem{
		data:         data,
		etag:         etag,
		lastModified: time.Now().UTC().Format(http.TimeFormat),
	}, true
}

func logCacheUpdate(route string, item *cacheItem) {
	slog.Debug(config.MsgCacheUpdated,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyRoute, route,
		config.LogKeySizeBytes, len(item.data),
		config.LogKeyETag, item.etag,
	)
}

func (s *CalendarServer) handleCalendarRequest(w http.ResponseWriter, r *http.Request) {
	serveCached(w, r, s.cache.Load(), config.MimeTextCalendar)
}

func (s *CalendarServer) handleMilestonesRequest(w http.ResponseWriter, r *http.Request) {
	serveCached(w, r, s.milestones.Load(), config.MimeJSON)
}

// serveCached writes item with conditional GET support. A nil item means the
// household has not been published yet.
func serveCached(w http.ResponseWriter, r *http.Request, item *cacheItem, contentType string) {
	if item == nil {
		w.Header().Set(config.HeaderRetryAfter, config.RetryAfterSeconds)
		http.Error(w, config.HTTPMsgInitializing, http.StatusServiceUnavailable)
		return
	}

	h := w.Header()
	h.Set(config.HeaderContentType, contentType)
	h.Set(config.HeaderXContentType, config.MimeNoSniff)
	h.Set(config.HeaderCacheControl, config.CacheControlPrivate)
	h.Set(config.HeaderETag, item.etag)
	h.Set(config.HeaderLastModified, item.lastModified)

	if notModified(r, item) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, bytes.NewReader(item.data)); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}

// notModified applies If-None-Match, then If-Modified-Since.
func notModified(r *http.Request, item *cacheItem) bool {
	if match := r.Header.Get(config.HeaderIfNoneMatch); match != "" {
		return match == item.etag
	}
	since, err := http.ParseTime(r.Header.Get(config.HeaderIfModifiedSince))
	if err != nil {
		return false
	}
	modified, err := http.ParseTime(item.lastModified)
	return err == nil && !modified.After(since)
}

func (s *CalendarServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(config.HeaderContentType, config.MimeTextPlain)
	if s.Health != nil {
		if err := s.Health(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	_, _ = io.WriteString(w, config.HTTPMsgOK)
}
