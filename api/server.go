// Package api exposes the calendar price service over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/config"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/jobs"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/services"
)

const (
	ProjectName = "Google Flights Calendar Scraper"
	Version     = "1.0.0"
	Prefix      = "/api/v1"
)

// CacheAdmin is the cache surface the API exposes. storage.Store and
// storage.MemoCache implement it.
type CacheAdmin interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (models.CacheStats, error)
	ClearOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// JobLister reports on running scrape jobs. jobs.Scheduler implements it.
type JobLister interface {
	ActiveCount() int
	Jobs() []jobs.JobInfo
}

type Server struct {
	prices  services.Pricer
	cache   CacheAdmin
	jobs    JobLister
	cfg     config.Config
	log     *slog.Logger
	limiter *clientLimiter
}

func NewServer(prices services.Pricer, cache CacheAdmin, jobs JobLister, cfg config.Config, logger *slog.Logger) *Server {
	requests, window := cfg.APIRateLimit, cfg.APIRateWindow
	if requests <= 0 || window <= 0 {
		requests, window = DefaultClientRequests, DefaultClientWindow
	}
	return &Server{
		prices:  prices,
		cache:   cache,
		jobs:    jobs,
		cfg:     cfg,
		log:     logger,
		limiter: newClientLimiter(requests, window),
	}
}

// Handler returns the routed API with CORS, rate limiting and request
// logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET "+Prefix+"/health", s.handleHealth)
	mux.HandleFunc("GET "+Prefix+"/calendar-prices", s.handleCalendarPrices)
	mux.HandleFunc("GET "+Prefix+"/cache/stats", s.handleCacheStats)
	mux.HandleFunc("DELETE "+Prefix+"/cache/clear", s.handleCacheClear)
	mux.HandleFunc("GET "+Prefix+"/jobs", s.handleJobs)

	return s.logRequests(cors(s.rateLimit(mux)))
}

// NewHTTPServer wraps Handler with the listen address and timeouts. The
// write timeout leaves room for a full worker run.
func (s *Server) NewHTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WorkerTimeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if p := recover(); p != nil {
				s.log.Error("handler panic", "path", r.URL.Path, "panic", p)
				respondWithJSON(rec, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
			}
			s.log.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"elapsed", time.Since(started).Round(time.Millisecond))
		}()
		next.ServeHTTP(rec, r)
	})
}
