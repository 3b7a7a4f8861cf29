package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/jobs"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/models"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/services"
	"github.com/MohamedBouchiba/Travliaq-Google-Flights-Scrapper/validate"
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Database   string `json:"database"`
	ActiveJobs int    `json:"active_jobs"`
}

type cacheStatsResponse struct {
	CacheInfo     cacheInfo          `json:"cache_info"`
	RecentScrapes []models.ScrapeLog `json:"recent_scrapes"`
}

type cacheInfo struct {
	TotalEntries int        `json:"total_entries"`
	TotalRoutes  int        `json:"total_routes"`
	OldestEntry  *time.Time `json:"oldest_entry"`
	NewestEntry  *time.Time `json:"newest_entry"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message, detail string) {
	s.log.Warn("api error", "status", code, "error", message, "detail", detail)
	respondWithJSON(w, code, errorResponse{Error: message, Detail: detail})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{
		"name":    ProjectName,
		"version": Version,
		"status":  "running",
		"health":  Prefix + "/health",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Version: Version, Database: "ok", ActiveJobs: s.jobs.ActiveCount()}
	if err := s.cache.Ping(r.Context()); err != nil {
		s.log.Error("health check failed", "err", err)
		resp.Status = "unhealthy"
		resp.Database = "error"
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCalendarPrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := models.ScrapeRequest{
		Origin:      q.Get("origin"),
		Destination: q.Get("destination"),
		StartDate:   q.Get("start_date"),
		EndDate:     q.Get("end_date"),
	}
	if v := q.Get("months"); v != "" {
		months, err := strconv.Atoi(v)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, "months must be an integer", v)
			return
		}
		req.Months = months
	}
	force := false
	if v := q.Get("force_refresh"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, "force_refresh must be a boolean", v)
			return
		}
		force = b
	}

	s.log.Info("calendar prices requested", "origin", req.Origin, "destination", req.Destination,
		"months", req.Months, "force", force)
	prices, err := s.prices.GetPrices(r.Context(), req, force)
	if err != nil {
		s.respondWithScrapeError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, prices)
}

// respondWithScrapeError maps service errors onto status codes.
func (s *Server) respondWithScrapeError(w http.ResponseWriter, err error) {
	var (
		invalid   *validate.Error
		timeout   *jobs.TimeoutError
		workerErr *jobs.WorkerError
	)
	switch {
	case errors.As(err, &invalid):
		s.respondWithError(w, http.StatusBadRequest, "Invalid request", invalid.Error())
	case errors.Is(err, services.ErrNoPrices):
		s.respondWithError(w, http.StatusNotFound, err.Error(), "")
	case errors.As(err, &timeout):
		s.respondWithError(w, http.StatusGatewayTimeout, "Scrape timed out", timeout.Error())
	case errors.As(err, &workerErr):
		s.respondWithError(w, http.StatusInternalServerError, "Scrape failed", workerErr.Message)
	default:
		detail := ""
		if s.cfg.Debug {
			detail = err.Error()
		}
		s.log.Error("unhandled error", "err", err)
		s.respondWithError(w, http.StatusInternalServerError, "Internal server error", detail)
	}
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.Stats(r.Context())
	if err != nil {
		s.respondWithScrapeError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cacheStatsResponse{
		CacheInfo: cacheInfo{
			TotalEntries: stats.TotalEntries,
			TotalRoutes:  stats.TotalRoutes,
			OldestEntry:  stats.OldestEntry,
			NewestEntry:  stats.NewestEntry,
		},
		RecentScrapes: stats.RecentScrapes,
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondWithError(w, http.StatusBadRequest, "days must be a positive integer", v)
			return
		}
		days = n
	}

	deleted, err := s.cache.ClearOlderThan(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		s.respondWithScrapeError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Cache cleared (> %d days)", days),
		"deleted": deleted,
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]any{
		"active": s.jobs.ActiveCount(),
		"jobs":   s.jobs.Jobs(),
	})
}
