package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/news-crawler/internal/crawler"
	"github.com/JakeFAU/news-crawler/internal/id/uuid"
)

const (
	defaultJobLimit     = 50
	maxJobLimit         = 500
	defaultArticleLimit = 100
	maxArticleLimit     = 1000
)

// getJob handles GET /v1/jobs/{job_id}. It returns {"job": {...}}, 400 for
// malformed IDs, or 404 when the job does not exist.
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if !uuid.Valid(jobID) {
		writeError(w, http.StatusBadRequest, "invalid job_id")
		return
	}
	job, err := s.deps.Jobs.GetJob(r.Context(), jobID)
	if err != nil {
		s.storeError(w, "load job", err, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": toJobDTO(job)})
}

func (s *Server) listSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.deps.Sources.ListSources(r.Context())
	if err != nil {
		s.storeError(w, "list sources", err, "")
		return
	}
	if sources == nil {
		sources = []crawler.Source{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": sources})
}

// listSourceJobs handles GET /v1/sources/{source_id}/jobs?status=&limit=&offset=,
// newest first.
func (s *Server) listSourceJobs(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	limit, offset, err := parseLimitOffset(r, defaultJobLimit, maxJobLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	status, err := parseStatus(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.deps.Sources.GetSource(r.Context(), sourceID); err != nil {
		s.storeError(w, "load source", err, "source not found")
		return
	}
	jobs, err := s.deps.Jobs.ListJobs(r.Context(), crawler.JobFilter{
		SourceID: sourceID,
		Status:   status,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.storeError(w, "list jobs", err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": toJobDTOs(jobs)})
}

// listSourceArticles handles GET /v1/sources/{source_id}/articles?limit=&offset=.
func (s *Server) listSourceArticles(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "source_id")
	limit, offset, err := parseLimitOffset(r, defaultArticleLimit, maxArticleLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.deps.Sources.GetSource(r.Context(), sourceID); err != nil {
		s.storeError(w, "load source", err, "source not found")
		return
	}
	articles, err := s.deps.Articles.ListArticlesBySource(r.Context(), sourceID)
	if err != nil {
		s.logger.Error("list articles failed", zap.String("source_id", sourceID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	total := len(articles)
	writeJSON(w, http.StatusOK, map[string]any{
		"total":    total,
		"articles": page(articles, limit, offset),
	})
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}

func parseStatus(input string) (crawler.JobStatus, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "":
		return "", nil
	case "pending":
		return crawler.JobStatusPending, nil
	case "in_progress", "running":
		return crawler.JobStatusInProgress, nil
	case "success":
		return crawler.JobStatusSuccess, nil
	case "failed", "error", "failure":
		return crawler.JobStatusFailed, nil
	default:
		return "", errors.New("invalid status")
	}
}

type jobDTO struct {
	crawler.CrawlJob
	DurationMs *int64 `json:"duration_ms,omitempty"`
}

func toJobDTO(job crawler.CrawlJob) jobDTO {
	dto := jobDTO{CrawlJob: job}
	if job.StartedAt != nil && job.FinishedAt != nil {
		ms := job.FinishedAt.Sub(*job.StartedAt).Milliseconds()
		dto.DurationMs = &ms
	}
	return dto
}

func toJobDTOs(in []crawler.CrawlJob) []jobDTO {
	out := make([]jobDTO, 0, len(in))
	for _, job := range in {
		out = append(out, toJobDTO(job))
	}
	return out
}
