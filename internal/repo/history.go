// Package repo holds analysis result persistence: an in-memory history used
// for listing and mining, and an InfluxDB exporter for downstream tooling.
package repo

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/improstack/impro-engine/internal/models"
)

const defaultPageSize = 20

// HistoryRepo keeps analysis results in memory, newest first.
type HistoryRepo struct {
	mu      sync.RWMutex
	results []models.AnalysisResult
	maxSize int
}

// NewHistoryRepo creates a history repo bounded to maxSize results;
// maxSize <= 0 selects a default of 1024.
func NewHistoryRepo(maxSize int) *HistoryRepo {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &HistoryRepo{maxSize: maxSize}
}

// StoreAnalysis records a result, evicting the oldest entry when full.
func (r *HistoryRepo) StoreAnalysis(_ context.Context, result models.AnalysisResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.results = append(r.results, result)
	if len(r.results) > r.maxSize {
		r.results = r.results[len(r.results)-r.maxSize:]
	}
	return nil
}

// ListAnalyses returns stored analyses filtered by session, performer and
// time range, newest first, with integer-offset page tokens.
func (r *HistoryRepo) ListAnalyses(_ context.Context, req models.ListAnalysesRequest) (models.ListAnalysesResponse, error) {
	r.mu.RLock()
	filtered := make([]models.AnalysisResult, 0, len(r.results))
	for _, result := range r.results {
		if req.SessionID != "" && result.SessionID != req.SessionID {
			continue
		}
		if req.Performer != "" && !hasPerformer(result, req.Performer) {
			continue
		}
		if !req.Start.IsZero() && result.CreatedAt.Before(req.Start) {
			continue
		}
		if !req.End.IsZero() && result.CreatedAt.After(req.End) {
			continue
		}
		filtered = append(filtered, result)
	}
	r.mu.RUnlock()

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	offset := 0
	if req.PageToken != "" {
		parsed, err := strconv.Atoi(req.PageToken)
		if err == nil && parsed > 0 {
			offset = parsed
		}
	}
	if offset >= len(filtered) {
		return models.ListAnalysesResponse{}, nil
	}

	end := offset + pageSize
	next := ""
	if end < len(filtered) {
		next = strconv.Itoa(end)
	} else {
		end = len(filtered)
	}

	return models.ListAnalysesResponse{
		Analyses:      filtered[offset:end],
		NextPageToken: next,
	}, nil
}

// All returns a snapshot of every stored result, oldest first.
func (r *HistoryRepo) All(_ context.Context) []models.AnalysisResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.AnalysisResult(nil), r.results...)
}

func hasPerformer(result models.AnalysisResult, performer string) bool {
	for _, p := range result.Performers {
		if p == performer {
			return true
		}
	}
	return false
}
