package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/prometheus/prompb"

	"github.com/improstack/impro-engine/internal/cache"
	"github.com/improstack/impro-engine/internal/config"
	"github.com/improstack/impro-engine/internal/metrics"
	"github.com/improstack/impro-engine/internal/models"
	"github.com/improstack/impro-engine/internal/profiles"
	"github.com/improstack/impro-engine/internal/storage"
	"github.com/improstack/impro-engine/internal/utils"
)

// Analyzer runs one coordination analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error)
}

// SampleWriter accepts labelled sample batches from remote write.
type SampleWriter interface {
	Write(labels []storage.Label, samples []models.Sample) error
}

// HistoryLister serves stored analyses.
type HistoryLister interface {
	ListAnalyses(ctx context.Context, req models.ListAnalysesRequest) (models.ListAnalysesResponse, error)
	All(ctx context.Context) []models.AnalysisResult
}

// Handlers wires the HTTP endpoints to the analysis components.
type Handlers struct {
	logger    *slog.Logger
	analyzer  Analyzer
	store     SampleWriter
	history   HistoryLister
	miner     *profiles.Miner
	cache     cache.Provider
	defaults  config.AnalysisConfig
	resultTTL time.Duration
	latencies *utils.LatencyTracker
}

// NewHandlers constructs the endpoint set. Cache may be nil to disable
// result caching; history and miner may be nil when those endpoints are
// not served.
func NewHandlers(
	logger *slog.Logger,
	analyzer Analyzer,
	store SampleWriter,
	history HistoryLister,
	miner *profiles.Miner,
	cacheProvider cache.Provider,
	defaults config.AnalysisConfig,
	resultTTL time.Duration,
) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		logger:    logger,
		analyzer:  analyzer,
		store:     store,
		history:   history,
		miner:     miner,
		cache:     cacheProvider,
		defaults:  defaults,
		resultTTL: resultTTL,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Routes returns the served mux.
func (h *Handlers) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/write", h.remoteWrite)
	mux.HandleFunc("POST /api/v1/analyze", h.analyze)
	mux.HandleFunc("GET /api/v1/analyses", h.listAnalyses)
	mux.HandleFunc("GET /api/v1/profiles", h.profiles)
	mux.HandleFunc("GET /healthz", h.healthz)
	return mux
}

// remoteWrite ingests a snappy-compressed Prometheus remote write payload.
func (h *Handlers) remoteWrite(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusInternalServerError)
		return
	}
	defer r.Body.Close()

	decoded, err := snappy.Decode(nil, body)
	if err != nil {
		http.Error(w, "cannot decode snappy", http.StatusBadRequest)
		return
	}

	var request prompb.WriteRequest
	if err := proto.Unmarshal(decoded, &request); err != nil {
		http.Error(w, "cannot unmarshal protobuf", http.StatusBadRequest)
		return
	}

	written := 0
	for _, ts := range request.Timeseries {
		labels := make([]storage.Label, len(ts.Labels))
		for i, label := range ts.Labels {
			labels[i] = storage.Label{Name: label.Name, Value: label.Value}
		}

		samples := make([]models.Sample, len(ts.Samples))
		for i, sample := range ts.Samples {
			samples[i] = models.Sample{
				Timestamp: utils.UnixSeconds(sample.Timestamp),
				Value:     sample.Value,
			}
		}

		if len(labels) == 0 || len(samples) == 0 {
			continue
		}
		if err := h.store.Write(labels, samples); err != nil {
			h.logger.Warn("sample write failed", slog.Any("error", err))
			continue
		}
		written += len(samples)
	}
	if written > 0 {
		metrics.AddIngestedSamples("remote_write", written)
	}

	w.WriteHeader(http.StatusOK)
}

// analyzeRequest is the JSON body of POST /api/v1/analyze. Pointer fields
// distinguish "unset" from zero so configured defaults can apply.
type analyzeRequest struct {
	SessionID  string   `json:"session_id"`
	Performers []string `json:"performers,omitempty"`
	Start      string   `json:"start,omitempty"`
	End        string   `json:"end,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
	Tau        *int64   `json:"tau,omitempty"`
	Causal     *bool    `json:"causal,omitempty"`
	Clean      *bool    `json:"clean,omitempty"`
}

func (h *Handlers) analyze(w http.ResponseWriter, r *http.Request) {
	var wire analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if wire.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	req, err := h.buildAnalysisRequest(wire)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := analysisCacheKey(req)
	if h.cache != nil {
		if data, err := h.cache.Get(r.Context(), key); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(data)
			return
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			h.logger.Warn("cache lookup failed", slog.Any("error", err))
		}
	}

	start := time.Now()
	result, err := h.analyzer.Analyze(r.Context(), req)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveAnalysis(duration, metrics.OutcomeError)
		h.logger.Error("analysis failed", slog.String("session", req.SessionID), slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess)
	h.latencies.Observe(duration)
	if count := h.latencies.Count(); count >= 20 && count%20 == 0 {
		h.logger.Info("analysis latency",
			slog.Duration("p95", h.latencies.Percentile(95)),
			slog.Int("samples", count))
	}

	data, err := json.Marshal(result)
	if err != nil {
		http.Error(w, "failed to encode result", http.StatusInternalServerError)
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(r.Context(), key, data, h.resultTTL); err != nil {
			h.logger.Warn("cache store failed", slog.Any("error", err))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (h *Handlers) listAnalyses(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "history not configured", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	req := models.ListAnalysesRequest{
		SessionID: query.Get("session_id"),
		Performer: query.Get("performer"),
		PageToken: query.Get("page_token"),
	}
	if raw := query.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 0 {
			http.Error(w, "invalid page_size", http.StatusBadRequest)
			return
		}
		req.PageSize = size
	}
	if raw := query.Get("start"); raw != "" {
		t, err := utils.ParseRFC3339(raw)
		if err != nil {
			http.Error(w, "invalid start time", http.StatusBadRequest)
			return
		}
		req.Start = t
	}
	if raw := query.Get("end"); raw != "" {
		t, err := utils.ParseRFC3339(raw)
		if err != nil {
			http.Error(w, "invalid end time", http.StatusBadRequest)
			return
		}
		req.End = t
	}

	resp, err := h.history.ListAnalyses(r.Context(), req)
	if err != nil {
		h.logger.Error("list analyses failed", slog.Any("error", err))
		http.Error(w, "failed to list analyses", http.StatusInternalServerError)
		return
	}
	writeJSON(w, resp)
}

func (h *Handlers) profiles(w http.ResponseWriter, r *http.Request) {
	if h.history == nil || h.miner == nil {
		http.Error(w, "profiles not configured", http.StatusServiceUnavailable)
		return
	}

	mined, err := h.miner.Mine(r.Context(), h.history.All(r.Context()))
	if err != nil {
		h.logger.Error("profile mining failed", slog.Any("error", err))
		http.Error(w, "failed to mine profiles", http.StatusInternalServerError)
		return
	}
	if mined == nil {
		mined = []models.PerformerProfile{}
	}
	writeJSON(w, mined)
}

func (h *Handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "SERVING"})
}

func (h *Handlers) buildAnalysisRequest(wire analyzeRequest) (models.AnalysisRequest, error) {
	req := models.AnalysisRequest{
		SessionID:  wire.SessionID,
		Performers: append([]string(nil), wire.Performers...),
		Threshold:  h.defaults.Threshold,
		Tau:        h.defaults.Tau,
		Causal:     h.defaults.Causal,
		Clean:      h.defaults.Clean,
	}
	if wire.Threshold != nil {
		req.Threshold = *wire.Threshold
	}
	if wire.Tau != nil {
		req.Tau = *wire.Tau
	}
	if wire.Causal != nil {
		req.Causal = *wire.Causal
	}
	if wire.Clean != nil {
		req.Clean = *wire.Clean
	}

	if wire.Start != "" {
		t, err := utils.ParseRFC3339(wire.Start)
		if err != nil {
			return models.AnalysisRequest{}, fmt.Errorf("invalid start time: %w", err)
		}
		req.TimeRange.Start = t
	}
	if wire.End != "" {
		t, err := utils.ParseRFC3339(wire.End)
		if err != nil {
			return models.AnalysisRequest{}, fmt.Errorf("invalid end time: %w", err)
		}
		req.TimeRange.End = t
	}
	if !req.TimeRange.Start.IsZero() && !req.TimeRange.End.IsZero() && req.TimeRange.End.Before(req.TimeRange.Start) {
		return models.AnalysisRequest{}, fmt.Errorf("end time precedes start time")
	}
	return req, nil
}

// analysisCacheKey fingerprints a request so identical analyses are served
// from cache.
func analysisCacheKey(req models.AnalysisRequest) string {
	performers := append([]string(nil), req.Performers...)
	sort.Strings(performers)
	return fmt.Sprintf("analysis:%s:%s:%d:%d:%g:%d:%t:%t",
		req.SessionID,
		strings.Join(performers, ","),
		req.TimeRange.Start.Unix(),
		req.TimeRange.End.Unix(),
		req.Threshold,
		req.Tau,
		req.Causal,
		req.Clean,
	)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
