package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/improstack/impro-engine/internal/models"
	"github.com/improstack/impro-engine/internal/pointproc"
	"github.com/improstack/impro-engine/internal/storage"
)

const (
	defaultThreshold = 5
	defaultTau       = 2

	timelineLimit = 20
)

// SignalStore provides read access to recorded controller signals.
type SignalStore interface {
	Read(from, to int64, matchers []storage.Label) ([]storage.Series, error)
}

// Exporter pushes analysis output to an external time-series backend.
type Exporter interface {
	ExportOnsets(ctx context.Context, sessionID, performer string, onsets []int64) error
	ExportAnalysis(ctx context.Context, result models.AnalysisResult) error
}

// HistoryStore persists analysis results for later listing and mining.
type HistoryStore interface {
	StoreAnalysis(ctx context.Context, result models.AnalysisResult) error
}

// Pipeline orchestrates the onset detection + match counting flow.
type Pipeline struct {
	logger   *slog.Logger
	store    SignalStore
	exporter Exporter
	history  HistoryStore
	rules    *RuleEngine
	coupling *CouplingEngine
}

// NewPipeline constructs an analysis pipeline. Exporter and history may be
// nil; the pipeline then skips those stages.
func NewPipeline(
	logger *slog.Logger,
	store SignalStore,
	exporter Exporter,
	history HistoryStore,
	rules *RuleEngine,
	coupling *CouplingEngine,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger:   logger,
		store:    store,
		exporter: exporter,
		history:  history,
		rules:    rules,
		coupling: coupling,
	}
}

// Analyze runs the full coordination analysis for one session window.
func (p *Pipeline) Analyze(ctx context.Context, req models.AnalysisRequest) (models.AnalysisResult, error) {
	if p.store == nil {
		return models.AnalysisResult{}, fmt.Errorf("signal store not configured")
	}
	if req.SessionID == "" {
		return models.AnalysisResult{}, fmt.Errorf("session_id is required")
	}

	threshold := req.Threshold
	if threshold == 0 {
		threshold = defaultThreshold
	}
	tau := req.Tau
	if tau <= 0 {
		tau = defaultTau
	}

	onsets, performers, err := p.detect(req, threshold, tau)
	if err != nil {
		return models.AnalysisResult{}, err
	}
	if len(performers) < 2 {
		return models.AnalysisResult{}, fmt.Errorf("session %s: need at least two performers, found %d", req.SessionID, len(performers))
	}

	opts := pointproc.MatchOptions{Tau: tau, Causal: req.Causal, Clean: req.Clean}

	pairs, duetTotal, duetFraction := p.matchPairs(performers, onsets, opts)

	trioTotal, trioFraction := 0.0, 0.0
	if len(performers) == 3 {
		ensemble := pointproc.EnsembleOptions{Tau: tau, Causal: req.Causal, Clean: req.Clean}
		trioTotal = pointproc.TrioCount(onsets[performers[0]], onsets[performers[1]], onsets[performers[2]], ensemble)
		ensemble.Fraction = true
		trioFraction = pointproc.TrioCount(onsets[performers[0]], onsets[performers[1]], onsets[performers[2]], ensemble)
	}

	couplingResult := CouplingResult{}
	if p.coupling != nil {
		couplingResult = p.coupling.Evaluate(performers, onsets, tau, req.Clean)
		for _, note := range couplingResult.Notes {
			p.logger.Debug("coupling note", slog.String("note", note))
		}
	}

	synchrony := synchronyFromFraction(duetFraction, trioTotal)
	timeline := p.buildTimeline(performers, onsets, opts)

	counts := make(map[string]int, len(performers))
	for _, performer := range performers {
		counts[performer] = len(onsets[performer])
	}

	result := models.AnalysisResult{
		AnalysisID:   uuid.NewString(),
		SessionID:    req.SessionID,
		Performers:   performers,
		OnsetCounts:  counts,
		PairMatches:  pairs,
		DuetTotal:    duetTotal,
		TrioTotal:    trioTotal,
		DuetFraction: duetFraction,
		TrioFraction: trioFraction,
		Coupling: models.CouplingSummary{
			Leader:    couplingResult.Leader,
			Score:     couplingResult.Score,
			Notes:     couplingResult.Notes,
			Asymmetry: couplingResult.Asymmetry,
		},
		Synchrony:  synchrony,
		Confidence: calibrateConfidence(p.baseConfidence(counts, duetTotal, duetFraction, trioTotal), couplingResult.Score),
		Timeline:   timeline,
		CreatedAt:  time.Now().UTC(),
	}
	result.Annotations = p.rules.Annotate(result)

	if p.exporter != nil {
		for _, performer := range performers {
			if err := p.exporter.ExportOnsets(ctx, req.SessionID, performer, onsets[performer]); err != nil {
				p.logger.Warn("onset export failed", slog.String("performer", performer), slog.Any("error", err))
			}
		}
		if err := p.exporter.ExportAnalysis(ctx, result); err != nil {
			p.logger.Warn("analysis export failed", slog.Any("error", err))
		}
	}

	if p.history != nil {
		if err := p.history.StoreAnalysis(ctx, result); err != nil {
			p.logger.Warn("failed to persist analysis", slog.Any("error", err))
		}
	}

	return result, nil
}

// detect reads the session window and returns deduped onset series keyed by
// performer, plus the sorted performer list.
func (p *Pipeline) detect(req models.AnalysisRequest, threshold float64, tau int64) (map[string][]int64, []string, error) {
	from, to := int64(0), int64(0)
	if !req.TimeRange.Start.IsZero() {
		from = req.TimeRange.Start.Unix()
	}
	if !req.TimeRange.End.IsZero() {
		to = req.TimeRange.End.Unix()
	}

	series, err := p.store.Read(from, to, []storage.Label{{Name: models.LabelSession, Value: req.SessionID}})
	if err != nil {
		return nil, nil, fmt.Errorf("read session %s: %w", req.SessionID, err)
	}

	wanted := make(map[string]struct{}, len(req.Performers))
	for _, performer := range req.Performers {
		wanted[performer] = struct{}{}
	}

	onsets := make(map[string][]int64)
	for _, s := range series {
		performer := labelValue(s.Labels, models.LabelPerformer)
		if performer == "" {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[performer]; !ok {
				continue
			}
		}
		detected := pointproc.DetectOnsetTimes(s.Samples, threshold)
		if req.Clean {
			detected = pointproc.Dedupe(detected, tau)
		} else {
			detected = pointproc.Dedupe(detected, 0)
		}
		onsets[performer] = append(onsets[performer], detected...)
	}

	performers := make([]string, 0, len(onsets))
	for performer := range onsets {
		sort.Slice(onsets[performer], func(i, j int) bool {
			return onsets[performer][i] < onsets[performer][j]
		})
		performers = append(performers, performer)
	}
	sort.Strings(performers)
	return onsets, performers, nil
}

// matchPairs computes directional match statistics for every ordered pair.
// The duet total halves for bidirectionality; the fraction additionally
// normalises per target series and per performer.
func (p *Pipeline) matchPairs(performers []string, onsets map[string][]int64, opts pointproc.MatchOptions) ([]models.PairMatch, float64, float64) {
	pairs := make([]models.PairMatch, 0, len(performers)*(len(performers)-1))
	total := 0.0
	fractionSum := 0.0

	for _, src := range performers {
		for _, dst := range performers {
			if src == dst {
				continue
			}
			count := len(pointproc.Matches(onsets[src], onsets[dst], opts))
			fraction := 0.0
			if n := len(onsets[dst]); n > 0 {
				fraction = float64(count) / float64(n)
			}
			pairs = append(pairs, models.PairMatch{
				Source:   src,
				Target:   dst,
				Count:    count,
				Fraction: fraction,
			})
			total += float64(count)
			fractionSum += fraction
		}
	}

	duetTotal := total / 2
	duetFraction := fractionSum / 2 / float64(len(performers))
	return pairs, duetTotal, duetFraction
}

func (p *Pipeline) buildTimeline(performers []string, onsets map[string][]int64, opts pointproc.MatchOptions) []models.TimelineEvent {
	timeline := make([]models.TimelineEvent, 0)

	for i := 0; i < len(performers); i++ {
		for j := i + 1; j < len(performers); j++ {
			a, b := performers[i], performers[j]
			for _, ts := range pointproc.Matches(onsets[a], onsets[b], opts) {
				timeline = append(timeline, models.TimelineEvent{
					Time:       ts,
					Event:      fmt.Sprintf("Duet: %s with %s", a, b),
					Performers: []string{a, b},
					Kind:       models.EventKindDuet,
					Synchrony:  models.SynchronyLoose,
				})
			}
		}
	}

	if len(performers) == 3 {
		a, b, c := onsets[performers[0]], onsets[performers[1]], onsets[performers[2]]
		duoAB := append(pointproc.Matches(a, b, opts), pointproc.Matches(b, a, opts)...)
		duoAC := append(pointproc.Matches(a, c, opts), pointproc.Matches(c, a, opts)...)
		for _, ts := range pointproc.Matches(duoAB, duoAC, opts) {
			timeline = append(timeline, models.TimelineEvent{
				Time:       ts,
				Event:      "Trio coincidence",
				Performers: performers,
				Kind:       models.EventKindTrio,
				Synchrony:  models.SynchronyTight,
			})
		}
	}

	sort.SliceStable(timeline, func(i, j int) bool { return timeline[i].Time < timeline[j].Time })
	if len(timeline) > timelineLimit {
		timeline = timeline[:timelineLimit]
	}
	return timeline
}

func (p *Pipeline) baseConfidence(counts map[string]int, duetTotal, duetFraction, trioTotal float64) float64 {
	totalOnsets := 0
	for _, c := range counts {
		totalOnsets += c
	}

	confidence := 0.0
	if totalOnsets > 0 {
		confidence += 0.25 + clamp(float64(totalOnsets)/40.0, 0, 0.15)
	}
	if duetTotal > 0 {
		confidence += 0.25 + clamp(duetFraction, 0, 0.2)
	}
	if trioTotal > 0 {
		confidence += 0.15
	}
	return clamp(confidence, 0, 1)
}

func synchronyFromFraction(duetFraction, trioTotal float64) models.SynchronyLevel {
	switch {
	case duetFraction >= 0.5 || trioTotal >= 2:
		return models.SynchronyTight
	case duetFraction >= 0.2:
		return models.SynchronyModerate
	case duetFraction > 0:
		return models.SynchronyLoose
	default:
		return models.SynchronyNone
	}
}

func calibrateConfidence(base, coupling float64) float64 {
	base = clamp(base, 0, 1)
	if coupling <= 0 {
		return clamp(base*0.7, 0, 1)
	}
	return clamp(base*0.6+coupling*0.4, 0, 1)
}

func labelValue(labels []storage.Label, name string) string {
	for _, l := range labels {
		if l.Name == name {
			return l.Value
		}
	}
	return ""
}
