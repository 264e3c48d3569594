package engine

import (
	"context"
	"testing"

	"github.com/improstack/impro-engine/internal/models"
	"github.com/improstack/impro-engine/internal/storage"
)

type fakeStore struct {
	series []storage.Series
	err    error
}

func (f *fakeStore) Read(from, to int64, matchers []storage.Label) ([]storage.Series, error) {
	return f.series, f.err
}

type capturingHistory struct {
	stored []models.AnalysisResult
}

func (c *capturingHistory) StoreAnalysis(_ context.Context, result models.AnalysisResult) error {
	c.stored = append(c.stored, result)
	return nil
}

// signalWithJumps builds a 1 Hz run starting at start whose value steps up
// by 10 at each jump timestamp.
func signalWithJumps(start, end int64, jumps ...int64) []models.Sample {
	jumpSet := make(map[int64]struct{}, len(jumps))
	for _, j := range jumps {
		jumpSet[j] = struct{}{}
	}
	samples := make([]models.Sample, 0, end-start+1)
	value := 0.0
	for ts := start; ts <= end; ts++ {
		if _, ok := jumpSet[ts]; ok {
			value += 10
		}
		samples = append(samples, models.Sample{Timestamp: ts, Value: value})
	}
	return samples
}

func trioSeries() []storage.Series {
	mk := func(performer string, jumps ...int64) storage.Series {
		return storage.Series{
			Labels: []storage.Label{
				{Name: models.LabelSession, Value: "trio-01"},
				{Name: models.LabelPerformer, Value: performer},
				{Name: models.LabelSensor, Value: "pedal"},
			},
			Samples: signalWithJumps(100, 400, jumps...),
		}
	}
	return []storage.Series{
		mk("alto", 105, 150),
		mk("bass", 106),
		mk("drums", 300),
	}
}

func TestPipelineAnalyze(t *testing.T) {
	history := &capturingHistory{}
	pipeline := NewPipeline(nil, &fakeStore{series: trioSeries()}, nil, history, nil, NewCouplingEngine(nil))

	req := models.AnalysisRequest{
		SessionID: "trio-01",
		Tau:       2,
		Threshold: 5,
		Clean:     true,
	}

	result, err := pipeline.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	if result.AnalysisID == "" {
		t.Fatal("expected analysis id")
	}
	wantPerformers := []string{"alto", "bass", "drums"}
	if len(result.Performers) != 3 {
		t.Fatalf("expected three performers, got %v", result.Performers)
	}
	for i, p := range wantPerformers {
		if result.Performers[i] != p {
			t.Fatalf("expected performers %v, got %v", wantPerformers, result.Performers)
		}
	}

	if result.OnsetCounts["alto"] != 2 || result.OnsetCounts["bass"] != 1 || result.OnsetCounts["drums"] != 1 {
		t.Fatalf("unexpected onset counts: %v", result.OnsetCounts)
	}

	// alto@105 and bass@106 form the only duet.
	if result.DuetTotal != 1 {
		t.Fatalf("expected one duet, got %f", result.DuetTotal)
	}
	if result.TrioTotal != 0 {
		t.Fatalf("expected no trio coincidence, got %f", result.TrioTotal)
	}
	if result.Synchrony != models.SynchronyModerate {
		t.Fatalf("expected moderate synchrony, got %s", result.Synchrony)
	}
	if result.Coupling.Leader != "alto" {
		t.Fatalf("expected alto to lead, got %q", result.Coupling.Leader)
	}

	if len(result.Timeline) != 1 || result.Timeline[0].Kind != models.EventKindDuet {
		t.Fatalf("expected a single duet timeline event, got %v", result.Timeline)
	}
	if result.Confidence <= 0 || result.Confidence > 1 {
		t.Fatalf("confidence out of range: %f", result.Confidence)
	}

	if len(history.stored) != 1 || history.stored[0].AnalysisID != result.AnalysisID {
		t.Fatalf("expected analysis persisted to history")
	}
}

func TestPipelineAnalyzeRequiresSession(t *testing.T) {
	pipeline := NewPipeline(nil, &fakeStore{}, nil, nil, nil, nil)
	if _, err := pipeline.Analyze(context.Background(), models.AnalysisRequest{}); err == nil {
		t.Fatal("expected error for missing session id")
	}
}

func TestPipelineAnalyzePerformerFilter(t *testing.T) {
	pipeline := NewPipeline(nil, &fakeStore{series: trioSeries()}, nil, nil, nil, nil)

	req := models.AnalysisRequest{
		SessionID:  "trio-01",
		Performers: []string{"alto", "bass"},
		Tau:        2,
		Clean:      true,
	}

	result, err := pipeline.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(result.Performers) != 2 {
		t.Fatalf("expected filtered duo, got %v", result.Performers)
	}
	if result.TrioTotal != 0 || result.TrioFraction != 0 {
		t.Fatalf("trio stats should be zero for a duo")
	}
}

func TestPipelineAnalyzeSinglePerformer(t *testing.T) {
	series := trioSeries()[:1]
	pipeline := NewPipeline(nil, &fakeStore{series: series}, nil, nil, nil, nil)

	_, err := pipeline.Analyze(context.Background(), models.AnalysisRequest{SessionID: "trio-01"})
	if err == nil {
		t.Fatal("expected error for single-performer session")
	}
}
