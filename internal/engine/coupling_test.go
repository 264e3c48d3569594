package engine

import "testing"

func TestCouplingEngineEvaluate(t *testing.T) {
	engine := NewCouplingEngine(nil)
	onsets := map[string][]int64{
		"alto": {10, 20, 30},
		"bass": {12, 22, 32},
	}

	res := engine.Evaluate([]string{"alto", "bass"}, onsets, 2, true)
	if res.Leader != "alto" {
		t.Fatalf("expected alto to lead, got %q", res.Leader)
	}
	if res.Score != 1 {
		t.Fatalf("expected full coupling score, got %f", res.Score)
	}
	if res.Asymmetry != 1 {
		t.Fatalf("expected fully asymmetric coupling, got %f", res.Asymmetry)
	}
}

func TestCouplingEngineBalanced(t *testing.T) {
	engine := NewCouplingEngine(nil)
	onsets := map[string][]int64{
		"alto": {10, 30},
		"bass": {11, 29},
	}

	// alto precedes at 10->11, bass precedes at 29->30.
	res := engine.Evaluate([]string{"alto", "bass"}, onsets, 2, true)
	if res.Leader != "" {
		t.Fatalf("expected no leader for balanced coupling, got %q", res.Leader)
	}
	if res.Asymmetry != 0 {
		t.Fatalf("expected zero asymmetry, got %f", res.Asymmetry)
	}
}

func TestCouplingEngineNoEvidence(t *testing.T) {
	engine := NewCouplingEngine(nil)
	res := engine.Evaluate([]string{"alto", "bass"}, map[string][]int64{}, 2, true)
	if res.Score != 0 || res.Leader != "" {
		t.Fatalf("expected empty result without onsets, got %+v", res)
	}
}
