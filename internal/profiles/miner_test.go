package profiles

import (
	"context"
	"testing"
	"time"

	"github.com/improstack/impro-engine/internal/models"
)

type fakeProfileStore struct {
	stored int
}

func (f *fakeProfileStore) StoreProfiles(ctx context.Context, profiles []models.PerformerProfile) error {
	f.stored += len(profiles)
	return nil
}

func TestMinerAggregatesProfiles(t *testing.T) {
	store := &fakeProfileStore{}
	miner := NewMiner(nil, store)

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	results := []models.AnalysisResult{
		{
			SessionID:    "take-1",
			Performers:   []string{"alto", "bass"},
			OnsetCounts:  map[string]int{"alto": 4, "bass": 2},
			DuetFraction: 0.4,
			Coupling:     models.CouplingSummary{Leader: "alto"},
			CreatedAt:    now,
		},
		{
			SessionID:    "take-2",
			Performers:   []string{"alto", "bass"},
			OnsetCounts:  map[string]int{"alto": 6, "bass": 4},
			DuetFraction: 0.2,
			Coupling:     models.CouplingSummary{Leader: "alto"},
			CreatedAt:    now.Add(time.Hour),
		},
	}

	profiles, err := miner.Mine(context.Background(), results)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if store.stored != 2 {
		t.Fatalf("expected profiles to be stored, stored %d", store.stored)
	}

	lead := profiles[0]
	if lead.Performer != "alto" {
		t.Fatalf("expected alto to rank first by lead ratio, got %s", lead.Performer)
	}
	if lead.LeadCount != 2 || lead.LeadRatio != 1 {
		t.Fatalf("unexpected lead stats: count=%d ratio=%v", lead.LeadCount, lead.LeadRatio)
	}
	if lead.MeanOnsets != 5 {
		t.Fatalf("expected mean onsets 5, got %v", lead.MeanOnsets)
	}
	if lead.MeanDuetFraction != 0.3 {
		t.Fatalf("expected mean duet fraction 0.3, got %v", lead.MeanDuetFraction)
	}
	if !lead.LastSeen.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected last seen from newest result, got %v", lead.LastSeen)
	}
}

func TestMinerEmptyHistory(t *testing.T) {
	miner := NewMiner(nil, nil)
	profiles, err := miner.Mine(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profiles != nil {
		t.Fatalf("expected nil profiles for empty history, got %v", profiles)
	}
}
