package repo

import (
	"context"
	"testing"
	"time"

	"github.com/improstack/impro-engine/internal/models"
)

func storedResult(session string, performers []string, createdAt time.Time) models.AnalysisResult {
	return models.AnalysisResult{
		AnalysisID: session + "-" + createdAt.Format("150405"),
		SessionID:  session,
		Performers: performers,
		CreatedAt:  createdAt,
	}
}

func TestHistoryRepoStoreAndList(t *testing.T) {
	repo := NewHistoryRepo(10)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		result := storedResult("take-1", []string{"alto", "bass"}, base.Add(time.Duration(i)*time.Minute))
		if err := repo.StoreAnalysis(ctx, result); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	resp, err := repo.ListAnalyses(ctx, models.ListAnalysesRequest{SessionID: "take-1"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(resp.Analyses) != 3 {
		t.Fatalf("expected 3 analyses, got %d", len(resp.Analyses))
	}
	if !resp.Analyses[0].CreatedAt.After(resp.Analyses[2].CreatedAt) {
		t.Fatal("expected newest-first ordering")
	}
}

func TestHistoryRepoFilters(t *testing.T) {
	repo := NewHistoryRepo(10)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if err := repo.StoreAnalysis(ctx, storedResult("take-1", []string{"alto", "bass"}, base)); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := repo.StoreAnalysis(ctx, storedResult("take-2", []string{"drums", "bass"}, base.Add(time.Hour))); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	resp, err := repo.ListAnalyses(ctx, models.ListAnalysesRequest{Performer: "alto"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(resp.Analyses) != 1 || resp.Analyses[0].SessionID != "take-1" {
		t.Fatalf("expected only take-1 for alto, got %+v", resp.Analyses)
	}

	resp, err = repo.ListAnalyses(ctx, models.ListAnalysesRequest{Start: base.Add(30 * time.Minute)})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(resp.Analyses) != 1 || resp.Analyses[0].SessionID != "take-2" {
		t.Fatalf("expected only take-2 after start filter, got %+v", resp.Analyses)
	}
}

func TestHistoryRepoPagination(t *testing.T) {
	repo := NewHistoryRepo(10)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := repo.StoreAnalysis(ctx, storedResult("take-1", []string{"alto", "bass"}, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	first, err := repo.ListAnalyses(ctx, models.ListAnalysesRequest{PageSize: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(first.Analyses) != 2 || first.NextPageToken == "" {
		t.Fatalf("expected first page of 2 with token, got %d token %q", len(first.Analyses), first.NextPageToken)
	}

	second, err := repo.ListAnalyses(ctx, models.ListAnalysesRequest{PageSize: 2, PageToken: first.NextPageToken})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(second.Analyses) != 2 {
		t.Fatalf("expected second page of 2, got %d", len(second.Analyses))
	}
	if second.Analyses[0].AnalysisID == first.Analyses[0].AnalysisID {
		t.Fatal("pages should not overlap")
	}

	third, err := repo.ListAnalyses(ctx, models.ListAnalysesRequest{PageSize: 2, PageToken: second.NextPageToken})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(third.Analyses) != 1 || third.NextPageToken != "" {
		t.Fatalf("expected final page of 1 with no token, got %d token %q", len(third.Analyses), third.NextPageToken)
	}
}

func TestHistoryRepoEviction(t *testing.T) {
	repo := NewHistoryRepo(2)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := repo.StoreAnalysis(ctx, storedResult("take-1", []string{"alto", "bass"}, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("store failed: %v", err)
		}
	}

	all := repo.All(ctx)
	if len(all) != 2 {
		t.Fatalf("expected 2 retained results, got %d", len(all))
	}
	if !all[0].CreatedAt.Equal(base.Add(time.Minute)) {
		t.Fatal("expected oldest result evicted")
	}
}
