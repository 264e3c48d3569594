// Package profiles mines per-performer interaction profiles from analysis
// history.
package profiles

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/improstack/impro-engine/internal/models"
)

// Store abstracts persistence for mined profiles.
type Store interface {
	StoreProfiles(ctx context.Context, profiles []models.PerformerProfile) error
}

// Miner aggregates analysis results into performer profiles.
type Miner struct {
	store  Store
	logger *slog.Logger
}

// NewMiner constructs a Miner; store may be nil for dry runs.
func NewMiner(logger *slog.Logger, store Store) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{store: store, logger: logger}
}

// Mine aggregates results into one profile per performer, ordered by lead
// ratio then appearances.
func (m *Miner) Mine(ctx context.Context, results []models.AnalysisResult) ([]models.PerformerProfile, error) {
	if len(results) == 0 {
		return nil, nil
	}

	stats := make(map[string]*performerAggregate)
	for _, result := range results {
		for _, performer := range result.Performers {
			agg := ensureAggregate(stats, performer)
			agg.appearances++
			agg.duetFractionSum += result.DuetFraction
			agg.onsetSum += result.OnsetCounts[performer]
			if result.Coupling.Leader == performer {
				agg.leadCount++
			}
			if result.CreatedAt.After(agg.lastSeen) {
				agg.lastSeen = result.CreatedAt
			}
		}
	}

	profiles := make([]models.PerformerProfile, 0, len(stats))
	for performer, agg := range stats {
		n := float64(agg.appearances)
		profiles = append(profiles, models.PerformerProfile{
			Performer:        performer,
			Appearances:      agg.appearances,
			LeadCount:        agg.leadCount,
			LeadRatio:        float64(agg.leadCount) / n,
			MeanDuetFraction: agg.duetFractionSum / n,
			MeanOnsets:       float64(agg.onsetSum) / n,
			LastSeen:         agg.lastSeen,
		})
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].LeadRatio != profiles[j].LeadRatio {
			return profiles[i].LeadRatio > profiles[j].LeadRatio
		}
		if profiles[i].Appearances != profiles[j].Appearances {
			return profiles[i].Appearances > profiles[j].Appearances
		}
		return profiles[i].Performer < profiles[j].Performer
	})

	if m.store != nil && len(profiles) > 0 {
		if err := m.store.StoreProfiles(ctx, profiles); err != nil {
			m.logger.Warn("profile store failed", slog.Any("error", err))
		}
	}

	return profiles, nil
}

type performerAggregate struct {
	appearances     int
	leadCount       int
	duetFractionSum float64
	onsetSum        int
	lastSeen        time.Time
}

func ensureAggregate(stats map[string]*performerAggregate, performer string) *performerAggregate {
	if performer == "" {
		performer = "unknown"
	}
	agg, ok := stats[performer]
	if !ok {
		agg = &performerAggregate{}
		stats[performer] = agg
	}
	return agg
}
