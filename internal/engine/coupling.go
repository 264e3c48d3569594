package engine

import (
	"fmt"
	"log/slog"

	"github.com/improstack/impro-engine/internal/pointproc"
)

// CouplingEngine probes directional (causal) relationships between
// performers: who tends to generate first, and how lopsided the matching is.
type CouplingEngine struct {
	logger *slog.Logger
}

// CouplingResult captures the outcome of a coupling evaluation.
type CouplingResult struct {
	Leader    string
	Score     float64
	Asymmetry float64
	Notes     []string
}

// NewCouplingEngine constructs a CouplingEngine.
func NewCouplingEngine(logger *slog.Logger) *CouplingEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &CouplingEngine{logger: logger}
}

// Evaluate counts causal matches for every ordered performer pair and
// derives a leader suggestion plus a score in [0,1]. A pair supports the
// leader hypothesis when one direction strictly dominates the other.
func (e *CouplingEngine) Evaluate(performers []string, onsets map[string][]int64, tau int64, clean bool) CouplingResult {
	result := CouplingResult{}
	if len(performers) < 2 {
		return result
	}

	opts := pointproc.MatchOptions{Tau: tau, Causal: true, Clean: clean}

	causal := make(map[string]map[string]int, len(performers))
	for _, src := range performers {
		causal[src] = make(map[string]int, len(performers))
		for _, dst := range performers {
			if src == dst {
				continue
			}
			causal[src][dst] = len(pointproc.Matches(onsets[src], onsets[dst], opts))
		}
	}

	totalPairs := 0
	supporting := 0
	totalMatches := 0
	totalImbalance := 0
	leadSurplus := make(map[string]int, len(performers))

	for i := 0; i < len(performers); i++ {
		for j := i + 1; j < len(performers); j++ {
			a, b := performers[i], performers[j]
			forward, backward := causal[a][b], causal[b][a]

			totalPairs++
			totalMatches += forward + backward
			diff := forward - backward
			if diff < 0 {
				diff = -diff
			}
			totalImbalance += diff

			switch {
			case forward > backward:
				supporting++
				leadSurplus[a] += forward - backward
				result.Notes = append(result.Notes, fmt.Sprintf("%s precedes %s (%d vs %d)", a, b, forward, backward))
			case backward > forward:
				supporting++
				leadSurplus[b] += backward - forward
				result.Notes = append(result.Notes, fmt.Sprintf("%s precedes %s (%d vs %d)", b, a, backward, forward))
			default:
				result.Notes = append(result.Notes, fmt.Sprintf("%s and %s are balanced", a, b))
			}
		}
	}

	if totalMatches == 0 || totalPairs == 0 {
		return CouplingResult{}
	}

	result.Asymmetry = float64(totalImbalance) / float64(totalMatches)
	result.Score = clamp(0.4+0.6*float64(supporting)/float64(totalPairs), 0, 1)

	best := 0
	for _, p := range performers {
		if leadSurplus[p] > best {
			best = leadSurplus[p]
			result.Leader = p
		}
	}
	return result
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
