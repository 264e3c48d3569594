package models

import "time"

// AnalysisResult summarises one coordination analysis of a session window.
type AnalysisResult struct {
	AnalysisID   string          `json:"analysis_id"`
	SessionID    string          `json:"session_id"`
	Performers   []string        `json:"performers"`
	OnsetCounts  map[string]int  `json:"onset_counts"`
	PairMatches  []PairMatch     `json:"pair_matches"`
	DuetTotal    float64         `json:"duet_total"`
	TrioTotal    float64         `json:"trio_total"`
	DuetFraction float64         `json:"duet_fraction"`
	TrioFraction float64         `json:"trio_fraction"`
	Coupling     CouplingSummary `json:"coupling"`
	Synchrony    SynchronyLevel  `json:"synchrony"`
	Confidence   float64         `json:"confidence"`
	Timeline     []TimelineEvent `json:"timeline"`
	Annotations  []string        `json:"annotations"`
	CreatedAt    time.Time       `json:"created_at"`
}

// PairMatch records directional match statistics for an ordered performer pair.
type PairMatch struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Count    int     `json:"count"`
	Fraction float64 `json:"fraction"`
}

// CouplingSummary captures leader/follower evidence derived from causal matching.
type CouplingSummary struct {
	Leader    string   `json:"leader,omitempty"`
	Score     float64  `json:"score"`
	Notes     []string `json:"notes,omitempty"`
	Asymmetry float64  `json:"asymmetry"`
}

// TimelineEvent records a notable coordination event inside the analysed window.
type TimelineEvent struct {
	Time       int64          `json:"time"`
	Event      string         `json:"event"`
	Performers []string       `json:"performers"`
	Kind       EventKind      `json:"kind"`
	Synchrony  SynchronyLevel `json:"synchrony"`
}

// EventKind enumerates timeline event categories.
type EventKind string

const (
	EventKindOnset EventKind = "onset"
	EventKindDuet  EventKind = "duet"
	EventKindTrio  EventKind = "trio"
)

// SynchronyLevel grades how tightly the group coordinated.
type SynchronyLevel string

const (
	SynchronyNone     SynchronyLevel = "none"
	SynchronyLoose    SynchronyLevel = "loose"
	SynchronyModerate SynchronyLevel = "moderate"
	SynchronyTight    SynchronyLevel = "tight"
)
