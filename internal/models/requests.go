package models

import "time"

// AnalysisRequest asks for a coordination analysis of recorded signals.
type AnalysisRequest struct {
	SessionID  string    `json:"session_id"`
	Performers []string  `json:"performers"`
	TimeRange  TimeRange `json:"time_range"`
	// Threshold is the minimal first-difference jump in the raw controller
	// signal that counts as an onset. Negative values select downward jumps.
	Threshold float64 `json:"threshold"`
	// Tau is the matching window in seconds.
	Tau int64 `json:"tau"`
	// Causal restricts matching to source-before-target pairs.
	Causal bool `json:"causal"`
	// Clean removes onsets closer than tau before and after matching.
	Clean bool `json:"clean"`
}

// TimeRange bounds the signal window for analysis.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ListAnalysesRequest captures filters for historical analyses.
type ListAnalysesRequest struct {
	SessionID string
	Performer string
	Start     time.Time
	End       time.Time
	PageSize  int
	PageToken string
}

// ListAnalysesResponse contains analysis history records and pagination state.
type ListAnalysesResponse struct {
	Analyses      []AnalysisResult `json:"analyses"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}
