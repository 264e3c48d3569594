package models

import "time"

// PerformerProfile aggregates coordination behaviour across analyses.
type PerformerProfile struct {
	Performer        string    `json:"performer"`
	Appearances      int       `json:"appearances"`
	LeadCount        int       `json:"lead_count"`
	LeadRatio        float64   `json:"lead_ratio"`
	MeanDuetFraction float64   `json:"mean_duet_fraction"`
	MeanOnsets       float64   `json:"mean_onsets"`
	LastSeen         time.Time `json:"last_seen"`
}
