package models

// Sample is one controller reading: a unix-second timestamp and the raw
// pedal or slider position. Recordings sample at a nominal 1 Hz.
type Sample struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

// Well-known series label names.
const (
	LabelSession   = "session"
	LabelPerformer = "performer"
	LabelSensor    = "sensor"
)
