package repo

import (
	"context"
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxapi "github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/improstack/impro-engine/internal/models"
	"github.com/improstack/impro-engine/internal/utils"
)

const (
	onsetMeasurement    = "ig_onset"
	analysisMeasurement = "coordination"
)

// InfluxConfig holds the connection parameters for the export backend.
type InfluxConfig struct {
	URL       string
	Token     string
	Org       string
	Bucket    string
	BatchSize uint
}

// InfluxExporter writes onset events and coordination scores to InfluxDB so
// downstream dashboards can chart sessions over time.
type InfluxExporter struct {
	client   influxdb2.Client
	writeAPI influxapi.WriteAPI
	logger   *slog.Logger
	done     chan struct{}
}

// NewInfluxExporter creates an exporter on the non-blocking write API and
// starts draining its error channel.
func NewInfluxExporter(cfg InfluxConfig, logger *slog.Logger) (*InfluxExporter, error) {
	if cfg.URL == "" {
		return nil, utils.NewAppError("repo.NewInfluxExporter", "influx url is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.BatchSize == 0 {
		cfg.BatchSize = 512
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().SetBatchSize(cfg.BatchSize))
	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	e := &InfluxExporter{
		client:   client,
		writeAPI: writeAPI,
		logger:   logger,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(e.done)
		for err := range writeAPI.Errors() {
			logger.Warn("influx write failed", slog.Any("error", err))
		}
	}()

	return e, nil
}

// ExportOnsets writes one point per detected IG timestamp.
func (e *InfluxExporter) ExportOnsets(_ context.Context, sessionID, performer string, onsets []int64) error {
	for _, ts := range onsets {
		point := influxdb2.NewPoint(onsetMeasurement,
			map[string]string{
				"session":   sessionID,
				"performer": performer,
			},
			map[string]interface{}{
				"value": 1,
			},
			time.Unix(ts, 0).UTC())
		e.writeAPI.WritePoint(point)
	}
	return nil
}

// ExportAnalysis writes the aggregate coordination scores for one analysis.
func (e *InfluxExporter) ExportAnalysis(_ context.Context, result models.AnalysisResult) error {
	point := influxdb2.NewPoint(analysisMeasurement,
		map[string]string{
			"session":   result.SessionID,
			"synchrony": string(result.Synchrony),
			"leader":    result.Coupling.Leader,
		},
		map[string]interface{}{
			"duet_total":     result.DuetTotal,
			"trio_total":     result.TrioTotal,
			"duet_fraction":  result.DuetFraction,
			"trio_fraction":  result.TrioFraction,
			"coupling_score": result.Coupling.Score,
			"confidence":     result.Confidence,
		},
		result.CreatedAt)
	e.writeAPI.WritePoint(point)
	return nil
}

// Close flushes buffered points and shuts the client down.
func (e *InfluxExporter) Close() {
	e.writeAPI.Flush()
	e.client.Close()
	<-e.done
}
