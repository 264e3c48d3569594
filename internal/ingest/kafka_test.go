package ingest

import (
	"log/slog"
	"testing"

	"github.com/improstack/impro-engine/internal/models"
	"github.com/improstack/impro-engine/internal/storage"
)

type capturingWriter struct {
	labels  []storage.Label
	samples []models.Sample
}

func (w *capturingWriter) Write(labels []storage.Label, samples []models.Sample) error {
	w.labels = labels
	w.samples = samples
	return nil
}

func TestIngestRecord(t *testing.T) {
	writer := &capturingWriter{}
	consumer := &Consumer{store: writer, logger: slog.Default()}

	payload := []byte(`{
		"session": "take-1",
		"performer": "alto",
		"sensor": "cc-74",
		"samples": [
			{"timestamp_ms": 1500, "value": 10},
			{"timestamp_ms": 2500, "value": 42.5}
		]
	}`)

	if err := consumer.ingestRecord(payload); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if len(writer.samples) != 2 {
		t.Fatalf("expected 2 samples written, got %d", len(writer.samples))
	}
	if writer.samples[0].Timestamp != 1 || writer.samples[1].Timestamp != 2 {
		t.Fatalf("expected millisecond timestamps floored to seconds, got %d and %d",
			writer.samples[0].Timestamp, writer.samples[1].Timestamp)
	}

	labels := map[string]string{}
	for _, l := range writer.labels {
		labels[l.Name] = l.Value
	}
	if labels[models.LabelSession] != "take-1" || labels[models.LabelPerformer] != "alto" || labels[models.LabelSensor] != "cc-74" {
		t.Fatalf("unexpected labels: %v", labels)
	}
}

func TestIngestRecordRejectsMalformed(t *testing.T) {
	writer := &capturingWriter{}
	consumer := &Consumer{store: writer, logger: slog.Default()}

	if err := consumer.ingestRecord([]byte(`not json`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if err := consumer.ingestRecord([]byte(`{"session":"take-1"}`)); err == nil {
		t.Fatal("expected error for batch without performer and samples")
	}
	if writer.samples != nil {
		t.Fatal("no samples should reach the store")
	}
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(KafkaConfig{}, &capturingWriter{}, nil); err == nil {
		t.Fatal("expected error for missing brokers")
	}
}
