// Package ingest consumes controller sample batches from Kafka and feeds
// them into the signal store.
package ingest

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"log/slog"
	"net"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/scram"

	"github.com/improstack/impro-engine/internal/metrics"
	"github.com/improstack/impro-engine/internal/models"
	"github.com/improstack/impro-engine/internal/storage"
	"github.com/improstack/impro-engine/internal/utils"
)

// SampleWriter accepts labelled sample batches.
type SampleWriter interface {
	Write(labels []storage.Label, samples []models.Sample) error
}

// KafkaConfig configures the sample consumer.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Group    string
	Username string
	Password string
	TLS      bool
}

// sampleBatch is the JSON payload carried by one Kafka record.
type sampleBatch struct {
	Session   string  `json:"session"`
	Performer string  `json:"performer"`
	Sensor    string  `json:"sensor,omitempty"`
	Samples   []struct {
		TimestampMS int64   `json:"timestamp_ms"`
		Value       float64 `json:"value"`
	} `json:"samples"`
}

// Consumer polls sample batches and writes them to the store.
type Consumer struct {
	client *kgo.Client
	store  SampleWriter
	logger *slog.Logger
}

// NewConsumer connects to the brokers and joins the consumer group.
func NewConsumer(cfg KafkaConfig, store SampleWriter, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, utils.NewAppError("ingest.NewConsumer", "at least one broker is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
	}

	if cfg.Username != "" || cfg.Password != "" {
		opts = append(opts, kgo.SASL(scram.Sha512(func(ctx context.Context) (scram.Auth, error) {
			return scram.Auth{User: cfg.Username, Pass: cfg.Password}, nil
		})))
	}

	if cfg.TLS {
		dialer := &tls.Dialer{NetDialer: &net.Dialer{Timeout: 30 * time.Second}}
		opts = append(opts, kgo.Dialer(dialer.DialContext))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, utils.NewAppError("ingest.NewConsumer", "construct kafka client", err)
	}

	return &Consumer{client: client, store: store, logger: logger}, nil
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Warn("kafka fetch error",
				slog.String("topic", topic),
				slog.Int("partition", int(partition)),
				slog.Any("error", err))
		})

		fetches.EachRecord(func(record *kgo.Record) {
			if err := c.ingestRecord(record.Value); err != nil {
				c.logger.Warn("dropping malformed sample batch", slog.Any("error", err))
			}
		})
	}
}

// Close shuts the Kafka client down, unblocking Run.
func (c *Consumer) Close() {
	c.client.Close()
}

func (c *Consumer) ingestRecord(payload []byte) error {
	var batch sampleBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		return utils.NewAppError("ingest.ingestRecord", "decode sample batch", err)
	}
	if batch.Session == "" || batch.Performer == "" || len(batch.Samples) == 0 {
		return utils.NewAppError("ingest.ingestRecord", "batch missing session, performer, or samples", nil)
	}

	labels := []storage.Label{
		{Name: models.LabelSession, Value: batch.Session},
		{Name: models.LabelPerformer, Value: batch.Performer},
	}
	if batch.Sensor != "" {
		labels = append(labels, storage.Label{Name: models.LabelSensor, Value: batch.Sensor})
	}

	samples := make([]models.Sample, 0, len(batch.Samples))
	for _, s := range batch.Samples {
		samples = append(samples, models.Sample{
			Timestamp: utils.UnixSeconds(s.TimestampMS),
			Value:     s.Value,
		})
	}

	if err := c.store.Write(labels, samples); err != nil {
		return utils.NewAppError("ingest.ingestRecord", "write samples", err)
	}
	metrics.AddIngestedSamples("kafka", len(samples))
	return nil
}
