package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config captures the settings required to boot the analysis service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Influx   InfluxConfig   `yaml:"influx"`
	Logging  LoggingConfig  `yaml:"logging"`
	Rules    RulesConfig    `yaml:"rules"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address" env:"IMPRO_SERVER_ADDRESS"`
	MetricsAddress  string        `yaml:"metricsAddress" env:"IMPRO_METRICS_ADDRESS"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout" env:"IMPRO_GRACEFUL_TIMEOUT"`
}

// AnalysisConfig carries default detection and matching parameters, applied
// when a request leaves them unset.
type AnalysisConfig struct {
	Threshold float64 `yaml:"threshold" env:"IMPRO_ANALYSIS_THRESHOLD"`
	Tau       int64   `yaml:"tau" env:"IMPRO_ANALYSIS_TAU"`
	Causal    bool    `yaml:"causal" env:"IMPRO_ANALYSIS_CAUSAL"`
	Clean     bool    `yaml:"clean" env:"IMPRO_ANALYSIS_CLEAN"`
}

// KafkaConfig configures the optional sample ingestion consumer.
type KafkaConfig struct {
	Enabled  bool     `yaml:"enabled" env:"IMPRO_KAFKA_ENABLED"`
	Brokers  []string `yaml:"brokers" env:"IMPRO_KAFKA_BROKERS"`
	Topic    string   `yaml:"topic" env:"IMPRO_KAFKA_TOPIC"`
	Group    string   `yaml:"group" env:"IMPRO_KAFKA_GROUP"`
	Username string   `yaml:"username" env:"IMPRO_KAFKA_USERNAME"`
	Password string   `yaml:"password" env:"IMPRO_KAFKA_PASSWORD"`
	TLS      bool     `yaml:"tls" env:"IMPRO_KAFKA_TLS"`
}

// InfluxConfig configures result export to InfluxDB. Export is disabled
// while URL is empty.
type InfluxConfig struct {
	URL          string `yaml:"url" env:"IMPRO_INFLUX_URL"`
	Token        string `yaml:"token" env:"IMPRO_INFLUX_TOKEN"`
	Organization string `yaml:"organization" env:"IMPRO_INFLUX_ORG"`
	Bucket       string `yaml:"bucket" env:"IMPRO_INFLUX_BUCKET"`
	BatchSize    uint   `yaml:"batchSize" env:"IMPRO_INFLUX_BATCH_SIZE"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" env:"IMPRO_LOG_LEVEL"`
	JSON  bool   `yaml:"json" env:"IMPRO_LOG_JSON"`
}

// RulesConfig controls rule-pack loading for the annotator.
type RulesConfig struct {
	Path string `yaml:"path" env:"IMPRO_RULES_PATH"`
}

// CacheConfig controls Valkey-backed caching of analysis results.
type CacheConfig struct {
	Enabled      bool          `yaml:"enabled" env:"IMPRO_CACHE_ENABLED"`
	Addr         string        `yaml:"addr" env:"IMPRO_CACHE_ADDR"`
	Username     string        `yaml:"username" env:"IMPRO_CACHE_USERNAME"`
	Password     string        `yaml:"password" env:"IMPRO_CACHE_PASSWORD"`
	DB           int           `yaml:"db" env:"IMPRO_CACHE_DB"`
	DialTimeout  time.Duration `yaml:"dialTimeout" env:"IMPRO_CACHE_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `yaml:"readTimeout" env:"IMPRO_CACHE_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"IMPRO_CACHE_WRITE_TIMEOUT"`
	TLS          bool          `yaml:"tls" env:"IMPRO_CACHE_TLS"`
	ResultTTL    time.Duration `yaml:"resultTTL" env:"IMPRO_CACHE_RESULT_TTL"`
}

// Load initialises Config from a YAML file, then applies environment
// overrides on top.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("IMPRO_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env overrides: %w", err)
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Analysis: AnalysisConfig{
			Threshold: 5,
			Tau:       2,
			Clean:     true,
		},
		Kafka: KafkaConfig{
			Topic: "impro.samples",
			Group: "impro-engine",
		},
		Influx:  InfluxConfig{BatchSize: 512},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Rules:   RulesConfig{Path: "configs/rules/default.yaml"},
		Cache: CacheConfig{
			Enabled:      false,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			ResultTTL:    5 * time.Minute,
		},
	}
}
