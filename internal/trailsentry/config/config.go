package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type LoggingCfg struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MLCfg controls the unsupervised outlier layer.
type MLCfg struct {
	Enabled bool `mapstructure:"enabled"`
	// Trees and SampleSize size the isolation forest.
	Trees      int   `mapstructure:"trees"`
	SampleSize int   `mapstructure:"sample_size"`
	Seed       int64 `mapstructure:"seed"`
	// ScoreOffset is the anomaly-score value below which the ML
	// contribution is zero. 0.5 is the in-distribution boundary.
	ScoreOffset float64 `mapstructure:"score_offset"`
	// MinPopulation is the smallest session (distinct principals) for
	// which ML scores are considered reliable.
	MinPopulation int `mapstructure:"min_population"`
}

type DetectionCfg struct {
	// Off-hours window in whole hours, UTC. The window wraps midnight
	// when start > end.
	OffHoursStart int   `mapstructure:"off_hours_start"`
	OffHoursEnd   int   `mapstructure:"off_hours_end"`
	ML            MLCfg `mapstructure:"ml"`
}

type ClassificationCfg struct {
	// ActionsFile optionally overrides/extends the built-in action
	// risk-tier table.
	ActionsFile string `mapstructure:"actions_file"`
}

type ServerCfg struct {
	Addr           string `mapstructure:"addr"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	TopNLimit      int    `mapstructure:"top_n_limit"`
}

type SessionCfg struct {
	Backend   string `mapstructure:"backend"` // memory | redis
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
	TTL       string `mapstructure:"ttl"`
}

type StorageCfg struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"` // sqlite | postgres | mysql
	DSN     string `mapstructure:"dsn"`
}

type KafkaCfg struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
	// DefaultSession receives records whose message lacks a session_id header.
	DefaultSession string `mapstructure:"default_session"`
}

type IngestCfg struct {
	Kafka KafkaCfg `mapstructure:"kafka"`
}

type Config struct {
	Version        string            `mapstructure:"version"`
	Detection      DetectionCfg      `mapstructure:"detection"`
	Classification ClassificationCfg `mapstructure:"classification"`
	Server         ServerCfg         `mapstructure:"server"`
	Session        SessionCfg        `mapstructure:"session"`
	Storage        StorageCfg        `mapstructure:"storage"`
	Ingest         IngestCfg         `mapstructure:"ingest"`
	Logging        LoggingCfg        `mapstructure:"logging"`
}

var cfg *Config

// Load populates global config from a viper instance
func Load(v *viper.Viper) error {
	setDefaults(v)

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validate(&c); err != nil {
		return err
	}
	cfg = &c
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", "0.1")
	v.SetDefault("logging.level", "info")
	v.SetDefault("detection.off_hours_start", 22)
	v.SetDefault("detection.off_hours_end", 6)
	v.SetDefault("detection.ml.enabled", true)
	v.SetDefault("detection.ml.trees", 100)
	v.SetDefault("detection.ml.sample_size", 256)
	v.SetDefault("detection.ml.seed", 42)
	v.SetDefault("detection.ml.score_offset", 0.5)
	v.SetDefault("detection.ml.min_population", 20)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_bytes", 50*1024*1024)
	v.SetDefault("server.top_n_limit", 100)
	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("ingest.kafka.group_id", "trailsentry")
}

func validate(c *Config) error {
	if c.Detection.OffHoursStart < 0 || c.Detection.OffHoursStart > 23 {
		return fmt.Errorf("detection.off_hours_start out of range: %d", c.Detection.OffHoursStart)
	}
	if c.Detection.OffHoursEnd < 0 || c.Detection.OffHoursEnd > 23 {
		return fmt.Errorf("detection.off_hours_end out of range: %d", c.Detection.OffHoursEnd)
	}
	if c.Detection.ML.Trees <= 0 {
		return fmt.Errorf("detection.ml.trees must be positive, got %d", c.Detection.ML.Trees)
	}
	if c.Detection.ML.SampleSize < 2 {
		return fmt.Errorf("detection.ml.sample_size must be at least 2, got %d", c.Detection.ML.SampleSize)
	}
	if c.Detection.ML.ScoreOffset <= 0 || c.Detection.ML.ScoreOffset >= 1 {
		return fmt.Errorf("detection.ml.score_offset must be in (0,1), got %v", c.Detection.ML.ScoreOffset)
	}
	if c.Detection.ML.MinPopulation < 2 {
		return fmt.Errorf("detection.ml.min_population must be at least 2, got %d", c.Detection.ML.MinPopulation)
	}
	switch c.Session.Backend {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("unsupported session backend %q", c.Session.Backend)
	}
	switch c.Storage.Driver {
	case "", "sqlite", "postgres", "postgresql", "mysql":
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}
	return nil
}

func Get() *Config {
	if cfg == nil {
		cfg = &Config{}
	}
	return cfg
}
