package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/LdDl/sort-go/mot"
)

type Config struct {
	Tracker  TrackerConfig  `yaml:"tracker"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	NATS     NATSConfig     `yaml:"nats"`
	Storage  StorageConfig  `yaml:"storage"`
}

type TrackerConfig struct {
	MaxAge        int     `yaml:"max_age"`
	MinHits       int     `yaml:"min_hits"`
	IoUThreshold  float64 `yaml:"iou_threshold"`
	Matching      string  `yaml:"matching"`
	MotionModel   string  `yaml:"motion_model"`
	Dt            float64 `yaml:"dt"`
	MinConfidence float64 `yaml:"min_confidence"`
	FrameWidth    float64 `yaml:"frame_width"`
	FrameHeight   float64 `yaml:"frame_height"`
	MaxTrackLen   int     `yaml:"max_track_len"`
}

type PipelineConfig struct {
	BufferSize      int `yaml:"buffer_size"`
	CheckpointEvery int `yaml:"checkpoint_every"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	OutputPath string `yaml:"output_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type NATSConfig struct {
	URL           string        `yaml:"url"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// Load reads config from YAML file and applies environment variable overrides.
// Empty path skips the file. Variables from .env in working directory are loaded first when the file exists.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	// Zero is meaningful for max_age and max_track_len, so absence is marked by negative value
	cfg.Tracker.MaxAge = -1
	cfg.Tracker.MaxTrackLen = -1
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func setDefaults(cfg *Config) {
	defaults := mot.DefaultConfig()
	if cfg.Tracker.MaxAge < 0 {
		cfg.Tracker.MaxAge = defaults.MaxAge
	}
	if cfg.Tracker.MinHits == 0 {
		cfg.Tracker.MinHits = defaults.MinHits
	}
	if cfg.Tracker.IoUThreshold == 0 {
		cfg.Tracker.IoUThreshold = defaults.IoUThreshold
	}
	if cfg.Tracker.Matching == "" {
		cfg.Tracker.Matching = defaults.Algorithm.String()
	}
	if cfg.Tracker.MotionModel == "" {
		cfg.Tracker.MotionModel = string(defaults.MotionModel)
	}
	if cfg.Tracker.Dt == 0 {
		cfg.Tracker.Dt = defaults.Dt
	}
	if cfg.Tracker.MaxTrackLen < 0 {
		cfg.Tracker.MaxTrackLen = defaults.MaxTrackLen
	}
	if cfg.Pipeline.BufferSize == 0 {
		cfg.Pipeline.BufferSize = 64
	}
	if cfg.Pipeline.CheckpointEvery == 0 {
		cfg.Pipeline.CheckpointEvery = 100
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.MaxSize == 0 {
		cfg.Logging.MaxSize = 100
	}
	if cfg.Logging.MaxBackups == 0 {
		cfg.Logging.MaxBackups = 3
	}
	if cfg.Logging.MaxAge == 0 {
		cfg.Logging.MaxAge = 7
	}
	if cfg.NATS.SubjectPrefix == "" {
		cfg.NATS.SubjectPrefix = "sort.tracks"
	}
	if cfg.NATS.ReconnectWait == 0 {
		cfg.NATS.ReconnectWait = 2 * time.Second
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("SORT_MAX_AGE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SORT_MAX_AGE: %w", err)
		}
		cfg.Tracker.MaxAge = n
	}
	if v := os.Getenv("SORT_MIN_HITS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse SORT_MIN_HITS: %w", err)
		}
		cfg.Tracker.MinHits = n
	}
	if v := os.Getenv("SORT_IOU_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse SORT_IOU_THRESHOLD: %w", err)
		}
		cfg.Tracker.IoUThreshold = f
	}
	if v := os.Getenv("SORT_MATCHING"); v != "" {
		cfg.Tracker.Matching = v
	}
	if v := os.Getenv("SORT_MOTION_MODEL"); v != "" {
		cfg.Tracker.MotionModel = v
	}
	if v := os.Getenv("SORT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SORT_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("SORT_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("SORT_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	return nil
}

// TrackerConfig converts tracker section into mot.Config
func (cfg *Config) TrackerConfig() (mot.Config, error) {
	algorithm, ok := mot.ParseMatchingAlgorithm(cfg.Tracker.Matching)
	if !ok {
		return mot.Config{}, fmt.Errorf("unknown matching algorithm %q", cfg.Tracker.Matching)
	}
	trackerCfg := mot.Config{
		MaxAge:        cfg.Tracker.MaxAge,
		MinHits:       cfg.Tracker.MinHits,
		IoUThreshold:  cfg.Tracker.IoUThreshold,
		Algorithm:     algorithm,
		MotionModel:   mot.MotionModelKind(cfg.Tracker.MotionModel),
		Dt:            cfg.Tracker.Dt,
		MinConfidence: cfg.Tracker.MinConfidence,
		FrameWidth:    cfg.Tracker.FrameWidth,
		FrameHeight:   cfg.Tracker.FrameHeight,
		MaxTrackLen:   cfg.Tracker.MaxTrackLen,
	}
	if err := trackerCfg.Validate(); err != nil {
		return mot.Config{}, fmt.Errorf("tracker config: %w", err)
	}
	return trackerCfg, nil
}

// Validate checks every section
func (cfg *Config) Validate() error {
	if _, err := cfg.TrackerConfig(); err != nil {
		return err
	}
	if cfg.Pipeline.BufferSize < 0 {
		return fmt.Errorf("pipeline buffer_size must be non-negative, got %d", cfg.Pipeline.BufferSize)
	}
	if cfg.Pipeline.CheckpointEvery < 0 {
		return fmt.Errorf("pipeline checkpoint_every must be non-negative, got %d", cfg.Pipeline.CheckpointEvery)
	}
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", cfg.Logging.Level)
	}
	return nil
}
