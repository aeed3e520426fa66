package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Detection   DetectionConfig   `yaml:"detection"`
	Capture     CaptureConfig     `yaml:"capture"`
	Registry    RegistryConfig    `yaml:"registry"`
	Reservation ReservationConfig `yaml:"reservation"`
	Navigation  NavigationConfig  `yaml:"navigation"`
	Database    DatabaseConfig    `yaml:"database"`
	History     HistoryConfig     `yaml:"history"`
	Push        PushConfig        `yaml:"push"`
	WorkerPool  WorkerPoolConfig  `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DetectionConfig points at the external detection service.
type DetectionConfig struct {
	DetectURL      string        `yaml:"detect_url"`
	VisualizeURL   string        `yaml:"visualize_url"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
	NotFreeLabel   string        `yaml:"not_free_label"`
}

// CaptureConfig controls the fixed-interval frame capture loop.
type CaptureConfig struct {
	Enabled     bool          `yaml:"enabled"`
	IntervalMS  int           `yaml:"interval_ms"`
	Interval    time.Duration `yaml:"-"`
	FramesDir   string        `yaml:"frames_dir"`
	JPEGQuality int           `yaml:"jpeg_quality"`
}

// RegistryConfig holds the spot registry defaults.
type RegistryConfig struct {
	DefaultCount       int           `yaml:"default_count"`
	MockSeed           uint64        `yaml:"mock_seed"`
	InitialLoadDelayMS int           `yaml:"initial_load_delay_ms"`
	InitialLoadDelay   time.Duration `yaml:"-"`
}

// ReservationConfig holds the reservation rules.
type ReservationConfig struct {
	Durations     []int  `yaml:"durations"`
	DefaultUserID string `yaml:"default_user_id"`
}

// NavigationConfig holds the placeholder walking-directions parameters.
type NavigationConfig struct {
	DistanceMeters      float64 `yaml:"distance_meters"`
	WalkingMetersPerMin float64 `yaml:"walking_meters_per_min"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// HistoryConfig controls the occupancy snapshot log.
type HistoryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	RetentionHours int           `yaml:"retention_hours"`
	Retention      time.Duration `yaml:"-"`
	PruneSchedule  string        `yaml:"prune_schedule"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// LoadEnv loads an optional .env file into the process environment. Variables
// already set are not overwritten.
func LoadEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.ApplyDefaults()
	return &cfg, nil
}

// applyEnv lets secrets and endpoints come from the environment instead of
// the YAML file.
func (cfg *Config) applyEnv() {
	for name, dst := range map[string]*string{
		"SPOTWISE_DETECT_URL":        &cfg.Detection.DetectURL,
		"SPOTWISE_VISUALIZE_URL":     &cfg.Detection.VisualizeURL,
		"SPOTWISE_DATABASE_DRIVER":   &cfg.Database.Driver,
		"SPOTWISE_DATABASE_DSN":      &cfg.Database.DSN,
		"SPOTWISE_VAPID_PUBLIC_KEY":  &cfg.Push.PublicKey,
		"SPOTWISE_VAPID_PRIVATE_KEY": &cfg.Push.PrivateKey,
		"SPOTWISE_VAPID_SUBJECT":     &cfg.Push.Subject,
	} {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*dst = v
		}
	}
}

// ApplyDefaults fills every unset field. Load calls it; tests building a Config
// by hand call it directly.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Detection.DetectURL == "" {
		cfg.Detection.DetectURL = "http://localhost:8000/detect"
	}
	if cfg.Detection.VisualizeURL == "" {
		cfg.Detection.VisualizeURL = "http://localhost:8000/upload"
	}
	if cfg.Detection.TimeoutSeconds <= 0 {
		cfg.Detection.TimeoutSeconds = 30
	}
	cfg.Detection.Timeout = time.Duration(cfg.Detection.TimeoutSeconds) * time.Second
	if cfg.Detection.NotFreeLabel == "" {
		cfg.Detection.NotFreeLabel = "not_free_parking_space"
	}

	if cfg.Capture.IntervalMS <= 0 {
		cfg.Capture.IntervalMS = 3000
	}
	cfg.Capture.Interval = time.Duration(cfg.Capture.IntervalMS) * time.Millisecond
	if cfg.Capture.JPEGQuality <= 0 || cfg.Capture.JPEGQuality > 100 {
		cfg.Capture.JPEGQuality = 85
	}

	if cfg.Registry.DefaultCount <= 0 {
		cfg.Registry.DefaultCount = 20
	}
	if cfg.Registry.InitialLoadDelayMS <= 0 {
		cfg.Registry.InitialLoadDelayMS = 2000
	}
	cfg.Registry.InitialLoadDelay = time.Duration(cfg.Registry.InitialLoadDelayMS) * time.Millisecond

	if len(cfg.Reservation.Durations) == 0 {
		cfg.Reservation.Durations = []int{30, 60, 120, 180}
	}
	if cfg.Reservation.DefaultUserID == "" {
		cfg.Reservation.DefaultUserID = "user-1"
	}

	if cfg.Navigation.DistanceMeters <= 0 {
		cfg.Navigation.DistanceMeters = 150
	}
	if cfg.Navigation.WalkingMetersPerMin <= 0 {
		cfg.Navigation.WalkingMetersPerMin = 75
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:spotwise.db?cache=shared"
	}

	if cfg.History.RetentionHours <= 0 {
		cfg.History.RetentionHours = 24
	}
	cfg.History.Retention = time.Duration(cfg.History.RetentionHours) * time.Hour
	if cfg.History.PruneSchedule == "" {
		cfg.History.PruneSchedule = "@every 1h"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
