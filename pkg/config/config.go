// Package config handles kerndb configuration via YAML files and environment variables.
//
// Configuration Precedence (highest to lowest):
//  1. Environment variables (GRAPHKERNEL_*)
//  2. Config file (config.yaml)
//  3. Built-in defaults
//
// Example Usage:
//
//	cfg, err := config.LoadFromFile(config.FindConfigFile())
//	if err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//
// Environment Variables (all use GRAPHKERNEL_ prefix):
//
// Store:
//   - GRAPHKERNEL_DATA_DIR="./data"
//   - GRAPHKERNEL_IN_MEMORY=false
//   - GRAPHKERNEL_PAYLOAD_CAP=120
//   - GRAPHKERNEL_ID_GRAB_SIZE=1000
//
// Reaper:
//   - GRAPHKERNEL_REAPER_PERIOD="5s"
//   - GRAPHKERNEL_REAPER_IDLE_THRESHOLD="30s"
//
// Replica RPC:
//   - GRAPHKERNEL_LISTEN_ADDRESS="0.0.0.0:7690"
//   - GRAPHKERNEL_CLUSTER_SECRET="..."
//
// Logging:
//   - GRAPHKERNEL_LOG_LEVEL="info"
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds all kerndb configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Reaper  ReaperConfig  `yaml:"reaper"`
	Master  MasterConfig  `yaml:"master"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig holds record-store settings.
type StoreConfig struct {
	// DataDir is the directory badgerstore writes record files and the
	// logical log to.
	DataDir string `yaml:"data_dir"`
	// InMemory selects store/memstore instead of store/badgerstore.
	InMemory bool `yaml:"in_memory"`
	// PayloadCap is the maximum total size in bytes of live property
	// blocks packed into one PropertyRecord.
	PayloadCap int `yaml:"payload_cap"`
	// IDGrabSize is loaded and validated but not read by the master
	// coordinator, whose allocateIds batches are always 1000 IDs.
	IDGrabSize int `yaml:"id_grab_size"`
}

// ReaperConfig holds the master coordinator's idle-transaction reaper
// settings. Hardcoded in the source system; made configurable here.
type ReaperConfig struct {
	Period        time.Duration `yaml:"period"`
	IdleThreshold time.Duration `yaml:"idle_threshold"`
}

// MasterConfig holds replica-facing coordinator settings.
type MasterConfig struct {
	ListenAddress string `yaml:"listen_address"`
	ClusterSecret string `yaml:"cluster_secret"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LoadDefaults returns a Config populated with built-in defaults.
func LoadDefaults() *Config {
	return &Config{
		Store: StoreConfig{
			DataDir:    "./data",
			InMemory:   false,
			PayloadCap: 120,
			IDGrabSize: 1000,
		},
		Reaper: ReaperConfig{
			Period:        5 * time.Second,
			IdleThreshold: 30 * time.Second,
		},
		Master: MasterConfig{
			ListenAddress: "0.0.0.0:7690",
			ClusterSecret: generateDefaultSecret(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromFile reads a YAML config file (if path is non-empty and
// exists) layered over defaults, then applies environment overrides.
func LoadFromFile(path string) (*Config, error) {
	cfg := LoadDefaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnvVars(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv returns defaults layered with environment overrides only,
// skipping any config file lookup. Used by tests and by callers that
// manage their own file loading.
func LoadFromEnv() *Config {
	cfg := LoadDefaults()
	applyEnvVars(cfg)
	return cfg
}

// FindConfigFile looks for config.yaml in the working directory, then
// in $GRAPHKERNEL_CONFIG_DIR, returning "" if neither is found.
func FindConfigFile() string {
	candidates := []string{"config.yaml", "config.yml"}
	if dir := os.Getenv("GRAPHKERNEL_CONFIG_DIR"); dir != "" {
		candidates = append(candidates, dir+"/config.yaml")
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func applyEnvVars(cfg *Config) {
	cfg.Store.DataDir = getEnv("GRAPHKERNEL_DATA_DIR", cfg.Store.DataDir)
	cfg.Store.InMemory = getEnvBool("GRAPHKERNEL_IN_MEMORY", cfg.Store.InMemory)
	cfg.Store.PayloadCap = getEnvInt("GRAPHKERNEL_PAYLOAD_CAP", cfg.Store.PayloadCap)
	cfg.Store.IDGrabSize = getEnvInt("GRAPHKERNEL_ID_GRAB_SIZE", cfg.Store.IDGrabSize)

	cfg.Reaper.Period = getEnvDuration("GRAPHKERNEL_REAPER_PERIOD", cfg.Reaper.Period)
	cfg.Reaper.IdleThreshold = getEnvDuration("GRAPHKERNEL_REAPER_IDLE_THRESHOLD", cfg.Reaper.IdleThreshold)

	cfg.Master.ListenAddress = getEnv("GRAPHKERNEL_LISTEN_ADDRESS", cfg.Master.ListenAddress)
	cfg.Master.ClusterSecret = getEnv("GRAPHKERNEL_CLUSTER_SECRET", cfg.Master.ClusterSecret)

	cfg.Logging.Level = getEnv("GRAPHKERNEL_LOG_LEVEL", cfg.Logging.Level)
}

// Validate checks the config for internally inconsistent settings.
func (c *Config) Validate() error {
	if c.Store.PayloadCap <= 0 {
		return fmt.Errorf("store.payload_cap must be positive, got %d", c.Store.PayloadCap)
	}
	if c.Store.IDGrabSize <= 0 {
		return fmt.Errorf("store.id_grab_size must be positive, got %d", c.Store.IDGrabSize)
	}
	if c.Reaper.Period <= 0 {
		return fmt.Errorf("reaper.period must be positive, got %s", c.Reaper.Period)
	}
	if c.Reaper.IdleThreshold <= 0 {
		return fmt.Errorf("reaper.idle_threshold must be positive, got %s", c.Reaper.IdleThreshold)
	}
	if !c.Store.InMemory && c.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir must be set unless store.in_memory is true")
	}
	return nil
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{DataDir=%s InMemory=%v PayloadCap=%d IDGrabSize=%d ReaperPeriod=%s ReaperIdle=%s Listen=%s LogLevel=%s}",
		c.Store.DataDir, c.Store.InMemory, c.Store.PayloadCap, c.Store.IDGrabSize,
		c.Reaper.Period, c.Reaper.IdleThreshold, c.Master.ListenAddress, c.Logging.Level)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

func generateDefaultSecret() string {
	return "CHANGE_ME_IN_PRODUCTION_" + uuid.New().String()
}
