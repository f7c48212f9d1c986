package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (optional, used by the postgres storage backend)
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Remote workflow (dispatch + poll)
	Workflow WorkflowConfig

	// Mock pipeline
	Pipeline PipelineConfig

	// Q-learning position sizer
	Sizer SizerConfig

	// Audit log / stats persistence
	Storage StorageConfig

	// Headline feed
	News NewsConfig

	// Sample events YAML
	EventsFile string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	Prefix   string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a database URL was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// WorkflowConfig holds the remote workflow endpoints
type WorkflowConfig struct {
	DispatchURL   string // workflow dispatch endpoint (POST)
	DataURL       string // directory that serves pipeline-{runId}.json and runs-index.json
	Ref           string
	Token         string // bearer credential; non-empty switches to remote mode
	Model         string
	PollMaxWait   time.Duration
	PollInterval  time.Duration
	RatePerSecond float64
}

// PipelineConfig holds mock pipeline settings
type PipelineConfig struct {
	Pacing         bool  // artificial per-stage delays
	Seed           int64 // 0 = time based
	MaxPositionPct float64
	HardVetoPct    float64
	NAVUSD         float64 // portfolio value execution plans are sized against
	FillSimulation bool    // replay execution plans through the order book
}

// SizerConfig holds the Q-learning position sizer settings
type SizerConfig struct {
	Enabled      bool
	Alpha        float64 // learning rate
	Gamma        float64 // discount
	Epsilon      float64 // initial exploration rate
	EpsilonDecay float64
	EpsilonMin   float64
	VIX          float64 // volatility input until a market feed exists
}

// StorageConfig selects where the audit log and stats live
type StorageConfig struct {
	Backend    string // file, redis, postgres, memory
	DataDir    string
	AuditLimit int
}

// NewsConfig holds headline feed settings
type NewsConfig struct {
	BaseURL   string
	Watchlist []string
}

// Storage backends
const (
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Prefix:   getEnv("REDIS_PREFIX", "tradecraft"),
		},

		// Remote workflow
		Workflow: WorkflowConfig{
			DispatchURL:   getEnv("WORKFLOW_DISPATCH_URL", "https://api.github.com/repos/tradecraft/tradecraft/actions/workflows/pipeline-run.yml/dispatches"),
			DataURL:       strings.TrimRight(getEnv("WORKFLOW_DATA_URL", "http://localhost:8089/data/runs"), "/"),
			Ref:           getEnv("WORKFLOW_REF", "main"),
			Token:         getEnv("WORKFLOW_TOKEN", ""),
			Model:         getEnv("WORKFLOW_MODEL", "openai/gpt-4o"),
			PollMaxWait:   getEnvAsDuration("WORKFLOW_POLL_MAX_WAIT", "5m"),
			PollInterval:  getEnvAsDuration("WORKFLOW_POLL_INTERVAL", "5s"),
			RatePerSecond: getEnvAsFloat("WORKFLOW_RATE_PER_SEC", 2),
		},

		// Mock pipeline
		Pipeline: PipelineConfig{
			Pacing:         getEnvAsBool("PIPELINE_PACING", true),
			Seed:           int64(getEnvAsInt("PIPELINE_SEED", 0)),
			MaxPositionPct: getEnvAsFloat("RISK_MAX_POSITION_PCT", 5.0),
			HardVetoPct:    getEnvAsFloat("RISK_HARD_VETO_PCT", 20.0),
			NAVUSD:         getEnvAsFloat("PORTFOLIO_NAV_USD", 10_000_000),
			FillSimulation: getEnvAsBool("FILL_SIMULATION", true),
		},

		// Position sizer
		Sizer: SizerConfig{
			Enabled:      getEnvAsBool("SIZER_ENABLED", true),
			Alpha:        getEnvAsFloat("SIZER_ALPHA", 0.10),
			Gamma:        getEnvAsFloat("SIZER_GAMMA", 0.90),
			Epsilon:      getEnvAsFloat("SIZER_EPSILON", 0.15),
			EpsilonDecay: getEnvAsFloat("SIZER_EPSILON_DECAY", 0.995),
			EpsilonMin:   getEnvAsFloat("SIZER_EPSILON_MIN", 0.02),
			VIX:          getEnvAsFloat("SIZER_VIX", 18.4),
		},

		// Storage
		Storage: StorageConfig{
			Backend:    getEnv("STORAGE_BACKEND", StorageFile),
			DataDir:    getEnv("DATA_DIR", "data"),
			AuditLimit: getEnvAsInt("AUDIT_LIMIT", 200),
		},

		// News
		News: NewsConfig{
			BaseURL:   getEnv("NEWS_BASE_URL", "https://feeds.finance.yahoo.com/rss/2.0/headline"),
			Watchlist: getEnvAsList("NEWS_WATCHLIST", []string{"AAPL", "NVDA", "SPY"}),
		},

		EventsFile: getEnv("EVENTS_FILE", "config/events.yaml"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Storage.Backend {
	case StorageFile, StorageMemory:
	case StorageRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("STORAGE_BACKEND=redis requires REDIS_ENABLED=true")
		}
	case StoragePostgres:
		if !c.Database.Enabled() {
			return fmt.Errorf("STORAGE_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of: file, redis, postgres, memory")
	}

	if c.Workflow.PollInterval <= 0 {
		return fmt.Errorf("WORKFLOW_POLL_INTERVAL must be positive")
	}
	if c.Workflow.PollMaxWait < c.Workflow.PollInterval {
		return fmt.Errorf("WORKFLOW_POLL_MAX_WAIT must be at least WORKFLOW_POLL_INTERVAL")
	}

	if c.Storage.AuditLimit <= 0 {
		return fmt.Errorf("AUDIT_LIMIT must be positive")
	}

	if c.Pipeline.NAVUSD <= 0 {
		return fmt.Errorf("PORTFOLIO_NAV_USD must be positive")
	}

	if c.Sizer.Alpha <= 0 || c.Sizer.Alpha > 1 {
		return fmt.Errorf("SIZER_ALPHA must be in (0, 1]")
	}
	if c.Sizer.Gamma < 0 || c.Sizer.Gamma > 1 {
		return fmt.Errorf("SIZER_GAMMA must be in [0, 1]")
	}
	if c.Sizer.Epsilon < 0 || c.Sizer.Epsilon > 1 || c.Sizer.EpsilonMin < 0 || c.Sizer.EpsilonMin > c.Sizer.Epsilon {
		return fmt.Errorf("SIZER_EPSILON_MIN must be in [0, SIZER_EPSILON] and SIZER_EPSILON in [0, 1]")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env", // Current directory
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	items := make([]string, 0)
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
