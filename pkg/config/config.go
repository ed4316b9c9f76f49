package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	LLM       LLMConfig
	Tracker   TrackerConfig
	Ingest    IngestConfig
	Extract   ExtractConfig
	Reconcile ReconcileConfig
	Memory    MemoryConfig
	Sprint    SprintConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string   `envconfig:"PORT" default:"8080"`
	Host            string   `envconfig:"HOST" default:"0.0.0.0"`
	Environment     string   `envconfig:"ENVIRONMENT" default:"development"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout int      `envconfig:"SHUTDOWN_TIMEOUT" default:"10"`
	// Shared secret used to verify signed transcript deliveries from the
	// chat-transport. Empty disables verification.
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host        string `envconfig:"DB_HOST" default:"localhost"`
	Port        string `envconfig:"DB_PORT" default:"5432"`
	User        string `envconfig:"DB_USER" default:"postgres"`
	Password    string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name        string `envconfig:"DB_NAME" default:"sprint_scribe"`
	SSLMode     string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns    int    `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns    int    `envconfig:"DB_MIN_CONNS" default:"5"`
	AutoMigrate bool   `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

// RedisConfig holds Redis configuration. Redis backs the per-ticket
// reconciliation lock; when Host is empty an in-process lock is used instead.
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// StorageConfig holds object storage configuration for transcript archival
type StorageConfig struct {
	Enabled         bool   `envconfig:"STORAGE_ENABLED" default:"false"`
	Endpoint        string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretAccessKey string `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	BucketName      string `envconfig:"STORAGE_BUCKET" default:"sprint-scribe"`
	UseSSL          bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
}

// LLMConfig holds configuration for the LLM collaborator
type LLMConfig struct {
	APIKey         string        `envconfig:"LLM_API_KEY"`
	BaseURL        string        `envconfig:"LLM_API_URL" default:"https://api.groq.com/openai"`
	Model          string        `envconfig:"LLM_MODEL" default:"llama-3.1-70b-versatile"`
	EmbeddingModel string        `envconfig:"LLM_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	Timeout        time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
	MaxAttempts    int           `envconfig:"LLM_MAX_ATTEMPTS" default:"3"`
}

// TrackerConfig holds configuration for the ticket-store collaborator
type TrackerConfig struct {
	Host             string        `envconfig:"TRACKER_HOST" default:"https://jira.company.com"`
	Token            string        `envconfig:"TRACKER_TOKEN"`
	Project          string        `envconfig:"TRACKER_PROJECT" default:"PROJ"`
	StoryPointsField string        `envconfig:"TRACKER_STORY_POINTS_FIELD" default:"customfield_10002"`
	Timeout          time.Duration `envconfig:"TRACKER_TIMEOUT" default:"30s"`
	MaxAttempts      int           `envconfig:"TRACKER_MAX_ATTEMPTS" default:"3"`
}

// IngestConfig tunes the meeting job worker pool
type IngestConfig struct {
	WorkerCount  int           `envconfig:"INGEST_WORKER_COUNT" default:"2"`
	PollInterval time.Duration `envconfig:"INGEST_POLL_INTERVAL" default:"5s"`
	JobTimeout   time.Duration `envconfig:"INGEST_JOB_TIMEOUT" default:"5m"`
	MaxRetries   int           `envconfig:"INGEST_MAX_RETRIES" default:"3"`
}

// ExtractConfig tunes the extraction engine
type ExtractConfig struct {
	ContextExcerpts int `envconfig:"EXTRACT_CONTEXT_EXCERPTS" default:"5"`
	// Maximum transcript bytes sent per completion request.
	MaxPromptBytes int `envconfig:"EXTRACT_MAX_PROMPT_BYTES" default:"48000"`
}

// ReconcileConfig tunes the reconciliation engine
type ReconcileConfig struct {
	// Minimum text similarity for fuzzy ticket matching, in [0,1].
	MatchThreshold float64       `envconfig:"RECONCILE_MATCH_THRESHOLD" default:"0.55"`
	LockTTL        time.Duration `envconfig:"RECONCILE_LOCK_TTL" default:"30s"`
}

// MemoryConfig tunes the meeting memory store
type MemoryConfig struct {
	// Excerpts longer than this are truncated, never rejected.
	ExcerptMaxChars int `envconfig:"MEMORY_EXCERPT_MAX_CHARS" default:"1200"`
	ChunkChars      int `envconfig:"MEMORY_CHUNK_CHARS" default:"800"`
	TopK            int `envconfig:"MEMORY_TOP_K" default:"5"`
}

// SprintConfig tunes the sprint health analyzer
type SprintConfig struct {
	StalledAfterDays int `envconfig:"SPRINT_STALLED_AFTER_DAYS" default:"3"`
	BlockedAfterDays int `envconfig:"SPRINT_BLOCKED_AFTER_DAYS" default:"2"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables or defaults")
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Reconcile.MatchThreshold < 0 || c.Reconcile.MatchThreshold > 1 {
		return fmt.Errorf("RECONCILE_MATCH_THRESHOLD must be in [0,1], got %f", c.Reconcile.MatchThreshold)
	}
	if c.Memory.TopK <= 0 {
		return fmt.Errorf("MEMORY_TOP_K must be positive")
	}
	if c.Memory.ChunkChars > c.Memory.ExcerptMaxChars {
		return fmt.Errorf("MEMORY_CHUNK_CHARS cannot exceed MEMORY_EXCERPT_MAX_CHARS")
	}
	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
