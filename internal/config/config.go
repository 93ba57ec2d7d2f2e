package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Storage      StorageConfig
	Assistant    AssistantConfig
	Lifecycle    LifecycleConfig
	Directory    DirectoryConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	// ConnectAttempts bounds startup pings while the database comes up.
	ConnectAttempts int
}

// RedisConfig holds Redis connection values. Several addresses select cluster mode,
// or sentinel mode when MasterName is set.
type RedisConfig struct {
	Addrs      []string
	MasterName string
	Password   string
	DB         int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// NotificationConfig holds notification sinks.
type NotificationConfig struct {
	EmailFrom    string
	WebhookURL   string
	KafkaBrokers []string
	KafkaTopic   string
}

// StorageConfig locates the bucket rendered documents are written to.
type StorageConfig struct {
	// BucketURL is a gocloud blob URL (file:///..., mem://, s3://...). When empty,
	// ArtifactDir is opened as a local file bucket.
	BucketURL   string
	ArtifactDir string
	PublicPath  string
	Institution string
	Signatory   string
}

// AssistantConfig configures the optional conversational assistant.
type AssistantConfig struct {
	Enabled        bool
	APIKey         string
	AssistantID    string
	ServiceURL     string
	TokenURL       string
	APIVersion     string
	TimeoutSeconds int
}

// LifecycleConfig tunes ticket lifecycle behavior.
type LifecycleConfig struct {
	// LockBackend is "memory" or "redis".
	LockBackend           string
	LockTTLSeconds        int
	CommitOnRenderFailure bool
}

// DirectoryConfig points at the user seed file.
type DirectoryConfig struct {
	SeedFile string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	lockBackend := strings.ToLower(getEnv("LOCK_BACKEND", "memory"))
	if lockBackend != "memory" && lockBackend != "redis" {
		return nil, fmt.Errorf("invalid LOCK_BACKEND %q", lockBackend)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "campus-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:        int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:   getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:   getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec:  int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
			ConnectAttempts: getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", 5),
		},
		Redis: RedisConfig{
			Addrs:      getEnvAsList("REDIS_ADDR"),
			MasterName: os.Getenv("REDIS_MASTER_NAME"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         redisDB,
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       os.Getenv("LOG_FILE"),
			MaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvAsInt("LOG_MAX_AGE_DAYS", 28),
			Compress:   getEnvAsBool("LOG_COMPRESS", false),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Notification: NotificationConfig{
			EmailFrom:    getEnv("NOTIFY_EMAIL_FROM", "noreply@college.edu"),
			WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
			KafkaBrokers: getEnvAsList("KAFKA_BROKERS"),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "campus-desk.tickets"),
		},
		Storage: StorageConfig{
			BucketURL:   os.Getenv("ARTIFACT_BUCKET_URL"),
			ArtifactDir: getEnv("ARTIFACT_DIR", "public/certificates"),
			PublicPath:  getEnv("ARTIFACT_PUBLIC_PATH", "/public/certificates"),
			Institution: getEnv("INSTITUTION_NAME", "Smart Campus Institute of Technology"),
			Signatory:   getEnv("DOCUMENT_SIGNATORY", "Registrar"),
		},
		Assistant: AssistantConfig{
			Enabled:        getEnvAsBool("ASSISTANT_ENABLED", false),
			APIKey:         os.Getenv("IBM_API_KEY"),
			AssistantID:    os.Getenv("IBM_ASSISTANT_ID"),
			ServiceURL:     os.Getenv("IBM_SERVICE_URL"),
			TokenURL:       getEnv("IBM_TOKEN_URL", "https://iam.cloud.ibm.com/identity/token"),
			APIVersion:     getEnv("IBM_ASSISTANT_VERSION", "2021-06-14"),
			TimeoutSeconds: getEnvAsInt("ASSISTANT_TIMEOUT_SECONDS", 10),
		},
		Lifecycle: LifecycleConfig{
			LockBackend:           lockBackend,
			LockTTLSeconds:        getEnvAsInt("LOCK_TTL_SECONDS", 30),
			CommitOnRenderFailure: getEnvAsBool("LIFECYCLE_COMMIT_ON_RENDER_FAILURE", false),
		},
		Directory: DirectoryConfig{
			SeedFile: getEnv("DIRECTORY_SEED_FILE", "config/users.yaml"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the per-call assistant deadline.
func (a AssistantConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// LockTTL returns how long a distributed ticket lock may be held.
func (l LifecycleConfig) LockTTL() time.Duration {
	if l.LockTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(l.LockTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
