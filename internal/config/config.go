package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration values.
type Config struct {
	AppEnv   string
	Port     string
	LogLevel string

	Store  StoreConfig
	Vision VisionConfig
	Render RenderConfig
	LLM    LLMConfig
	Media  MediaConfig
	Auth   AuthConfig
	Jobs   JobsConfig

	OTLPEndpoint string
}

// StoreConfig selects the job store backend.
type StoreConfig struct {
	Backend       string
	DatabaseURL   string
	SupabaseURL   string
	SupabaseKey   string
	SupabaseTable string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

// VisionConfig configures the image analysis client.
type VisionConfig struct {
	GeminiAPIKey string
	Model        string
	Timeout      time.Duration
}

// RenderConfig configures image generation.
type RenderConfig struct {
	Provider                 string
	GeminiModel              string
	Timeout                  time.Duration
	VertexProjectID          string
	VertexLocation           string
	VertexModel              string
	VertexServiceAccount     string
	VertexServiceAccountJSON string
}

// LLMConfig configures the chat client used for furniture suggestions.
type LLMConfig struct {
	Provider     string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
}

// MediaConfig describes S3/media related configuration.
type MediaConfig struct {
	Bucket         string
	Region         string
	Endpoint       string
	PublicURL      string
	KeyPrefix      string
	ForcePathStyle bool
	AccessKeyID    string
	SecretKey      string
	LocalDir       string
	LocalPublicURL string
}

// AuthConfig configures bearer tokens.
type AuthConfig struct {
	Secret        string
	ClientKeyHash string
	TokenTTL      time.Duration
}

// JobsConfig bounds pipeline work and live table retention.
type JobsConfig struct {
	MaxConcurrent int
	Retention     time.Duration
}

var (
	storeBackends   = []string{"", "auto", "memory", "postgres", "supabase", "redis"}
	renderProviders = []string{"gemini", "imagen"}
	llmProviders    = []string{"gemini", "openai", "none"}
)

// FromEnv loads configuration from environment variables and applies defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		AppEnv:   getenv("APP_ENV", "development"),
		Port:     getenv("APP_PORT", "8080"),
		LogLevel: os.Getenv("LOG_LEVEL"),
		Store: StoreConfig{
			Backend:       strings.ToLower(strings.TrimSpace(os.Getenv("JOB_STORE"))),
			DatabaseURL:   os.Getenv("DATABASE_URL"),
			SupabaseURL:   os.Getenv("SUPABASE_URL"),
			SupabaseKey:   os.Getenv("SUPABASE_SERVICE_KEY"),
			SupabaseTable: getenv("SUPABASE_JOBS_TABLE", "ai_processing_jobs"),
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
			RedisDB:       getenvInt("REDIS_DB", 0),
			RedisTTL:      getenvDuration("REDIS_JOB_TTL", 72*time.Hour),
		},
		Vision: VisionConfig{
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
			Model:        getenv("GEMINI_VISION_MODEL", "gemini-1.5-flash-001"),
			Timeout:      getenvDuration("VISION_TIMEOUT", 60*time.Second),
		},
		Render: RenderConfig{
			Provider:                 strings.ToLower(getenv("RENDER_PROVIDER", "gemini")),
			GeminiModel:              getenv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
			Timeout:                  getenvDuration("RENDER_TIMEOUT", 120*time.Second),
			VertexProjectID:          os.Getenv("VERTEX_PROJECT_ID"),
			VertexLocation:           os.Getenv("VERTEX_LOCATION"),
			VertexModel:              getenv("VERTEX_IMAGEN_MODEL", "imagen-3.0-capability-001"),
			VertexServiceAccount:     os.Getenv("VERTEX_SERVICE_ACCOUNT"),
			VertexServiceAccountJSON: os.Getenv("VERTEX_SERVICE_ACCOUNT_JSON"),
		},
		LLM: LLMConfig{
			Provider:     strings.ToLower(getenv("LLM_PROVIDER", "gemini")),
			GeminiModel:  os.Getenv("GEMINI_CHAT_MODEL"),
			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
			OpenAIModel:  getenv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Media: MediaConfig{
			Bucket:         os.Getenv("S3_BUCKET"),
			Region:         os.Getenv("S3_REGION"),
			Endpoint:       os.Getenv("S3_ENDPOINT"),
			PublicURL:      os.Getenv("S3_PUBLIC_URL"),
			KeyPrefix:      strings.Trim(os.Getenv("S3_KEY_PREFIX"), "/"),
			ForcePathStyle: getenvBool("S3_FORCE_PATH_STYLE", false),
			AccessKeyID:    os.Getenv("S3_ACCESS_KEY_ID"),
			SecretKey:      os.Getenv("S3_SECRET_ACCESS_KEY"),
			LocalDir:       os.Getenv("MEDIA_LOCAL_DIR"),
			LocalPublicURL: os.Getenv("MEDIA_PUBLIC_BASE_URL"),
		},
		Auth: AuthConfig{
			Secret:        os.Getenv("AUTH_SECRET"),
			ClientKeyHash: os.Getenv("AUTH_CLIENT_KEY_HASH"),
			TokenTTL:      getenvDuration("AUTH_TOKEN_TTL", 168*time.Hour),
		},
		Jobs: JobsConfig{
			MaxConcurrent: getenvInt("JOB_MAX_CONCURRENT", 0),
			Retention:     getenvDuration("JOB_RETENTION", 24*time.Hour),
		},
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if strings.TrimSpace(cfg.Port) == "" {
		return Config{}, fmt.Errorf("APP_PORT cannot be empty")
	}
	if !oneOf(cfg.Store.Backend, storeBackends) {
		return Config{}, fmt.Errorf("JOB_STORE %q is not one of memory, postgres, supabase, redis", cfg.Store.Backend)
	}
	if !oneOf(cfg.Render.Provider, renderProviders) {
		return Config{}, fmt.Errorf("RENDER_PROVIDER %q is not one of gemini, imagen", cfg.Render.Provider)
	}
	if !oneOf(cfg.LLM.Provider, llmProviders) {
		return Config{}, fmt.Errorf("LLM_PROVIDER %q is not one of gemini, openai, none", cfg.LLM.Provider)
	}
	if cfg.Jobs.MaxConcurrent < 0 {
		return Config{}, fmt.Errorf("JOB_MAX_CONCURRENT must not be negative")
	}

	return cfg, nil
}

// Development reports whether the service runs in development mode.
func (c Config) Development() bool {
	return c.AppEnv == "development"
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func getenvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
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

func getenvDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := time.ParseDuration(val)
	if err != nil || parsed < 0 {
		return fallback
	}

	return parsed
}
