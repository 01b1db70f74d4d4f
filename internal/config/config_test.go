package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "APP_PORT", "JOB_STORE", "RENDER_PROVIDER", "LLM_PROVIDER", "REDIS_JOB_TTL", "JOB_RETENTION", "JOB_MAX_CONCURRENT"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv returned error: %v", err)
	}
	if cfg.Port != "8080" || !cfg.Development() {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Store.SupabaseTable != "ai_processing_jobs" || cfg.Store.RedisTTL != 72*time.Hour {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if cfg.Render.Provider != "gemini" || cfg.LLM.Provider != "gemini" || cfg.LLM.OpenAIModel != "gpt-4o-mini" {
		t.Fatalf("providers = %+v %+v", cfg.Render, cfg.LLM)
	}
	if cfg.Jobs.Retention != 24*time.Hour || cfg.Jobs.MaxConcurrent != 0 {
		t.Fatalf("jobs = %+v", cfg.Jobs)
	}
	if cfg.Auth.TokenTTL != 168*time.Hour {
		t.Fatalf("token ttl = %v", cfg.Auth.TokenTTL)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("JOB_STORE", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_JOB_TTL", "2h")
	t.Setenv("RENDER_PROVIDER", "imagen")
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("S3_KEY_PREFIX", "/renders/")
	t.Setenv("S3_FORCE_PATH_STYLE", "true")
	t.Setenv("JOB_MAX_CONCURRENT", "4")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv returned error: %v", err)
	}
	if cfg.Development() || cfg.Port != "9090" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.RedisDB != 3 || cfg.Store.RedisTTL != 2*time.Hour {
		t.Fatalf("store = %+v", cfg.Store)
	}
	if cfg.Render.Provider != "imagen" || cfg.LLM.Provider != "none" {
		t.Fatalf("providers = %q %q", cfg.Render.Provider, cfg.LLM.Provider)
	}
	if cfg.Media.KeyPrefix != "renders" || !cfg.Media.ForcePathStyle {
		t.Fatalf("media = %+v", cfg.Media)
	}
	if cfg.Jobs.MaxConcurrent != 4 {
		t.Fatalf("max concurrent = %d", cfg.Jobs.MaxConcurrent)
	}
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("VISION_TIMEOUT", "soon")
	t.Setenv("JOB_STORE", "")
	t.Setenv("RENDER_PROVIDER", "")
	t.Setenv("LLM_PROVIDER", "")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv returned error: %v", err)
	}
	if cfg.Store.RedisDB != 0 || cfg.Vision.Timeout != 60*time.Second {
		t.Fatalf("got %d %v", cfg.Store.RedisDB, cfg.Vision.Timeout)
	}
}

func TestFromEnvRejectsUnknownNames(t *testing.T) {
	cases := map[string]string{
		"JOB_STORE":          "dynamo",
		"RENDER_PROVIDER":    "dalle",
		"LLM_PROVIDER":       "claude",
		"JOB_MAX_CONCURRENT": "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv("JOB_STORE", "")
			t.Setenv("RENDER_PROVIDER", "")
			t.Setenv("LLM_PROVIDER", "")
			t.Setenv("JOB_MAX_CONCURRENT", "")
			t.Setenv(key, value)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}
}
