package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"roomDesignAi/internal/auth"
	"roomDesignAi/internal/config"
	"roomDesignAi/internal/events"
	"roomDesignAi/internal/furnish"
	"roomDesignAi/internal/jobs"
	"roomDesignAi/internal/llm"
	"roomDesignAi/internal/logging"
	"roomDesignAi/internal/media"
	"roomDesignAi/internal/render"
	"roomDesignAi/internal/server"
	"roomDesignAi/internal/storage"
	"roomDesignAi/internal/telemetry"
	"roomDesignAi/internal/vision"
)

const sweepInterval = 10 * time.Minute

func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		bootLogger := logging.New("production", "")
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, "roomdesign-api", cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init tracing")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(registry)

	inner, err := storage.NewStore(ctx, storage.Options{
		Backend:       cfg.Store.Backend,
		DatabaseURL:   cfg.Store.DatabaseURL,
		SupabaseURL:   cfg.Store.SupabaseURL,
		SupabaseKey:   cfg.Store.SupabaseKey,
		SupabaseTable: cfg.Store.SupabaseTable,
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
		RedisTTL:      cfg.Store.RedisTTL,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init job store")
	}
	store := storage.NewTolerant(inner, logger, metrics.StoreError)
	defer store.Close()

	uploader := newUploader(ctx, cfg.Media, logger)

	var analyzer vision.Analyzer
	if cfg.Vision.GeminiAPIKey != "" {
		analyzer = vision.NewGeminiAnalyzer(cfg.Vision.GeminiAPIKey, cfg.Vision.Model, cfg.Vision.Timeout)
		logger.Info().Str("model", cfg.Vision.Model).Msg("vision analyzer ready")
	} else {
		logger.Warn().Msg("GEMINI_API_KEY missing, design jobs and vision analysis are disabled")
	}

	var orchestrator *jobs.Orchestrator
	broker := events.NewBroker()
	if analyzer != nil {
		orchestrator, err = jobs.New(jobs.Deps{
			Registry:      jobs.NewRegistry(),
			Store:         store,
			Analyzer:      analyzer,
			Generator:     newGenerator(cfg, uploader, logger),
			Furnisher:     newFurnisher(ctx, cfg, logger),
			Events:        broker,
			Metrics:       metrics,
			Logger:        logger,
			MaxConcurrent: cfg.Jobs.MaxConcurrent,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init orchestrator")
		}
		go orchestrator.RunSweeper(ctx, sweepInterval, cfg.Jobs.Retention)
	}

	sessions := auth.SessionManager{Secret: []byte(cfg.Auth.Secret), Duration: cfg.Auth.TokenTTL}
	srv := server.New(server.Options{
		Port:     cfg.Port,
		Jobs:     orchestrator,
		Events:   broker,
		Vision:   vision.Handler{Analyzer: analyzer},
		Auth:     auth.Middleware{Sessions: sessions},
		Tokens:   auth.Handler{Sessions: sessions, ClientKeyHash: cfg.Auth.ClientKeyHash},
		Metrics:  metrics,
		Gatherer: registry,
		Logger:   logger,
	})

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown error")
		}
		if orchestrator != nil {
			if err := orchestrator.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("design jobs still running at shutdown")
			}
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown error")
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

func newUploader(ctx context.Context, cfg config.MediaConfig, logger zerolog.Logger) media.Uploader {
	if cfg.Bucket != "" && cfg.Region != "" {
		uploader, err := media.NewUploader(ctx, media.Config{
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			PublicURL:       cfg.PublicURL,
			KeyPrefix:       cfg.KeyPrefix,
			ForcePathStyle:  cfg.ForcePathStyle,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretKey,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init media uploader")
		}
		logger.Info().Str("bucket", cfg.Bucket).Msg("media uploader: s3")
		return uploader
	}

	uploader, err := media.NewLocalUploader(cfg.LocalDir, cfg.LocalPublicURL)
	if err != nil {
		logger.Warn().Err(err).Msg("local media storage unavailable, uploads disabled")
		return media.Disabled()
	}
	logger.Info().Str("dir", uploader.BaseDir).Msg("media uploader: local storage (S3 config missing)")
	return uploader
}

func newGenerator(cfg config.Config, uploader media.Uploader, logger zerolog.Logger) render.Generator {
	if cfg.Render.Provider == "imagen" {
		logger.Info().Str("model", cfg.Render.VertexModel).Msg("image generator ready: vertex imagen")
		return render.NewImagenGenerator(render.ImagenConfig{
			ProjectID:          cfg.Render.VertexProjectID,
			Location:           cfg.Render.VertexLocation,
			Model:              cfg.Render.VertexModel,
			APIKey:             cfg.Vision.GeminiAPIKey,
			ServiceAccount:     cfg.Render.VertexServiceAccount,
			ServiceAccountJSON: cfg.Render.VertexServiceAccountJSON,
		}, uploader)
	}
	logger.Info().Str("model", cfg.Render.GeminiModel).Msg("image generator ready: gemini")
	return render.NewGeminiImageGenerator(cfg.Vision.GeminiAPIKey, cfg.Render.GeminiModel, cfg.Render.Timeout, uploader)
}

func newFurnisher(ctx context.Context, cfg config.Config, logger zerolog.Logger) furnish.Suggester {
	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.OpenAIAPIKey == "" {
			logger.Warn().Msg("OPENAI_API_KEY missing, furniture suggestions disabled")
			return nil
		}
		logger.Info().Str("model", cfg.LLM.OpenAIModel).Msg("furniture suggestions: openai")
		return furnish.NewLLMSuggester(llm.NewOpenAIClient(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIModel))
	case "gemini":
		tokenSource := serviceAccountTokens(ctx, cfg.Render.VertexServiceAccountJSON, logger)
		if cfg.Vision.GeminiAPIKey == "" && tokenSource == nil {
			logger.Warn().Msg("no Gemini credentials, furniture suggestions disabled")
			return nil
		}
		logger.Info().Msg("furniture suggestions: gemini")
		return furnish.NewLLMSuggester(llm.NewGeminiClient(cfg.Vision.GeminiAPIKey, cfg.LLM.GeminiModel, cfg.Vision.Timeout, tokenSource))
	default:
		return nil
	}
}

// serviceAccountTokens builds an OAuth token source from inline service account JSON.
func serviceAccountTokens(ctx context.Context, raw string, logger zerolog.Logger) oauth2.TokenSource {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	creds, err := google.CredentialsFromJSON(ctx, []byte(raw), "https://www.googleapis.com/auth/generative-language")
	if err != nil {
		logger.Warn().Err(err).Msg("invalid service account JSON, falling back to API key")
		return nil
	}
	return creds.TokenSource
}
