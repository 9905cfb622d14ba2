package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-quiz/internal/ai"
	"github.com/p-n-ai/pai-quiz/internal/attempt"
	"github.com/p-n-ai/pai-quiz/internal/document"
	"github.com/p-n-ai/pai-quiz/internal/generator"
	"github.com/p-n-ai/pai-quiz/internal/grading"
	"github.com/p-n-ai/pai-quiz/internal/httpapi"
	"github.com/p-n-ai/pai-quiz/internal/lifecycle"
	"github.com/p-n-ai/pai-quiz/internal/platform/cache"
	"github.com/p-n-ai/pai-quiz/internal/platform/config"
	"github.com/p-n-ai/pai-quiz/internal/platform/database"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger, err := newLogger(os.Stdout, cfg.Log)
	if err != nil {
		slog.Error("invalid log config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if cfg.SeedPath != "" {
		if _, err := seedQuizzes(ctx, a.service, cfg.SeedPath); err != nil {
			slog.Warn("seeding quizzes failed", "path", cfg.SeedPath, "error", err)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger from the log config.
func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

// app holds the wired service and the resources to release on exit.
type app struct {
	handler http.Handler
	service *lifecycle.Service
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newApp connects backing services and wires the quiz API.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}
	ready := map[string]httpapi.Check{}

	var rdb *redis.Client
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting cache: %w", err)
		}
		a.closers = append(a.closers, func() { _ = c.Close() })
		ready["cache"] = c.HealthCheck
		rdb = c.Client
	}

	router := newRouter(cfg, rdb)
	ready["ai"] = router.HealthCheck

	store, err := newStore(cfg, rdb)
	if err != nil {
		a.Close()
		return nil, err
	}

	attempts, err := newAttemptLog(ctx, cfg, a, ready)
	if err != nil {
		a.Close()
		return nil, err
	}

	scorer := grading.NewScorer(router,
		grading.WithThreshold(cfg.Grading.Threshold),
		grading.WithEmbedTimeout(cfg.Grading.EmbedTimeout),
	)
	engine := grading.NewEngine(grading.EngineConfig{
		Scorer:      scorer,
		Concurrency: cfg.Grading.Concurrency,
	})

	splitter, err := document.NewSplitter(cfg.Document.ChunkSize, cfg.Document.ChunkOverlap)
	if err != nil {
		a.Close()
		return nil, err
	}
	index := document.NewIndex(splitter)

	svcCfg := lifecycle.Config{
		Store:    store,
		Engine:   engine,
		Attempts: attempts,
	}
	if router.HasProvider() {
		svcCfg.Generator = generator.New(generator.Config{
			AI:      router,
			Context: index,
			Scorer:  scorer.AtThreshold(cfg.Grading.DuplicateThreshold),
			Budget:  ai.NewInMemoryBudget(cfg.AI.TokenBudget),
		})
	} else {
		slog.Warn("no completion provider configured, quiz generation disabled")
	}

	a.service = lifecycle.New(svcCfg)
	a.handler = httpapi.NewHandler(httpapi.Config{
		Service:        a.service,
		Documents:      index,
		Ready:          ready,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	return a, nil
}

// newRouter registers every configured provider in fallback order. Each
// embedder gets its own cache namespace so vectors from different models
// never mix.
func newRouter(cfg *config.Config, rdb *redis.Client) *ai.Router {
	router := ai.NewRouter()
	embed := func(name string, e ai.Embedder) {
		if cfg.AI.EmbedCache {
			e = ai.NewCachedEmbedder(e, cache.Key(name, cfg.AI.EmbedModel), rdb)
		}
		router.RegisterEmbedder(name, e)
	}

	if key := cfg.AI.OpenAI.APIKey; key != "" {
		p := ai.NewOpenAIProvider(key,
			ai.WithChatModel(cfg.AI.ChatModel),
			ai.WithEmbedModel(cfg.AI.EmbedModel),
		)
		router.Register("openai", p)
		embed("openai", p)
		slog.Info("AI provider registered", "provider", "openai")
	}
	if key := cfg.AI.Google.APIKey; key != "" {
		p := ai.NewGoogleProvider(key, ai.WithGoogleModels(cfg.AI.ChatModel, cfg.AI.EmbedModel))
		router.Register("google", p)
		embed("google", p)
		slog.Info("AI provider registered", "provider", "google")
	}
	if key := cfg.AI.DeepSeek.APIKey; key != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(key, ai.WithChatModel(cfg.AI.ChatModel)))
		slog.Info("AI provider registered", "provider", "deepseek")
	}
	if cfg.AI.Ollama.Enabled {
		p := ai.NewOllamaProvider(cfg.AI.Ollama.URL, ai.WithOllamaModels(cfg.AI.ChatModel, cfg.AI.EmbedModel))
		router.Register("ollama", p)
		embed("ollama", p)
		slog.Info("AI provider registered", "provider", "ollama", "url", cfg.AI.Ollama.URL)
	}
	return router
}

func newStore(cfg *config.Config, rdb *redis.Client) (quiz.Store, error) {
	if cfg.Store.Backend != "redis" {
		return quiz.NewMemoryStore(), nil
	}
	store, err := quiz.NewRedisStore(rdb, cfg.Store.TTL)
	if err != nil {
		return nil, fmt.Errorf("quiz store: %w", err)
	}
	return store, nil
}

// newAttemptLog uses Postgres when a database URL is set and memory otherwise.
func newAttemptLog(ctx context.Context, cfg *config.Config, a *app, ready map[string]httpapi.Check) (attempt.Log, error) {
	if cfg.Database.URL == "" {
		return attempt.NewMemoryLog(), nil
	}

	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		return nil, fmt.Errorf("connecting database: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	ready["database"] = db.HealthCheck

	if err := db.Migrate(ctx, attempt.Schema...); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return attempt.NewPostgresLog(db.Pool)
}

// seedQuizzes stores every quiz file under dir and returns the new ids.
func seedQuizzes(ctx context.Context, svc *lifecycle.Service, dir string) ([]string, error) {
	seeds, err := quiz.LoadDir(dir)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		id, err := svc.CreateQuiz(ctx, seed.Quiz)
		if err != nil {
			slog.Warn("skipping seed quiz", "path", seed.Path, "error", err)
			continue
		}
		slog.Info("seeded quiz", "path", seed.Path, "quiz_id", id, "questions", len(seed.Quiz.Questions))
		ids = append(ids, id)
	}
	return ids, nil
}
