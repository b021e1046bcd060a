package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"lingx/api/internal/apikey"
	"lingx/api/internal/app"
	"lingx/api/internal/config"
	"lingx/api/internal/cqrs"
	"lingx/api/internal/export"
	"lingx/api/internal/llm"
	"lingx/api/internal/quality"
	"lingx/api/internal/search"
	"lingx/api/internal/session"
	"lingx/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	// Refresh tokens live in Redis when configured, Postgres otherwise.
	var sessions interface {
		SaveRefreshSession(ctx context.Context, tokenHash string, user store.User, expiresAt time.Time) error
		LookupRefreshSession(ctx context.Context, tokenHash string) (store.User, error)
		RevokeRefreshSession(ctx context.Context, tokenHash string) error
	} = dataStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		sessions = redisStore
		log.Printf("Using Redis for refresh token storage")
	} else {
		log.Printf("Using PostgreSQL for refresh token storage")
	}

	pgfts := search.NewPgFTS(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliAPIKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, pgfts)
	searchService.ReindexAllFromPG(ctx)

	var generator quality.TextGenerator
	if strings.TrimSpace(cfg.AIBaseURL) != "" {
		generator = &llmGenerator{client: llm.New(cfg.AIProvider, cfg.AIAPIKey, cfg.AIBaseURL)}
		log.Printf("AI evaluation enabled via %s", cfg.AIProvider)
	}
	engine := quality.NewEngine(dataStore, dataStore, generator)
	runner := quality.NewRunner(cfg.EvalQueueSize)
	runner.Start(engine)
	defer runner.Stop()

	var objects *minio.Client
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		objects, err = minio.New(cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
			Secure: cfg.MinioUseSSL,
		})
		if err != nil {
			log.Fatalf("minio client failed: %v", err)
		}
		log.Printf("Branch export uploads enabled (bucket %s)", cfg.MinioBucket)
	}
	exportService := export.NewService(dataStore, objects, cfg.MinioBucket)

	service := app.New(
		cfg,
		dataStore,
		sessions,
		cqrs.NewBus(dataStore),
		engine,
		runner,
		searchService,
		exportService,
		apikey.NewService(dataStore),
	)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("LingX API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

// llmGenerator adapts the chat-completions client to the quality engine's
// generator interface.
type llmGenerator struct {
	client *llm.Client
}

func (g *llmGenerator) GenerateText(ctx context.Context, model, prompt string) (quality.Generation, error) {
	out, err := g.client.GenerateText(ctx, model, prompt)
	if err != nil {
		return quality.Generation{}, err
	}
	return quality.Generation{
		Text:         out.Text,
		Provider:     out.Provider,
		Model:        out.Model,
		InputTokens:  out.InputTokens,
		OutputTokens: out.OutputTokens,
	}, nil
}
