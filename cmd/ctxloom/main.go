package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/ctxloom/ctxloom/internal/ai"
	"github.com/ctxloom/ctxloom/internal/blobstore"
	"github.com/ctxloom/ctxloom/internal/cachestore"
	"github.com/ctxloom/ctxloom/internal/chunker"
	"github.com/ctxloom/ctxloom/internal/config"
	"github.com/ctxloom/ctxloom/internal/db"
	"github.com/ctxloom/ctxloom/internal/embedcache"
	"github.com/ctxloom/ctxloom/internal/handler"
	"github.com/ctxloom/ctxloom/internal/job"
	"github.com/ctxloom/ctxloom/internal/middleware"
	"github.com/ctxloom/ctxloom/internal/repo"
	"github.com/ctxloom/ctxloom/internal/schedule"
	"github.com/ctxloom/ctxloom/internal/service"
	"github.com/ctxloom/ctxloom/internal/summarize"
	"github.com/ctxloom/ctxloom/internal/token"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ctxloom",
		Short: "ctxloom context assembly server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run ctxloom server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, conn)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func buildEmbedder(cfg config.AIConfig, primary ai.IProvider, cacheRepo *repo.EmbeddingCacheRepo) (ai.IEmbedder, error) {
	entries := []ai.EmbedderEntry{{Name: cfg.Provider, Embedder: ai.NewEmbedder(primary, cfg.EmbedModel)}}
	for _, fb := range cfg.Fallbacks {
		provider, err := ai.NewProvider(fb.Provider, fb.Data)
		if err != nil {
			return nil, fmt.Errorf("init fallback provider %s: %w", fb.Provider, err)
		}
		model := fb.EmbedModel
		if model == "" {
			model = cfg.EmbedModel
		}
		entries = append(entries, ai.EmbedderEntry{Name: fb.Provider, Embedder: ai.NewEmbedder(provider, model)})
	}
	embedder := ai.NewGroupEmbedder(entries)
	embedder = embedcache.WrapDB(embedder, cacheRepo)
	embedder = embedcache.WrapLRU(embedder, cfg.CacheSize, time.Duration(cfg.CacheTTLHours)*time.Hour)
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return ai.WrapSafeEmbedder(embedder, cfg.EmbedDimension, timeout), nil
}

func buildGenerator(cfg config.AIConfig, primary ai.IProvider) (ai.IGenerator, error) {
	entries := []ai.GeneratorEntry{{Name: cfg.Provider, Generator: ai.NewGenerator(primary, cfg.GenerateModel)}}
	for _, fb := range cfg.Fallbacks {
		provider, err := ai.NewProvider(fb.Provider, fb.Data)
		if err != nil {
			return nil, fmt.Errorf("init fallback provider %s: %w", fb.Provider, err)
		}
		model := fb.GenerateModel
		if model == "" {
			model = cfg.GenerateModel
		}
		entries = append(entries, ai.GeneratorEntry{Name: fb.Provider, Generator: ai.NewGenerator(provider, model)})
	}
	return ai.NewGroupGenerator(entries), nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("blob_store", cfg.BlobStore.Type),
		zap.String("ai_provider", cfg.AI.Provider),
	)

	chunkRepo := repo.NewChunkRepo(conn)
	vectorRepo := repo.NewVectorRepo(conn)
	summaryRepo := repo.NewSummaryRepo(conn)
	sessionRepo := repo.NewSessionRepo(conn)
	embedCacheRepo := repo.NewEmbeddingCacheRepo(conn)

	blobs, err := blobstore.New(cfg.BlobStore)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}
	cache := cachestore.NewMemory(cfg.Assembly.CacheSize, time.Duration(cfg.Assembly.CacheTTLSeconds)*time.Second)

	aiProvider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedder, err := buildEmbedder(cfg.AI, aiProvider, embedCacheRepo)
	if err != nil {
		return err
	}
	generator, err := buildGenerator(cfg.AI, aiProvider)
	if err != nil {
		return err
	}

	tok := token.New(cfg.AI.EmbedModel)
	builder := chunker.New(cfg.Chunking)
	summarizer := summarize.New(generator, tok)

	summaryService := service.NewSummaryService(chunkRepo, summaryRepo, vectorRepo, blobs, summarizer, embedder)
	ingestService := service.NewIngestService(chunkRepo, vectorRepo, sessionRepo,
		summaryRepo, blobs, cache, embedder, tok, builder, summaryService)
	retrievalService := service.NewRetrievalService(chunkRepo, vectorRepo, cfg.Retrieval)
	assemblyService := service.NewAssemblyService(retrievalService, summaryRepo, sessionRepo,
		blobs, cache, embedder, cfg.Assembly)

	deps := handler.RouterDeps{
		Ingest:   handler.NewIngestHandler(ingestService),
		Context:  handler.NewContextHandler(assemblyService),
		Projects: handler.NewProjectHandler(ingestService),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(),
			gzip.Gzip(gzip.DefaultCompression),
			middleware.RateLimit(50*time.Millisecond),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewSummarySweepJob(chunkRepo, summaryService, cfg.Jobs.SummarySweepBatchLimit), cfg.Jobs.SummarySweepSpec); err != nil {
		return fmt.Errorf("schedule summary sweep: %w", err)
	}
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(embedCacheRepo, cfg.Jobs.EmbedCacheKeepDays), cfg.Jobs.CacheCleanupSpec); err != nil {
		return fmt.Errorf("schedule cache cleanup: %w", err)
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
