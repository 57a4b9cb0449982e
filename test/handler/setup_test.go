package handler_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/ctxloom/ctxloom/internal/ai"
	"github.com/ctxloom/ctxloom/internal/blobstore"
	"github.com/ctxloom/ctxloom/internal/cachestore"
	"github.com/ctxloom/ctxloom/internal/chunker"
	"github.com/ctxloom/ctxloom/internal/config"
	"github.com/ctxloom/ctxloom/internal/handler"
	"github.com/ctxloom/ctxloom/internal/middleware"
	"github.com/ctxloom/ctxloom/internal/repo"
	"github.com/ctxloom/ctxloom/internal/service"
	"github.com/ctxloom/ctxloom/internal/summarize"
	"github.com/ctxloom/ctxloom/internal/token"
	"github.com/ctxloom/ctxloom/test/testutil"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, cleanup := testutil.OpenTestDB(t)
	t.Cleanup(cleanup)

	chunkRepo := repo.NewChunkRepo(conn)
	vectorRepo := repo.NewVectorRepo(conn)
	summaryRepo := repo.NewSummaryRepo(conn)
	sessionRepo := repo.NewSessionRepo(conn)

	blobs, err := blobstore.New(config.BlobStoreConfig{Type: "local", Dir: t.TempDir()})
	require.NoError(t, err)
	cache := cachestore.NewMemory(128, time.Minute)
	embedder := ai.WrapSafeEmbedder(nil, 768, time.Second)
	tok := token.NewSimple()
	builder := chunker.New(config.ChunkingConfig{
		MaxTokens:      50,
		OverlapTokens:  10,
		MinChunkTokens: 5,
		MaxRawBytes:    1 << 20,
	})
	summarizer := summarize.New(nil, tok)

	summarySvc := service.NewSummaryService(chunkRepo, summaryRepo, vectorRepo, blobs, summarizer, embedder)
	ingestSvc := service.NewIngestService(chunkRepo, vectorRepo, sessionRepo, summaryRepo, blobs, cache, embedder, tok, builder, summarySvc)
	retrievalSvc := service.NewRetrievalService(chunkRepo, vectorRepo, config.RetrievalConfig{
		TopK:             100,
		MinScore:         0.3,
		HotWindowSize:    10,
		ConversationSize: 20,
	})
	assemblySvc := service.NewAssemblyService(retrievalSvc, summaryRepo, sessionRepo, blobs, cache, embedder, config.AssemblyConfig{
		CacheTTLSeconds:  300,
		CacheSize:        128,
		BackfillFreeFrac: 0.2,
		MaxFileSummaries: 5,
	})

	deps := handler.RouterDeps{
		Ingest:   handler.NewIngestHandler(ingestSvc),
		Context:  handler.NewContextHandler(assemblySvc),
		Projects: handler.NewProjectHandler(ingestSvc),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(),
		),
	)
	require.NoError(t, err)
	return engine
}
