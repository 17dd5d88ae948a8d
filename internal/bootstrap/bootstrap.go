package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vkorchagin/agent-selector/internal/config"
	"github.com/vkorchagin/agent-selector/internal/core/domain"
	"github.com/vkorchagin/agent-selector/internal/core/ports"
	"github.com/vkorchagin/agent-selector/internal/core/usecase"
	"github.com/vkorchagin/agent-selector/internal/infrastructure/cache/natskv"
	"github.com/vkorchagin/agent-selector/internal/infrastructure/embedding"
	"github.com/vkorchagin/agent-selector/internal/infrastructure/embedding/ollama"
	neo4jsearch "github.com/vkorchagin/agent-selector/internal/infrastructure/graph/neo4j"
	"github.com/vkorchagin/agent-selector/internal/infrastructure/repository/postgres"
	"github.com/vkorchagin/agent-selector/internal/infrastructure/vector/qdrant"
	"github.com/vkorchagin/agent-selector/internal/observability/metrics"
	"github.com/vkorchagin/agent-selector/internal/weights"
)

type App struct {
	Config   config.Config
	Selector ports.AgentSelector
	Metrics  *metrics.SelectionMetrics
	Weights  *weights.Provider

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	fulltext := postgres.NewAgentSearchRepository(db)
	if err := fulltext.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	vector := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	graph, err := neo4jsearch.NewSearcher(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, neo4jsearch.ScoreConfig{
		DomainWeight:      cfg.GraphDomainWeight,
		CapabilityWeight:  cfg.GraphCapabilityWeight,
		RelationIncrement: cfg.GraphRelationIncrement,
		RelationBonusCap:  cfg.GraphRelationBonusCap,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init graph searcher: %w", err)
	}

	embedder := embedding.NewCachedEmbedder(
		ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel),
		cfg.EmbedCacheSize,
	)

	var resultCache ports.ResultCache
	var cacheClose func()
	if cfg.CacheEnabled {
		kvCache, err := natskv.New(cfg.NATSURL, cfg.CacheBucket, time.Duration(cfg.CacheTTLSeconds)*time.Second, natskv.Options{})
		if err != nil {
			// The cache is optional: selection works without it, just slower.
			slog.Warn("result_cache_unavailable", "error", err)
		} else {
			resultCache = kvCache
			cacheClose = kvCache.Close
		}
	}

	weightProvider := weights.NewProvider(cfg.WeightsPath, domain.WeightConfig{
		Version:  "env",
		FullText: cfg.WeightFullText,
		Vector:   cfg.WeightVector,
		Graph:    cfg.WeightGraph,
	})
	if cfg.WeightsPath != "" {
		if err := weightProvider.Load(); err != nil {
			slog.Warn("weights_initial_load_failed", "path", cfg.WeightsPath, "error", err)
		}
	}

	selectionMetrics := metrics.NewSelectionMetrics("agent-selector")

	selector := usecase.NewSelectAgentsUseCase(
		embedder,
		fulltext,
		vector,
		graph,
		resultCache,
		weightProvider,
		selectionMetrics,
		usecase.Options{
			BranchTimeout:   time.Duration(cfg.BranchTimeoutMS) * time.Millisecond,
			EmbedTimeout:    time.Duration(cfg.EmbedTimeoutMS) * time.Millisecond,
			SimilarityFloor: cfg.SimilarityFloor,
			CacheTTL:        time.Duration(cfg.CacheTTLSeconds) * time.Second,
			MinFetchLimit:   cfg.MinFetchLimit,
		},
	)

	return &App{
		Config:   cfg,
		Selector: selector,
		Metrics:  selectionMetrics,
		Weights:  weightProvider,

		closeFn: func() {
			if cacheClose != nil {
				cacheClose()
			}
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = graph.Close(closeCtx)
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
