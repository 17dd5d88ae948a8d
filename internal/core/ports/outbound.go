package ports

import (
	"context"
	"time"

	"github.com/vkorchagin/agent-selector/internal/core/domain"
)

// Embedder turns query text into a dense vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SearchFilters narrows branch queries to specific domains or capabilities.
// Empty slices mean "no restriction".
type SearchFilters struct {
	Domains      []string
	Capabilities []string
}

// FullTextSearcher is the lexical retrieval branch. Implementations must
// enforce tenant scoping themselves; returning another tenant's agents is
// a correctness bug, not a performance concern.
type FullTextSearcher interface {
	Search(ctx context.Context, tenantID, query string, filters SearchFilters, limit int) ([]domain.CandidateAgent, error)
}

// VectorSearcher is the similarity retrieval branch. Matches scoring below
// the similarity floor are discarded before returning.
type VectorSearcher interface {
	Search(ctx context.Context, tenantID string, embedding []float32, floor float64, filters SearchFilters, limit int) ([]domain.CandidateAgent, error)
}

// GraphSearcher is the property-graph retrieval branch, matching agents via
// domain, capability, and relationship edges.
type GraphSearcher interface {
	Search(ctx context.Context, tenantID string, filters SearchFilters, limit int) ([]domain.CandidateAgent, error)
}

// ResultCache stores fused candidate lists keyed by request identity.
// Both operations are best effort: a miss or error just means recompute.
type ResultCache interface {
	Get(ctx context.Context, key string) ([]domain.FusedCandidate, bool, error)
	Set(ctx context.Context, key string, candidates []domain.FusedCandidate, ttl time.Duration) error
}

// WeightSource yields the current fusion weight snapshot.
type WeightSource interface {
	Snapshot() domain.WeightConfig
}
