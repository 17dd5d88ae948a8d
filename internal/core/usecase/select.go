package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vkorchagin/agent-selector/internal/core/domain"
	"github.com/vkorchagin/agent-selector/internal/core/ports"
)

// BranchOutcome is the observability-facing result of one branch call.
// Branches stay pure; the engine alone reports outcomes.
type BranchOutcome string

const (
	BranchSuccess BranchOutcome = "success"
	BranchTimeout BranchOutcome = "timeout"
	BranchError   BranchOutcome = "error"
)

// Observer receives the engine's observability events.
type Observer interface {
	ObserveSelection(mode string, duration time.Duration)
	ObserveBranch(method domain.SourceMethod, outcome BranchOutcome, candidates int, duration time.Duration)
	ObserveCache(hit bool)
	ObserveStubFallback(reason domain.StubReason, tenantID string)
}

type nopObserver struct{}

func (nopObserver) ObserveSelection(string, time.Duration)                              {}
func (nopObserver) ObserveBranch(domain.SourceMethod, BranchOutcome, int, time.Duration) {}
func (nopObserver) ObserveCache(bool)                                                   {}
func (nopObserver) ObserveStubFallback(domain.StubReason, string)                       {}

// Options tunes the engine's timeouts and retrieval behavior.
type Options struct {
	BranchTimeout   time.Duration
	EmbedTimeout    time.Duration
	SimilarityFloor float64
	CacheTTL        time.Duration
	// MinFetchLimit is the smallest per-branch candidate fetch size; fusing
	// from a wider pool than max_results keeps the merge meaningful.
	MinFetchLimit int
}

func (o Options) normalize() Options {
	if o.BranchTimeout <= 0 {
		o.BranchTimeout = 2 * time.Second
	}
	if o.EmbedTimeout <= 0 {
		o.EmbedTimeout = 5 * time.Second
	}
	if o.MinFetchLimit <= 0 {
		o.MinFetchLimit = 20
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 5 * time.Minute
	}
	return o
}

// SelectAgentsUseCase fuses the three retrieval branches into one ranked,
// tenant-scoped candidate list. It is the error boundary for the whole
// subsystem: no branch or embedder failure escapes as an error.
type SelectAgentsUseCase struct {
	embedder ports.Embedder
	fulltext ports.FullTextSearcher
	vector   ports.VectorSearcher
	graph    ports.GraphSearcher
	cache    ports.ResultCache
	weights  ports.WeightSource
	observer Observer
	opts     Options
}

func NewSelectAgentsUseCase(
	embedder ports.Embedder,
	fulltext ports.FullTextSearcher,
	vector ports.VectorSearcher,
	graph ports.GraphSearcher,
	cache ports.ResultCache,
	weights ports.WeightSource,
	observer Observer,
	opts Options,
) *SelectAgentsUseCase {
	if observer == nil {
		observer = nopObserver{}
	}
	return &SelectAgentsUseCase{
		embedder: embedder,
		fulltext: fulltext,
		vector:   vector,
		graph:    graph,
		cache:    cache,
		weights:  weights,
		observer: observer,
		opts:     opts.normalize(),
	}
}

// SelectAgents implements ports.AgentSelector.
func (uc *SelectAgentsUseCase) SelectAgents(ctx context.Context, req domain.SelectionRequest) ([]domain.FusedCandidate, error) {
	start := time.Now()
	defer func() {
		uc.observer.ObserveSelection(req.Mode, time.Since(start))
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	// One immutable snapshot per call; a hot reload mid-flight cannot mix
	// two weight sets into one result.
	weights := uc.weights.Snapshot()

	if cached, ok := uc.cacheGet(ctx, req, weights); ok {
		return uc.finalize(cached, req, weights), nil
	}

	embedding, err := uc.embedQuery(ctx, req)
	if err != nil {
		slog.Warn("query_embedding_failed",
			"tenant_id", req.TenantID,
			"mode", req.Mode,
			"error", err,
		)
		return uc.stub(domain.StubEmbeddingFailed, req), nil
	}

	branches, allFailed := uc.runBranches(ctx, req, embedding)
	if allFailed {
		return uc.stub(domain.StubSearchException, req), nil
	}

	fused := fuseCandidates(req.TenantID, weights, branches)
	if len(fused) == 0 {
		return uc.stub(domain.StubEmptySearchResults, req), nil
	}

	uc.cacheSet(ctx, req, weights, fused)

	result := uc.finalize(fused, req, weights)
	return result, nil
}

// finalize is the pure tail of the pipeline: truncate, attach confidence,
// apply the confidence floor, assign ranks, and fall back to the stub when
// nothing real survives. It runs identically on fresh and cached fusions.
func (uc *SelectAgentsUseCase) finalize(fused []domain.FusedCandidate, req domain.SelectionRequest, weights domain.WeightConfig) []domain.FusedCandidate {
	if len(fused) == 0 {
		return uc.stub(domain.StubEmptySearchResults, req)
	}
	// The list is sorted descending, so index 0 is the best fusion this
	// request produced. At/below the confidence floor nothing real remains;
	// this also covers the degenerate all-zero weight configuration.
	if fused[0].FusedScore <= req.MinConfidence {
		return uc.stub(domain.StubLowConfidenceScores, req)
	}

	head := trimCandidates(fused, req.MaxResults)

	out := make([]domain.FusedCandidate, 0, len(head))
	for _, c := range head {
		c.Confidence = computeConfidence(c, weights)
		if c.Confidence.Overall < req.MinConfidence {
			continue
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return uc.stub(domain.StubLowConfidenceScores, req)
	}

	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func (uc *SelectAgentsUseCase) embedQuery(ctx context.Context, req domain.SelectionRequest) ([]float32, error) {
	embedCtx, cancel := context.WithTimeout(ctx, uc.opts.EmbedTimeout)
	defer cancel()

	embedding, err := uc.embedder.EmbedQuery(embedCtx, req.NormalizedQuery())
	if err != nil {
		return nil, err
	}
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedder returned empty vector")
	}
	return embedding, nil
}

type branchResult struct {
	method     domain.SourceMethod
	candidates []domain.CandidateAgent
	err        error
	duration   time.Duration
}

// runBranches invokes the three retrieval branches concurrently, each under
// its own timeout. A branch timeout or error is logged and treated as zero
// results; it never fails the request. The second return value reports
// whether every branch failed.
func (uc *SelectAgentsUseCase) runBranches(ctx context.Context, req domain.SelectionRequest, embedding []float32) (map[domain.SourceMethod][]domain.CandidateAgent, bool) {
	fetchLimit := req.MaxResults * 3
	if fetchLimit < uc.opts.MinFetchLimit {
		fetchLimit = uc.opts.MinFetchLimit
	}
	filters := ports.SearchFilters{
		Domains:      req.DomainFilter,
		Capabilities: req.CapabilityFilter,
	}

	results := make([]branchResult, 3)
	group, groupCtx := errgroup.WithContext(ctx)

	run := func(idx int, method domain.SourceMethod, call func(context.Context) ([]domain.CandidateAgent, error)) {
		group.Go(func() error {
			branchCtx, cancel := context.WithTimeout(groupCtx, uc.opts.BranchTimeout)
			defer cancel()

			started := time.Now()
			candidates, err := call(branchCtx)
			results[idx] = branchResult{
				method:     method,
				candidates: candidates,
				err:        err,
				duration:   time.Since(started),
			}
			// Branch failures are data, not errors; never fail the group.
			return nil
		})
	}

	run(0, domain.MethodFullText, func(c context.Context) ([]domain.CandidateAgent, error) {
		return uc.fulltext.Search(c, req.TenantID, req.NormalizedQuery(), filters, fetchLimit)
	})
	run(1, domain.MethodVector, func(c context.Context) ([]domain.CandidateAgent, error) {
		return uc.vector.Search(c, req.TenantID, embedding, uc.opts.SimilarityFloor, filters, fetchLimit)
	})
	run(2, domain.MethodGraph, func(c context.Context) ([]domain.CandidateAgent, error) {
		return uc.graph.Search(c, req.TenantID, filters, fetchLimit)
	})

	_ = group.Wait()

	branches := make(map[domain.SourceMethod][]domain.CandidateAgent, 3)
	failed := 0
	for _, res := range results {
		outcome := BranchSuccess
		switch {
		case res.err == nil:
			branches[res.method] = res.candidates
		case errors.Is(res.err, context.DeadlineExceeded):
			outcome = BranchTimeout
			failed++
		default:
			outcome = BranchError
			failed++
		}
		uc.observer.ObserveBranch(res.method, outcome, len(res.candidates), res.duration)

		if res.err != nil {
			slog.Warn("search_branch_failed",
				"method", string(res.method),
				"tenant_id", req.TenantID,
				"outcome", string(outcome),
				"duration_ms", float64(res.duration.Microseconds())/1000.0,
				"error", res.err,
			)
		}
	}

	return branches, failed == len(results)
}

// stub manufactures the single-element fallback list. Every invocation
// emits a structured warning and increments the per-reason counter: a
// caller that never sees an error must still be able to detect, from logs
// and metrics alone, that real search is failing.
func (uc *SelectAgentsUseCase) stub(reason domain.StubReason, req domain.SelectionRequest) []domain.FusedCandidate {
	uc.observer.ObserveStubFallback(reason, req.TenantID)
	slog.Warn("stub_fallback",
		"reason", string(reason),
		"tenant_id", req.TenantID,
		"query_preview", req.QueryPreview(),
		"mode", req.Mode,
	)
	return []domain.FusedCandidate{domain.NewStubCandidate(reason)}
}

// cacheKey is a deterministic hash of the request identity. The weights
// version participates so a reload invalidates prior fusions.
func cacheKey(req domain.SelectionRequest, weights domain.WeightConfig) string {
	sum := sha256.Sum256([]byte(req.TenantID + "\x00" + req.NormalizedQuery() + "\x00" + req.Mode + "\x00" + weights.Version))
	return hex.EncodeToString(sum[:])
}

// cacheUsable excludes filtered requests: the cache key identifies only
// (tenant, query, mode, weights version), and filters change branch output.
func cacheUsable(req domain.SelectionRequest) bool {
	return len(req.DomainFilter) == 0 && len(req.CapabilityFilter) == 0
}

func (uc *SelectAgentsUseCase) cacheGet(ctx context.Context, req domain.SelectionRequest, weights domain.WeightConfig) ([]domain.FusedCandidate, bool) {
	if uc.cache == nil || !cacheUsable(req) {
		return nil, false
	}
	cached, ok, err := uc.cache.Get(ctx, cacheKey(req, weights))
	if err != nil {
		slog.Warn("result_cache_get_failed", "tenant_id", req.TenantID, "error", err)
		return nil, false
	}
	uc.observer.ObserveCache(ok)
	if !ok || len(cached) == 0 {
		return nil, false
	}
	return cached, true
}

// cacheSet writes the fused list before confidence and truncation so one
// entry serves any max_results / min_confidence combination. Writes are
// best effort and idempotent.
func (uc *SelectAgentsUseCase) cacheSet(ctx context.Context, req domain.SelectionRequest, weights domain.WeightConfig, fused []domain.FusedCandidate) {
	if uc.cache == nil || !cacheUsable(req) {
		return
	}
	if err := uc.cache.Set(ctx, cacheKey(req, weights), fused, uc.opts.CacheTTL); err != nil {
		slog.Warn("result_cache_set_failed", "tenant_id", req.TenantID, "error", err)
	}
}
