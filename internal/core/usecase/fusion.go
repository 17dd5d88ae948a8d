package usecase

import (
	"sort"

	"github.com/vkorchagin/agent-selector/internal/core/domain"
)

// normalizeScore maps a branch raw score onto [0,1]. Normalization is a
// per-method pure function, never a min-max over the result set: a global
// rescale would make scores request-dependent and break caching.
func normalizeScore(method domain.SourceMethod, raw float64) float64 {
	switch method {
	case domain.MethodFullText:
		// ts_rank_cd is non-negative and effectively bounded for short queries.
		return clamp01(raw)
	case domain.MethodVector:
		// Cosine similarity lands in [-1,1]; negative similarity is noise.
		return clamp01(raw)
	case domain.MethodGraph:
		// Bounded by construction in the graph branch.
		return clamp01(raw)
	default:
		return 0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// fuseCandidates merges per-branch candidate lists by agent ID, normalizes
// each method's scores, and computes the weighted fused score.
//
// The denominator is the sum of ALL configured weights, not just the
// weights of branches that returned the agent. A single-method hit can
// therefore never outrank a broadly corroborated one purely through
// denominator shrinkage; cross-method agreement is rewarded on purpose.
//
// Candidates tagged with a foreign tenant are dropped here even though
// every branch already scopes its query: tenant isolation is enforced at
// both layers.
func fuseCandidates(
	tenantID string,
	weights domain.WeightConfig,
	branches map[domain.SourceMethod][]domain.CandidateAgent,
) []domain.FusedCandidate {
	acc := make(map[string]*domain.FusedCandidate)

	// Fixed method order keeps merged reason lists independent of branch
	// completion order.
	for _, method := range domain.Methods() {
		for _, c := range branches[method] {
			if c.AgentID == "" {
				continue
			}
			if c.TenantID != "" && c.TenantID != tenantID {
				continue
			}

			fc, ok := acc[c.AgentID]
			if !ok {
				fc = &domain.FusedCandidate{
					AgentID:   c.AgentID,
					AgentName: c.AgentName,
					Scores:    make(map[domain.SourceMethod]float64, 3),
				}
				acc[c.AgentID] = fc
			}
			if fc.AgentName == "" {
				fc.AgentName = c.AgentName
			}

			normalized := normalizeScore(method, c.RawScore)
			if existing, seen := fc.Scores[method]; !seen || normalized > existing {
				fc.Scores[method] = normalized
			}
			fc.Reason = mergeReasons(fc.Reason, c.Reason)
		}
	}

	total := weights.TotalWeight()
	out := make([]domain.FusedCandidate, 0, len(acc))
	for _, fc := range acc {
		if total > 0 {
			var sum float64
			for method, score := range fc.Scores {
				sum += weights.Weight(method) * score
			}
			fc.FusedScore = sum / total
		}
		out = append(out, *fc)
	}

	sortFused(out)
	return out
}

// sortFused orders candidates by fused score descending; ties break by
// number of contributing methods (more corroboration wins), then agent ID
// for determinism.
func sortFused(candidates []domain.FusedCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].FusedScore != candidates[j].FusedScore {
			return candidates[i].FusedScore > candidates[j].FusedScore
		}
		if candidates[i].MethodCount() != candidates[j].MethodCount() {
			return candidates[i].MethodCount() > candidates[j].MethodCount()
		}
		return candidates[i].AgentID < candidates[j].AgentID
	})
}

func trimCandidates(candidates []domain.FusedCandidate, limit int) []domain.FusedCandidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}

func mergeReasons(current, extra domain.MatchReason) domain.MatchReason {
	current.MatchedTerms = appendUnique(current.MatchedTerms, extra.MatchedTerms)
	current.MatchedDomains = appendUnique(current.MatchedDomains, extra.MatchedDomains)
	current.MatchedCapabilities = appendUnique(current.MatchedCapabilities, extra.MatchedCapabilities)
	if extra.RelationBonus > current.RelationBonus {
		current.RelationBonus = extra.RelationBonus
	}
	return current
}

func appendUnique(dst, src []string) []string {
	for _, s := range src {
		found := false
		for _, existing := range dst {
			if existing == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}
