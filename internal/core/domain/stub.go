package domain

// StubReason tags the failure mode that forced the stub fallback.
type StubReason string

const (
	StubEmptySearchResults  StubReason = "empty_search_results"
	StubLowConfidenceScores StubReason = "low_confidence_scores"
	StubEmbeddingFailed     StubReason = "embedding_generation_failed"
	StubSearchException     StubReason = "search_exception"
)

// StubAgentID is the sentinel agent identifier of the fallback candidate.
const StubAgentID = "stub-fallback-agent"

// NewStubCandidate manufactures the placeholder candidate returned instead
// of an empty or failed result. A stub is always the only element in its
// result list and carries an all-zero confidence so it can never be
// mistaken for a weak-but-real match.
func NewStubCandidate(reason StubReason) FusedCandidate {
	return FusedCandidate{
		AgentID:    StubAgentID,
		AgentName:  "Fallback Agent",
		Scores:     map[SourceMethod]float64{},
		FusedScore: 0,
		Confidence: Confidence{},
		Rank:       1,
		StubReason: reason,
	}
}
