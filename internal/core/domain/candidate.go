package domain

// SourceMethod identifies the retrieval branch that produced a candidate.
type SourceMethod string

const (
	MethodFullText SourceMethod = "fulltext"
	MethodVector   SourceMethod = "vector"
	MethodGraph    SourceMethod = "graph"
)

// Methods lists every retrieval branch in a fixed order.
func Methods() []SourceMethod {
	return []SourceMethod{MethodFullText, MethodVector, MethodGraph}
}

// MatchReason carries the branch-specific evidence for a candidate match.
type MatchReason struct {
	MatchedTerms        []string `json:"matched_terms,omitempty"`
	MatchedDomains      []string `json:"matched_domains,omitempty"`
	MatchedCapabilities []string `json:"matched_capabilities,omitempty"`
	RelationBonus       float64  `json:"relation_bonus,omitempty"`
}

// CandidateAgent is one agent as returned by a single retrieval branch.
// Raw scores are method-specific and not comparable across branches
// before normalization.
type CandidateAgent struct {
	AgentID   string       `json:"agent_id"`
	AgentName string       `json:"agent_name"`
	TenantID  string       `json:"tenant_id"`
	Method    SourceMethod `json:"source_method"`
	RawScore  float64      `json:"raw_score"`
	Reason    MatchReason  `json:"matched_reason"`
}

// Confidence is the multi-factor trust signal attached after fusion.
type Confidence struct {
	SearchQuality float64 `json:"search_quality"`
	Consensus     float64 `json:"consensus"`
	Overall       float64 `json:"overall"`
}

// FusedCandidate is the merged cross-branch view of one agent.
// Scores holds the normalized per-method score for every branch that
// returned the agent; absent keys mean "not found by that branch".
type FusedCandidate struct {
	AgentID    string                   `json:"agent_id"`
	AgentName  string                   `json:"agent_name"`
	Scores     map[SourceMethod]float64 `json:"scores"`
	FusedScore float64                  `json:"fused_score"`
	Confidence Confidence               `json:"confidence"`
	Rank       int                      `json:"rank"`
	Reason     MatchReason              `json:"matched_reason"`
	StubReason StubReason               `json:"stub_reason,omitempty"`
}

// IsStub reports whether the candidate is the fallback placeholder.
func (c FusedCandidate) IsStub() bool {
	return c.StubReason != ""
}

// MethodCount returns how many branches found this candidate.
func (c FusedCandidate) MethodCount() int {
	return len(c.Scores)
}
