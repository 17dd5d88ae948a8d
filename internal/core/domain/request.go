package domain

import (
	"strings"
)

// SelectionRequest describes one agent-selection call.
type SelectionRequest struct {
	Query            string   `json:"query"`
	TenantID         string   `json:"tenant_id"`
	Mode             string   `json:"mode"`
	MaxResults       int      `json:"max_results"`
	MinConfidence    float64  `json:"min_confidence"`
	DomainFilter     []string `json:"domain_filter,omitempty"`
	CapabilityFilter []string `json:"capability_filter,omitempty"`
}

// Validate rejects programmer-error inputs before any backend call.
func (r SelectionRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return WrapErrorText(ErrInvalidInput, "validate request", "query must not be empty")
	}
	if strings.TrimSpace(r.TenantID) == "" {
		return WrapErrorText(ErrInvalidInput, "validate request", "tenant_id is required")
	}
	if r.MaxResults <= 0 {
		return WrapErrorText(ErrInvalidInput, "validate request", "max_results must be positive")
	}
	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		return WrapErrorText(ErrInvalidInput, "validate request", "min_confidence must be in [0,1]")
	}
	return nil
}

// NormalizedQuery lowercases and collapses whitespace so that cache keys
// and lexical matching do not depend on incidental formatting.
func (r SelectionRequest) NormalizedQuery() string {
	return strings.Join(strings.Fields(strings.ToLower(r.Query)), " ")
}

// QueryPreview truncates the query for log records.
func (r SelectionRequest) QueryPreview() string {
	const maxPreview = 80
	q := r.NormalizedQuery()
	if len(q) <= maxPreview {
		return q
	}
	return q[:maxPreview] + "..."
}
