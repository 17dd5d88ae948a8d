package domain

import (
	"strings"
	"testing"
)

func TestSelectionRequestValidate(t *testing.T) {
	valid := SelectionRequest{Query: "reset password", TenantID: "t1", MaxResults: 5}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	cases := []struct {
		name string
		req  SelectionRequest
	}{
		{"empty query", SelectionRequest{Query: "   ", TenantID: "t1", MaxResults: 5}},
		{"missing tenant", SelectionRequest{Query: "q", TenantID: "", MaxResults: 5}},
		{"zero max_results", SelectionRequest{Query: "q", TenantID: "t1", MaxResults: 0}},
		{"negative max_results", SelectionRequest{Query: "q", TenantID: "t1", MaxResults: -1}},
		{"min_confidence above 1", SelectionRequest{Query: "q", TenantID: "t1", MaxResults: 5, MinConfidence: 1.1}},
		{"negative min_confidence", SelectionRequest{Query: "q", TenantID: "t1", MaxResults: 5, MinConfidence: -0.1}},
	}
	for _, tc := range cases {
		err := tc.req.Validate()
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !IsKind(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}

func TestNormalizedQuery(t *testing.T) {
	req := SelectionRequest{Query: "  Reset\tMY   Password \n"}
	if got := req.NormalizedQuery(); got != "reset my password" {
		t.Fatalf("NormalizedQuery() = %q", got)
	}
}

func TestQueryPreviewTruncates(t *testing.T) {
	req := SelectionRequest{Query: strings.Repeat("a", 200)}
	got := req.QueryPreview()
	if len(got) != 83 || !strings.HasSuffix(got, "...") {
		t.Fatalf("QueryPreview() = %q (len %d)", got, len(got))
	}
}
