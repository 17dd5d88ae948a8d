package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/vkorchagin/agent-selector/internal/core/domain"
	"github.com/vkorchagin/agent-selector/internal/core/ports"
)

func newRepoWithMock(t *testing.T) (*AgentSearchRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &AgentSearchRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestSearchMapsRowsToCandidates(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "name", "description", "score"}).
		AddRow("agent-billing", "Billing Expert", "Handles billing disputes and invoices", 0.82).
		AddRow("agent-refunds", "Refund Specialist", "Processes refunds", 0.41)

	mock.ExpectQuery("SELECT a.id, a.name, a.description, ts_rank_cd").
		WithArgs("tenant-1", "billing dispute", "{}", "{}", 10).
		WillReturnRows(rows)

	got, err := repo.Search(context.Background(), "tenant-1", "billing dispute", ports.SearchFilters{}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	first := got[0]
	if first.AgentID != "agent-billing" || first.TenantID != "tenant-1" {
		t.Fatalf("unexpected first candidate: %+v", first)
	}
	if first.Method != domain.MethodFullText {
		t.Fatalf("expected fulltext method, got %s", first.Method)
	}
	if first.RawScore != 0.82 {
		t.Fatalf("expected raw score 0.82, got %f", first.RawScore)
	}
	if len(first.Reason.MatchedTerms) != 2 {
		t.Fatalf("expected both query terms matched, got %v", first.Reason.MatchedTerms)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchBindsFiltersAsArrayLiterals(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"id", "name", "description", "score"}).
		AddRow("agent-billing", "Billing Expert", "Handles billing disputes", 0.82)

	mock.ExpectQuery("SELECT a.id, a.name, a.description, ts_rank_cd").
		WithArgs("tenant-1", "billing", `{"finance","billing"}`, `{"refunds"}`, 5).
		WillReturnRows(rows)

	filters := ports.SearchFilters{
		Domains:      []string{"finance", "billing"},
		Capabilities: []string{"refunds"},
	}
	got, err := repo.Search(context.Background(), "tenant-1", "billing", filters, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTextArrayLiteral(t *testing.T) {
	cases := []struct {
		in   []string
		want string
	}{
		{nil, "{}"},
		{[]string{}, "{}"},
		{[]string{"finance"}, `{"finance"}`},
		{[]string{"a", "b"}, `{"a","b"}`},
		{[]string{`say "hi"`, `back\slash`}, `{"say \"hi\"","back\\slash"}`},
	}
	for _, tc := range cases {
		if got := textArrayLiteral(tc.in); got != tc.want {
			t.Fatalf("textArrayLiteral(%v) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestSearchWrapsBackendErrors(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT a.id, a.name, a.description, ts_rank_cd").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.Search(context.Background(), "tenant-1", "billing", ports.SearchFilters{}, 5)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMatchedTermsDeduplicatesAndFilters(t *testing.T) {
	terms := matchedTerms([]string{"billing", "billing", "fraud"}, "Billing Expert handles invoices")
	if len(terms) != 1 || terms[0] != "billing" {
		t.Fatalf("expected [billing], got %v", terms)
	}
}
