package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vkorchagin/agent-selector/internal/core/domain"
	"github.com/vkorchagin/agent-selector/internal/core/ports"
)

// AgentSearchRepository is the lexical retrieval branch over the relational
// agent catalog. Every query carries the tenant in the WHERE clause.
type AgentSearchRepository struct {
	db *sql.DB
}

func NewAgentSearchRepository(db *sql.DB) *AgentSearchRepository {
	return &AgentSearchRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the agent catalog tables read by the full-text
// branch. The catalog itself is populated by an external sync pipeline.
func (r *AgentSearchRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent service startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS agents (
	id TEXT NOT NULL,
	tenant_id TEXT NOT NULL,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	domains TEXT[] NOT NULL DEFAULT '{}',
	capabilities TEXT[] NOT NULL DEFAULT '{}',
	search_vector TSVECTOR,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_agents_search_vector ON agents USING GIN (search_vector);
CREATE INDEX IF NOT EXISTS idx_agents_tenant ON agents (tenant_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Search returns agents whose indexed text matches the query, ranked by
// ts_rank_cd, scoped to the tenant, optionally narrowed by domain or
// capability overlap.
func (r *AgentSearchRepository) Search(
	ctx context.Context,
	tenantID, query string,
	filters ports.SearchFilters,
	limit int,
) ([]domain.CandidateAgent, error) {
	if limit <= 0 {
		limit = 20
	}
	domains := textArrayLiteral(filters.Domains)
	capabilities := textArrayLiteral(filters.Capabilities)

	rows, err := r.db.QueryContext(ctx, `
SELECT a.id, a.name, a.description, ts_rank_cd(a.search_vector, q.query) AS score
FROM agents a, plainto_tsquery('english', $2) AS q(query)
WHERE a.tenant_id = $1
  AND a.search_vector @@ q.query
  AND (cardinality($3::text[]) = 0 OR a.domains && $3::text[])
  AND (cardinality($4::text[]) = 0 OR a.capabilities && $4::text[])
ORDER BY score DESC, a.id
LIMIT $5
`, tenantID, query, domains, capabilities, limit)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "fulltext search", err)
	}
	defer rows.Close()

	queryTokens := strings.Fields(strings.ToLower(query))
	out := make([]domain.CandidateAgent, 0, limit)
	for rows.Next() {
		var (
			id, name, description string
			score                 float64
		)
		if err := rows.Scan(&id, &name, &description, &score); err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}
		out = append(out, domain.CandidateAgent{
			AgentID:   id,
			AgentName: name,
			TenantID:  tenantID,
			Method:    domain.MethodFullText,
			RawScore:  score,
			Reason: domain.MatchReason{
				MatchedTerms: matchedTerms(queryTokens, name+" "+description),
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent rows: %w", err)
	}
	return out, nil
}

var arrayElementEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// textArrayLiteral renders values as a Postgres array literal. database/sql
// has no portable encoding for []string, so the filters travel as text and
// the query casts them back with ::text[].
func textArrayLiteral(values []string) string {
	if len(values) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(arrayElementEscaper.Replace(v))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// matchedTerms reports which query tokens occur in the agent's indexed text.
func matchedTerms(queryTokens []string, text string) []string {
	lower := strings.ToLower(text)
	out := make([]string, 0, len(queryTokens))
	seen := make(map[string]struct{}, len(queryTokens))
	for _, token := range queryTokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		if strings.Contains(lower, token) {
			out = append(out, token)
		}
	}
	return out
}
