package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/vkorchagin/agent-selector/internal/core/domain"
	"github.com/vkorchagin/agent-selector/internal/core/ports"
)

// Searcher is the property-graph retrieval branch. Agents are connected to
// Domain and Capability nodes through proficiency-weighted edges and to
// each other through COLLABORATES_WITH / ESCALATES_TO edges.
type Searcher struct {
	driver   neo4j.DriverWithContext
	database string
	scoring  ScoreConfig
}

// ScoreConfig composes the graph score: a weighted blend of average domain
// and capability proficiency plus a small additive relationship bonus.
// The bonus is capped so edge count can never dominate proficiency.
type ScoreConfig struct {
	DomainWeight      float64
	CapabilityWeight  float64
	RelationIncrement float64
	RelationBonusCap  float64
}

func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		DomainWeight:      0.5,
		CapabilityWeight:  0.4,
		RelationIncrement: 0.02,
		RelationBonusCap:  0.1,
	}
}

func NewSearcher(uri, user, password, database string, scoring ScoreConfig) (*Searcher, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Searcher{
		driver:   driver,
		database: database,
		scoring:  scoring,
	}, nil
}

func (s *Searcher) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

const searchQuery = `
MATCH (a:Agent {tenant_id: $tenant_id})
WITH a,
  [ (a)-[hd:HAS_DOMAIN]->(d:Domain) WHERE size($domains) = 0 OR d.name IN $domains
      | {name: d.name, proficiency: coalesce(hd.proficiency, 0.0)} ] AS domain_matches,
  [ (a)-[hc:HAS_CAPABILITY]->(c:Capability) WHERE size($capabilities) = 0 OR c.name IN $capabilities
      | {name: c.name, proficiency: coalesce(hc.proficiency, 0.0)} ] AS capability_matches,
  size([ (a)-[:COLLABORATES_WITH]-(:Agent) | 1 ]) AS collaborations,
  size([ (a)-[:ESCALATES_TO]->(:Agent) | 1 ]) AS escalations
WHERE size(domain_matches) > 0 OR size(capability_matches) > 0
RETURN a.id AS agent_id,
       a.name AS agent_name,
       domain_matches,
       capability_matches,
       collaborations,
       escalations
ORDER BY a.id
LIMIT $limit
`

// Search returns agents connected to the requested domains/capabilities
// (or to any, when no filter is given), scored by proficiency and
// relationship richness.
func (s *Searcher) Search(
	ctx context.Context,
	tenantID string,
	filters ports.SearchFilters,
	limit int,
) ([]domain.CandidateAgent, error) {
	if limit <= 0 {
		limit = 20
	}
	domainsParam := filters.Domains
	if domainsParam == nil {
		domainsParam = []string{}
	}
	capabilitiesParam := filters.Capabilities
	if capabilitiesParam == nil {
		capabilitiesParam = []string{}
	}

	result, err := neo4j.ExecuteQuery(ctx, s.driver, searchQuery,
		map[string]any{
			"tenant_id":    tenantID,
			"domains":      domainsParam,
			"capabilities": capabilitiesParam,
			"limit":        limit,
		},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "graph search", err)
	}

	out := make([]domain.CandidateAgent, 0, len(result.Records))
	for _, record := range result.Records {
		candidate, err := s.candidateFromRecord(tenantID, record)
		if err != nil {
			return nil, err
		}
		out = append(out, candidate)
	}
	return out, nil
}

func (s *Searcher) candidateFromRecord(tenantID string, record *neo4j.Record) (domain.CandidateAgent, error) {
	agentID, err := recordString(record, "agent_id")
	if err != nil {
		return domain.CandidateAgent{}, err
	}
	agentName, err := recordString(record, "agent_name")
	if err != nil {
		return domain.CandidateAgent{}, err
	}

	domainNames, domainProficiencies := recordMatches(record, "domain_matches")
	capabilityNames, capabilityProficiencies := recordMatches(record, "capability_matches")
	collaborations := recordInt(record, "collaborations")
	escalations := recordInt(record, "escalations")

	score, bonus := composeGraphScore(s.scoring, domainProficiencies, capabilityProficiencies, collaborations, escalations)

	return domain.CandidateAgent{
		AgentID:   agentID,
		AgentName: agentName,
		TenantID:  tenantID,
		Method:    domain.MethodGraph,
		RawScore:  score,
		Reason: domain.MatchReason{
			MatchedDomains:      domainNames,
			MatchedCapabilities: capabilityNames,
			RelationBonus:       bonus,
		},
	}, nil
}

// composeGraphScore blends average proficiencies with the capped
// relationship bonus. All inputs are in [0,1], so the result is bounded by
// DomainWeight + CapabilityWeight + RelationBonusCap.
func composeGraphScore(cfg ScoreConfig, domainProficiencies, capabilityProficiencies []float64, collaborations, escalations int64) (score, bonus float64) {
	bonus = float64(collaborations+escalations) * cfg.RelationIncrement
	if bonus > cfg.RelationBonusCap {
		bonus = cfg.RelationBonusCap
	}
	score = cfg.DomainWeight*average(domainProficiencies) +
		cfg.CapabilityWeight*average(capabilityProficiencies) +
		bonus
	return score, bonus
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func recordString(record *neo4j.Record, key string) (string, error) {
	v, ok := record.Get(key)
	if !ok {
		return "", fmt.Errorf("graph record missing %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("graph record field %s is not a string", key)
	}
	return s, nil
}

func recordInt(record *neo4j.Record, key string) int64 {
	v, ok := record.Get(key)
	if !ok {
		return 0
	}
	n, _ := v.(int64)
	return n
}

// recordMatches unpacks a list of {name, proficiency} maps.
func recordMatches(record *neo4j.Record, key string) ([]string, []float64) {
	v, ok := record.Get(key)
	if !ok {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, nil
	}

	names := make([]string, 0, len(items))
	proficiencies := make([]float64, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := m["name"].(string); ok {
			names = append(names, name)
		}
		switch p := m["proficiency"].(type) {
		case float64:
			proficiencies = append(proficiencies, p)
		case int64:
			proficiencies = append(proficiencies, float64(p))
		}
	}
	return names, proficiencies
}
