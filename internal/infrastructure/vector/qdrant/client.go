package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vkorchagin/agent-selector/internal/core/domain"
	"github.com/vkorchagin/agent-selector/internal/core/ports"
)

// Client is the vector retrieval branch over a Qdrant collection of agent
// profile embeddings. The collection is populated by an external sync
// pipeline; this client only searches it.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Search runs a cosine-similarity query scoped to the tenant. The floor is
// passed as Qdrant's score_threshold so sub-floor noise never reaches
// fusion; domain/capability filters become "match any" payload conditions.
func (c *Client) Search(
	ctx context.Context,
	tenantID string,
	embedding []float32,
	floor float64,
	filters ports.SearchFilters,
	limit int,
) ([]domain.CandidateAgent, error) {
	if limit <= 0 {
		limit = 20
	}

	must := []map[string]any{
		{
			"key":   "tenant_id",
			"match": map[string]any{"value": tenantID},
		},
	}
	if len(filters.Domains) > 0 {
		must = append(must, map[string]any{
			"key":   "domains",
			"match": map[string]any{"any": filters.Domains},
		})
	}
	if len(filters.Capabilities) > 0 {
		must = append(must, map[string]any{
			"key":   "capabilities",
			"match": map[string]any{"any": filters.Capabilities},
		})
	}

	reqBody := map[string]any{
		"vector":       embedding,
		"limit":        limit,
		"with_payload": true,
		"filter":       map[string]any{"must": must},
	}
	if floor > 0 {
		reqBody["score_threshold"] = floor
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrBackendUnavailable, "qdrant search request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, formatQdrantHTTPError(resp)
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.CandidateAgent, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		agentID := getStringPayload(r.Payload, "agent_id")
		if agentID == "" {
			continue
		}
		out = append(out, domain.CandidateAgent{
			AgentID:   agentID,
			AgentName: getStringPayload(r.Payload, "agent_name"),
			TenantID:  getStringPayload(r.Payload, "tenant_id"),
			Method:    domain.MethodVector,
			RawScore:  r.Score,
		})
	}
	return out, nil
}

func formatQdrantHTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return domain.WrapErrorText(domain.ErrBackendUnavailable, "qdrant search", resp.Status)
	}
	return domain.WrapErrorText(domain.ErrBackendUnavailable, "qdrant search", resp.Status+": "+msg)
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
