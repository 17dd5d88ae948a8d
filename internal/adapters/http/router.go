package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vkorchagin/agent-selector/internal/core/domain"
	"github.com/vkorchagin/agent-selector/internal/core/ports"
)

const defaultMaxResults = 5

type Router struct {
	selector       ports.AgentSelector
	metricsHandler http.Handler
	rateLimitRPS   float64
	rateLimitBurst int
}

func NewRouter(selector ports.AgentSelector, metricsHandler http.Handler, rateLimitRPS float64, rateLimitBurst int) *Router {
	return &Router{
		selector:       selector,
		metricsHandler: metricsHandler,
		rateLimitRPS:   rateLimitRPS,
		rateLimitBurst: rateLimitBurst,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/agents/select", rt.handleSelect)
	mux.HandleFunc("/healthz", rt.handleHealth)
	if rt.metricsHandler != nil {
		mux.Handle("/metrics", rt.metricsHandler)
	}

	var handler http.Handler = mux
	handler = rateLimitMiddleware(rt.rateLimitRPS, rt.rateLimitBurst)(handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

type selectRequest struct {
	Query            string   `json:"query"`
	TenantID         string   `json:"tenant_id"`
	Mode             string   `json:"mode"`
	MaxResults       int      `json:"max_results"`
	MinConfidence    float64  `json:"min_confidence"`
	DomainFilter     []string `json:"domain_filter"`
	CapabilityFilter []string `json:"capability_filter"`
}

type selectResponse struct {
	Candidates []domain.FusedCandidate `json:"candidates"`
}

func (rt *Router) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body selectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	req := domain.SelectionRequest{
		Query:            body.Query,
		TenantID:         strings.TrimSpace(body.TenantID),
		Mode:             body.Mode,
		MaxResults:       body.MaxResults,
		MinConfidence:    body.MinConfidence,
		DomainFilter:     body.DomainFilter,
		CapabilityFilter: body.CapabilityFilter,
	}
	if req.MaxResults == 0 {
		req.MaxResults = defaultMaxResults
	}

	candidates, err := rt.selector.SelectAgents(r.Context(), req)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, selectResponse{Candidates: candidates})
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
