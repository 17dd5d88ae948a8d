package ports

import (
	"context"

	"github.com/vkorchagin/agent-selector/internal/core/domain"
)

// AgentSelector is the inbound contract for agent selection.
//
// SelectAgents never returns an error for "no results" or "backend
// unavailable"; those degrade to a single-element stub list. The only
// error path is an invalid request.
type AgentSelector interface {
	SelectAgents(ctx context.Context, req domain.SelectionRequest) ([]domain.FusedCandidate, error)
}
