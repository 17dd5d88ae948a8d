package usecase

import (
	"github.com/vkorchagin/agent-selector/internal/core/domain"
)

// Confidence mixes search quality and consensus with fixed constants,
// deliberately independent of the fusion weights so it stays a check on
// the fusion result rather than a restatement of it.
const (
	confidenceQualityWeight   = 0.6
	confidenceConsensusWeight = 0.4
)

// computeConfidence attaches the multi-factor confidence signal to one
// fused candidate. Stub candidates never reach this function; they carry
// an all-zero confidence by construction.
func computeConfidence(c domain.FusedCandidate, weights domain.WeightConfig) domain.Confidence {
	weighted := weights.WeightedMethods()
	if len(weighted) == 0 {
		return domain.Confidence{}
	}

	var quality float64
	for _, score := range c.Scores {
		if score > quality {
			quality = score
		}
	}

	found := 0
	for _, method := range weighted {
		if _, ok := c.Scores[method]; ok {
			found++
		}
	}
	consensus := float64(found) / float64(len(weighted))

	return domain.Confidence{
		SearchQuality: quality,
		Consensus:     consensus,
		Overall:       confidenceQualityWeight*quality + confidenceConsensusWeight*consensus,
	}
}
