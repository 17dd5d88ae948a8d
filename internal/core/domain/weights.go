package domain

// WeightConfig is the tunable fusion weighting. Instances are immutable
// snapshots; the fusion engine reads exactly one snapshot per call, so a
// hot reload mid-flight can never mix two weight sets in one result.
type WeightConfig struct {
	Version  string  `json:"version" yaml:"version"`
	FullText float64 `json:"fulltext" yaml:"fulltext"`
	Vector   float64 `json:"vector" yaml:"vector"`
	Graph    float64 `json:"graph" yaml:"graph"`
}

// DefaultWeightConfig balances the three branches.
func DefaultWeightConfig() WeightConfig {
	return WeightConfig{
		Version:  "default",
		FullText: 0.3,
		Vector:   0.4,
		Graph:    0.3,
	}
}

// Weight returns the configured weight for a method.
func (w WeightConfig) Weight(method SourceMethod) float64 {
	switch method {
	case MethodFullText:
		return w.FullText
	case MethodVector:
		return w.Vector
	case MethodGraph:
		return w.Graph
	default:
		return 0
	}
}

// WeightedMethods returns the methods with a positive configured weight.
func (w WeightConfig) WeightedMethods() []SourceMethod {
	out := make([]SourceMethod, 0, 3)
	for _, m := range Methods() {
		if w.Weight(m) > 0 {
			out = append(out, m)
		}
	}
	return out
}

// TotalWeight is the fusion denominator: the sum over all configured
// weights, regardless of which branches actually returned the candidate.
func (w WeightConfig) TotalWeight() float64 {
	return w.FullText + w.Vector + w.Graph
}

// Validate rejects negative weights. An all-zero configuration is accepted
// here; the fusion engine degrades it to the stub fallback instead.
func (w WeightConfig) Validate() error {
	if w.FullText < 0 || w.Vector < 0 || w.Graph < 0 {
		return WrapErrorText(ErrInvalidInput, "validate weights", "weights must be non-negative")
	}
	return nil
}
