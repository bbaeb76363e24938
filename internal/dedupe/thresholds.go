package dedupe

import "github.com/rotisserie/eris"

// Thresholds holds the tunable cut-offs used by the classifier. The defaults
// are hand-tuned heuristics and have not been validated against labeled data.
type Thresholds struct {
	// NameSimilarity is the Jaccard score at or above which two names conflict.
	NameSimilarity float64 `yaml:"name_similarity" mapstructure:"name_similarity"`
	// LegitMaxSimilarity is the exclusive upper bound on average pairwise
	// similarity for a cluster to count as multi-tenant.
	LegitMaxSimilarity float64 `yaml:"legit_max_similarity" mapstructure:"legit_max_similarity"`
	// HighSimilarity flags a cluster whose average similarity exceeds it.
	HighSimilarity float64 `yaml:"high_similarity" mapstructure:"high_similarity"`
	// DiversityRatio and DiversityCap give the distinct-category requirement
	// min(DiversityCap, ceil(DiversityRatio * n)).
	DiversityRatio float64 `yaml:"diversity_ratio" mapstructure:"diversity_ratio"`
	DiversityCap   int     `yaml:"diversity_cap" mapstructure:"diversity_cap"`
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NameSimilarity:     0.7,
		LegitMaxSimilarity: 0.3,
		HighSimilarity:     0.5,
		DiversityRatio:     0.6,
		DiversityCap:       3,
	}
}

// Validate checks that every ratio lies in [0,1] and the cap is positive.
func (t Thresholds) Validate() error {
	ratios := []struct {
		name string
		v    float64
	}{
		{"name_similarity", t.NameSimilarity},
		{"legit_max_similarity", t.LegitMaxSimilarity},
		{"high_similarity", t.HighSimilarity},
		{"diversity_ratio", t.DiversityRatio},
	}
	for _, r := range ratios {
		if r.v < 0 || r.v > 1 {
			return eris.Errorf("dedupe: %s must be within [0,1], got %v", r.name, r.v)
		}
	}
	if t.DiversityCap < 1 {
		return eris.Errorf("dedupe: diversity_cap must be at least 1, got %d", t.DiversityCap)
	}
	return nil
}
