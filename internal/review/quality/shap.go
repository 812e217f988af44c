package quality

import "sort"

// maxAttributions caps the explanation at the most influential features.
const maxAttributions = 10

// Attribution is one feature's additive contribution to the score.
type Attribution struct {
	Feature        string  `json:"feature"`
	Value          float64 `json:"value"`
	Phi            float64 `json:"phi"`
	EvidenceAnchor string  `json:"evidence_anchor,omitempty"`
}

// attributionWeights mirror the predictor's coefficients so phi values sum
// toward the score delta from the 50-point base.
var attributionWeights = map[string]float64{
	"has_ablation":           10,
	"has_baselines":          10,
	"citation_coverage":      10,
	"checklist_pct_ok":       10,
	"has_requirements":       5,
	"has_lock_file":          5,
	"has_ci":                 5,
	"has_tests":              5,
	"has_repro_readme":       5,
	"has_error_bars":         5,
	"has_seeds":              5,
	"has_license":            5,
	"critical_items_missing": -5,
}

var attributionAnchors = map[string]string{
	"has_ablation":           "paper",
	"has_baselines":          "paper",
	"has_error_bars":         "paper",
	"has_seeds":              "paper",
	"has_requirements":       "repo",
	"has_lock_file":          "repo",
	"has_ci":                 "repo",
	"has_tests":              "repo",
	"has_repro_readme":       "repo",
	"has_license":            "repo",
	"citation_coverage":      "citations",
	"checklist_pct_ok":       "checklist",
	"critical_items_missing": "checklist",
}

// Explain computes per-feature attributions for the given feature map and
// returns the top contributors ordered by absolute impact.
func Explain(featureMap map[string]float64) []Attribution {
	var out []Attribution
	for feature, weight := range attributionWeights {
		value, ok := featureMap[feature]
		if !ok || value == 0 {
			continue
		}
		out = append(out, Attribution{
			Feature:        feature,
			Value:          value,
			Phi:            weight * value,
			EvidenceAnchor: attributionAnchors[feature],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs(out[i].Phi), abs(out[j].Phi)
		if ai != aj {
			return ai > aj
		}
		return out[i].Feature < out[j].Feature
	})

	if len(out) > maxAttributions {
		out = out[:maxAttributions]
	}
	if out == nil {
		out = []Attribution{}
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
