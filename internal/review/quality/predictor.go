package quality

import "math"

// PredictorVersion identifies the score formula for stored results.
const (
	PredictorVersion = "v0.1.0"
	PredictorModel   = "baseline"
)

// ScoreResult is the predictor output.
type ScoreResult struct {
	Score     float64 `json:"score"`
	Tier      string  `json:"tier"`
	Version   string  `json:"version"`
	ModelType string  `json:"model_type"`
}

// Predict computes the baseline reproducibility score on a 0-100 scale.
// It is a fixed linear combination so every point is attributable.
func Predict(f Features) ScoreResult {
	score := 50.0

	if f.HasAblation {
		score += 10
	}
	if f.HasBaselines {
		score += 10
	}
	if f.HasErrorBars {
		score += 5
	}
	if f.HasSeeds {
		score += 5
	}
	if f.HasRequirements {
		score += 5
	}
	if f.HasLockFile {
		score += 5
	}
	if f.HasCI {
		score += 5
	}
	if f.HasTests {
		score += 5
	}
	if f.HasReproREADME {
		score += 5
	}
	if f.HasLicense {
		score += 5
	}

	score += 10 * f.CitationCoverage
	score += 10 * f.ChecklistPctOK
	score -= 5 * float64(f.CriticalItemsMissing)

	score = math.Min(100, math.Max(0, score))
	score = math.Round(score*10) / 10

	return ScoreResult{
		Score:     score,
		Tier:      Tier(score),
		Version:   PredictorVersion,
		ModelType: PredictorModel,
	}
}

// Tier maps a score to its letter grade.
func Tier(score float64) string {
	switch {
	case score >= 85:
		return "A"
	case score >= 70:
		return "B"
	case score >= 55:
		return "C"
	default:
		return "D"
	}
}
