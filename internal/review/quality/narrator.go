package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/observability"
	"github.com/arandu-labs/arandu/internal/review/analysis"
)

// TextGenerator produces free text from a prompt. *llm.Client satisfies it.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, temperature float32, maxTokens int32) (string, error)
}

// Narrative explains the score in prose.
type Narrative struct {
	ExecutiveJustification []string `json:"executive_justification"`
	TechnicalDeepdive      string   `json:"technical_deepdive"`
}

// NarrativeInput carries everything the narrator reasons over.
type NarrativeInput struct {
	Result       ScoreResult
	Attributions []Attribution
	Checklist    analysis.Checklist
	Claims       []analysis.Claim
	PaperTitle   string
}

const narrativePrompt = `You are a scientific review assistant. A paper received a reproducibility
quality score of %.1f/100 (tier %s).

Paper: %s
Claims extracted: %d

Top contributing factors (feature, value, contribution):
%s

Checklist:
%s

Respond with JSON only, no prose around it, in exactly this shape:
{"executive_justification": ["3-5 short bullet points"], "technical_deepdive": "one paragraph"}
`

// tierRecommendation is the canned advice block for papers in the lower tiers.
const tierRecommendation = "Recommended next steps: publish the dataset or a download script, pin the " +
	"environment, fix random seeds, and document the exact commands needed to reproduce the reported results."

// Narrate produces the narrative for a score. A nil generator, or any
// generation or parse failure, falls back to a deterministic template built
// from the attributions and checklist.
func Narrate(ctx context.Context, gen TextGenerator, in NarrativeInput) Narrative {
	if gen == nil {
		return heuristicNarrative(in)
	}

	var factors strings.Builder
	for _, a := range in.Attributions {
		fmt.Fprintf(&factors, "- %s = %.2f (phi %+.1f)\n", a.Feature, a.Value, a.Phi)
	}

	title := in.PaperTitle
	if title == "" {
		title = "Unknown"
	}
	prompt := fmt.Sprintf(narrativePrompt, in.Result.Score, in.Result.Tier,
		title, len(in.Claims), factors.String(), checklistStatusLine(in.Checklist))
	raw, err := gen.GenerateText(ctx, prompt, 0.3, 1500)
	if err != nil {
		observability.WarnContext(ctx, "narrative generation failed, using heuristic fallback",
			logfields.Error(err))
		return heuristicNarrative(in)
	}

	narrative, err := parseNarrative(raw)
	if err != nil {
		observability.WarnContext(ctx, "narrative response unparseable, using heuristic fallback",
			logfields.Error(err))
		return heuristicNarrative(in)
	}
	return narrative
}

// parseNarrative decodes the model response, tolerating markdown code fences.
func parseNarrative(raw string) (Narrative, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var n Narrative
	if err := json.Unmarshal([]byte(text), &n); err != nil {
		return Narrative{}, fmt.Errorf("decode narrative: %w", err)
	}
	if len(n.ExecutiveJustification) == 0 || n.TechnicalDeepdive == "" {
		return Narrative{}, fmt.Errorf("narrative missing required fields")
	}
	return n, nil
}

func heuristicNarrative(in NarrativeInput) Narrative {
	result, attributions := in.Result, in.Attributions
	bullets := []string{
		fmt.Sprintf("The paper scored %.1f/100, placing it in tier %s.", result.Score, result.Tier),
	}

	var bestPositive, worstNegative *Attribution
	for i := range attributions {
		a := &attributions[i]
		if a.Phi > 0 && (bestPositive == nil || a.Phi > bestPositive.Phi) {
			bestPositive = a
		}
		if a.Phi < 0 && (worstNegative == nil || a.Phi < worstNegative.Phi) {
			worstNegative = a
		}
	}
	if bestPositive != nil {
		bullets = append(bullets, fmt.Sprintf("Strongest positive factor: %s (+%.1f points).",
			humanizeFeature(bestPositive.Feature), bestPositive.Phi))
	}
	if worstNegative != nil {
		bullets = append(bullets, fmt.Sprintf("Main improvement area: %s (%.1f points).",
			humanizeFeature(worstNegative.Feature), worstNegative.Phi))
	}
	if missing := missingCriticalItems(in.Checklist); len(missing) > 0 {
		bullets = append(bullets, fmt.Sprintf("Missing critical reproducibility items: %s.",
			strings.Join(missing, ", ")))
	}
	if result.Tier == "C" || result.Tier == "D" {
		bullets = append(bullets, tierRecommendation)
	} else {
		bullets = append(bullets, "Review the checklist and claims to identify specific actionable improvements.")
	}

	var parts []string
	for i, a := range attributions {
		if i >= 5 {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (phi %+.1f)", humanizeFeature(a.Feature), a.Phi))
	}
	deepdive := fmt.Sprintf("The baseline model assigned %.1f/100 from a fixed linear combination of reproducibility signals.", result.Score)
	if len(parts) > 0 {
		deepdive += " The dominant contributions were: " + strings.Join(parts, ", ") + "."
	}
	if statuses := checklistStatusLine(in.Checklist); statuses != "" {
		deepdive += " Checklist statuses: " + statuses + "."
	}

	return Narrative{
		ExecutiveJustification: bullets,
		TechnicalDeepdive:      deepdive,
	}
}

// missingCriticalItems returns the humanized critical checklist keys whose
// status is missing, in checklist order.
func missingCriticalItems(checklist analysis.Checklist) []string {
	var missing []string
	for _, item := range checklist.Items {
		if criticalKeys[item.Key] && item.Status == analysis.StatusMissing {
			missing = append(missing, humanizeFeature(item.Key))
		}
	}
	return missing
}

// checklistStatusLine renders "key: status" pairs for prompts and deep-dives.
func checklistStatusLine(checklist analysis.Checklist) string {
	if len(checklist.Items) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(checklist.Items))
	for _, item := range checklist.Items {
		pairs = append(pairs, fmt.Sprintf("%s: %s", item.Key, item.Status))
	}
	return strings.Join(pairs, ", ")
}

func humanizeFeature(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
