package review

import (
	"fmt"

	"github.com/arandu-labs/arandu/internal/review/analysis"
	"github.com/arandu-labs/arandu/internal/review/rag"
)

// Badge kinds served as SVGs.
const (
	BadgeClaimMapped        = "claim-mapped"
	BadgeMethodCheck        = "method-check"
	BadgeCitationsAugmented = "citations-augmented"
)

// Badges summarises review outcomes as three binary/ternary signals.
type Badges struct {
	ClaimMapped        bool   `json:"claim_mapped"`
	MethodCheck        string `json:"method_check"` // "ok", "partial" or "fail"
	CitationsAugmented bool   `json:"citations_augmented"`
}

// methodCheckPartialRatio is the ok+partial share needed for a partial badge.
const methodCheckPartialRatio = 0.7

// citationCoverageThreshold is the claim-coverage share needed for the
// citations badge.
const citationCoverageThreshold = 0.7

// ComputeBadges derives the badge statuses from pipeline outputs.
func ComputeBadges(claims []analysis.Claim, checklist analysis.Checklist, citations map[string][]rag.CitationCandidate) Badges {
	b := Badges{
		ClaimMapped: len(claims) >= 5,
		MethodCheck: methodCheckStatus(checklist),
	}

	if len(claims) > 0 {
		covered := 0
		for _, c := range claims {
			if len(citations[c.ID]) > 0 {
				covered++
			}
		}
		b.CitationsAugmented = float64(covered)/float64(len(claims)) >= citationCoverageThreshold
	}
	return b
}

func methodCheckStatus(checklist analysis.Checklist) string {
	total := len(checklist.Items)
	if total == 0 {
		return "fail"
	}
	ok, partial := 0, 0
	for _, item := range checklist.Items {
		switch item.Status {
		case analysis.StatusOK:
			ok++
		case analysis.StatusPartial:
			partial++
		}
	}
	switch {
	case ok == total:
		return "ok"
	case float64(ok+partial) >= methodCheckPartialRatio*float64(total):
		return "partial"
	default:
		return "fail"
	}
}

// Shields-style colors.
const (
	colorGreen = "#10B981"
	colorGray  = "#9CA3AF"
	colorAmber = "#F59E0B"
	colorRed   = "#EF4444"
)

const badgeSVGTemplate = `<svg xmlns="http://www.w3.org/2000/svg" width="150" height="20" role="img" aria-label="%[1]s">
  <linearGradient id="s" x2="0" y2="100%%">
    <stop offset="0" stop-color="#bbb" stop-opacity=".1"/>
    <stop offset="1" stop-opacity=".1"/>
  </linearGradient>
  <clipPath id="r">
    <rect width="150" height="20" rx="3" fill="#fff"/>
  </clipPath>
  <g clip-path="url(#r)">
    <rect width="150" height="20" fill="%[2]s"/>
    <rect width="150" height="20" fill="url(#s)"/>
  </g>
  <g fill="#fff" text-anchor="middle" font-family="Verdana,Geneva,DejaVu Sans,sans-serif" font-size="11">
    <text x="75" y="14">%[1]s</text>
  </g>
</svg>`

// RenderBadgeSVG renders one badge kind for the given statuses. Unknown
// kinds yield an error so the handler can 404.
func RenderBadgeSVG(kind string, b Badges) ([]byte, error) {
	var label, color string
	switch kind {
	case BadgeClaimMapped:
		if b.ClaimMapped {
			label, color = "Claim-mapped", colorGreen
		} else {
			label, color = "Not mapped", colorGray
		}
	case BadgeMethodCheck:
		switch b.MethodCheck {
		case "ok":
			label, color = "Method-check: OK", colorGreen
		case "partial":
			label, color = "Method-check: Partial", colorAmber
		default:
			label, color = "Method-check: Fail", colorRed
		}
	case BadgeCitationsAugmented:
		if b.CitationsAugmented {
			label, color = "Citations-augmented", colorGreen
		} else {
			label, color = "No citations", colorGray
		}
	default:
		return nil, fmt.Errorf("unknown badge kind %q", kind)
	}
	return []byte(fmt.Sprintf(badgeSVGTemplate, label, color)), nil
}
