package review

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arandu-labs/arandu/internal/review/analysis"
	"github.com/arandu-labs/arandu/internal/review/rag"
)

func checklistWith(statuses ...string) analysis.Checklist {
	items := make([]analysis.ChecklistItem, len(statuses))
	for i, s := range statuses {
		items[i] = analysis.ChecklistItem{Key: fmt.Sprintf("item_%d", i), Status: s}
	}
	return analysis.Checklist{Items: items}
}

func nClaims(n int) []analysis.Claim {
	claims := make([]analysis.Claim, n)
	for i := range claims {
		claims[i] = analysis.Claim{ID: fmt.Sprintf("c%d", i)}
	}
	return claims
}

func TestComputeBadgesClaimMapped(t *testing.T) {
	assert.False(t, ComputeBadges(nClaims(4), analysis.Checklist{}, nil).ClaimMapped)
	assert.True(t, ComputeBadges(nClaims(5), analysis.Checklist{}, nil).ClaimMapped)
}

func TestComputeBadgesMethodCheck(t *testing.T) {
	ok := analysis.StatusOK
	partial := analysis.StatusPartial
	missing := analysis.StatusMissing

	assert.Equal(t, "fail", ComputeBadges(nil, analysis.Checklist{}, nil).MethodCheck)
	assert.Equal(t, "ok", ComputeBadges(nil, checklistWith(ok, ok, ok), nil).MethodCheck)
	// 7 of 10 ok+partial hits the 0.7 threshold.
	assert.Equal(t, "partial", ComputeBadges(nil,
		checklistWith(ok, ok, ok, partial, partial, partial, partial, missing, missing, missing), nil).MethodCheck)
	assert.Equal(t, "fail", ComputeBadges(nil, checklistWith(ok, missing, missing), nil).MethodCheck)
}

func TestComputeBadgesCitationsAugmented(t *testing.T) {
	claims := nClaims(3)
	cited := map[string][]rag.CitationCandidate{
		"c0": {{Title: "x"}},
		"c1": {{Title: "y"}},
		"c2": {{Title: "z"}},
	}
	assert.True(t, ComputeBadges(claims, analysis.Checklist{}, cited).CitationsAugmented)

	// 2 of 3 covered is below the 0.7 threshold.
	delete(cited, "c2")
	assert.False(t, ComputeBadges(claims, analysis.Checklist{}, cited).CitationsAugmented)

	assert.False(t, ComputeBadges(nil, analysis.Checklist{}, cited).CitationsAugmented)
}

func TestRenderBadgeSVG(t *testing.T) {
	cases := []struct {
		kind  string
		b     Badges
		label string
		color string
	}{
		{BadgeClaimMapped, Badges{ClaimMapped: true}, "Claim-mapped", colorGreen},
		{BadgeClaimMapped, Badges{}, "Not mapped", colorGray},
		{BadgeMethodCheck, Badges{MethodCheck: "ok"}, "Method-check: OK", colorGreen},
		{BadgeMethodCheck, Badges{MethodCheck: "partial"}, "Method-check: Partial", colorAmber},
		{BadgeMethodCheck, Badges{MethodCheck: "fail"}, "Method-check: Fail", colorRed},
		{BadgeCitationsAugmented, Badges{CitationsAugmented: true}, "Citations-augmented", colorGreen},
		{BadgeCitationsAugmented, Badges{}, "No citations", colorGray},
	}
	for _, tc := range cases {
		svg, err := RenderBadgeSVG(tc.kind, tc.b)
		require.NoError(t, err, tc.label)
		body := string(svg)
		assert.True(t, strings.HasPrefix(body, "<svg"), tc.label)
		assert.Contains(t, body, tc.label)
		assert.Contains(t, body, tc.color)
	}
}

func TestRenderBadgeSVGUnknownKind(t *testing.T) {
	_, err := RenderBadgeSVG("nonsense", Badges{})
	assert.Error(t, err)
}
