package analysis

import (
	"fmt"
	"regexp"
	"strings"
)

// Claim is one extracted assertion. Spans are [start, end) character offsets
// into the text the claim was extracted from.
type Claim struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Section    string   `json:"section,omitempty"`
	Spans      [][2]int `json:"spans"`
	Confidence float64  `json:"confidence"`
}

// minClaimLength rejects fragments that cannot carry an assertion.
const minClaimLength = 20

// Claim-marker patterns with confidence weights. A sentence takes the highest
// weight among its matches.
var claimPatterns = []struct {
	re         *regexp.Regexp
	confidence float64
}{
	{regexp.MustCompile(`(?i)\b(?:we|our|this|the)\s+(?:show|demonstrate|prove|establish|find|observe|propose|introduce|present|develop)\b`), 0.7},
	{regexp.MustCompile(`(?i)\b(?:our|this|the)\s+(?:method|approach|model|system|framework|algorithm)\s+(?:achieves|obtains|yields|produces|improves)\b`), 0.8},
	{regexp.MustCompile(`(?i)\b(?:state-of-the-art|SOTA|best|superior|outperforms|beats)\b`), 0.6},
	{regexp.MustCompile(`(?i)\b(?:significantly|substantially|considerably)\s+(?:improves?|outperforms?|better)\b`), 0.7},
	{regexp.MustCompile(`(?i)\b(?:we|our)\s+(?:results?|experiments?|evaluation)\s+(?:show|demonstrate|indicate|suggest)\b`), 0.7},
	{regexp.MustCompile(`(?i)\b(?:we|our)\s+(?:contribution|novelty)\b`), 0.6},
}

// claimSections are the sections mined for claims.
var claimSections = map[string]bool{
	"introduction": true,
	"results":      true,
	"discussion":   true,
	"conclusion":   true,
}

// ExtractClaims extracts claims from a full paper. When the text segments
// into sections only introduction/results/discussion/conclusion are mined;
// unsegmentable text is mined whole. Duplicates (same first 100 lowercase
// characters) are dropped.
func ExtractClaims(text string) []Claim {
	sections := SegmentPaper(text)
	var all []Claim
	if len(sections) == 0 {
		all = extractFromText(text, "")
	} else {
		for _, s := range sections {
			if claimSections[s.Name] {
				all = append(all, extractFromText(s.Text, s.Name)...)
			}
		}
	}

	seen := map[string]bool{}
	unique := make([]Claim, 0, len(all))
	for _, c := range all {
		key := strings.ToLower(strings.TrimSpace(c.Text))
		if len(key) > 100 {
			key = key[:100]
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		c.ID = fmt.Sprintf("c%d", len(unique))
		unique = append(unique, c)
	}
	return unique
}

func extractFromText(text, section string) []Claim {
	var claims []Claim
	for _, sentence := range SplitSentences(text) {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < minClaimLength {
			continue
		}

		best := 0.0
		for _, p := range claimPatterns {
			if p.confidence > best && p.re.MatchString(sentence) {
				best = p.confidence
			}
		}
		if best == 0 {
			continue
		}

		var spans [][2]int
		if start := strings.Index(text, sentence); start >= 0 {
			spans = [][2]int{{start, start + len(sentence)}}
		}
		claims = append(claims, Claim{
			Text:       sentence,
			Section:    section,
			Spans:      spans,
			Confidence: best,
		})
	}
	return claims
}

var sentenceEnd = regexp.MustCompile(`([.!?])\s+`)

// SplitSentences splits on terminal punctuation followed by whitespace,
// keeping the punctuation attached to its sentence.
func SplitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
