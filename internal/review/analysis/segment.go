// Package analysis holds the deterministic paper-analysis workers: section
// segmentation, claim extraction and the method checklist.
package analysis

import (
	"regexp"
	"strings"
)

// Section is one identified paper section. Start and End are character
// offsets into the input text.
type Section struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Heading patterns, tolerant of numbered prefixes ("1. Introduction").
var sectionPatterns = []struct {
	re   *regexp.Regexp
	name string
}{
	{regexp.MustCompile(`(?i)^\s*(?:Abstract|Summary)\s*$`), "abstract"},
	{regexp.MustCompile(`(?i)^\s*(?:1\s*\.?\s*)?(?:Introduction|Intro)\s*$`), "introduction"},
	{regexp.MustCompile(`(?i)^\s*(?:2\s*\.?\s*)?(?:Related\s+Work|Background|Literature\s+Review)\s*$`), "related_work"},
	{regexp.MustCompile(`(?i)^\s*(?:3\s*\.?\s*)?(?:Method|Methodology|Approach|Model|Architecture)\s*$`), "method"},
	{regexp.MustCompile(`(?i)^\s*(?:4\s*\.?\s*)?(?:Experiments?|Evaluation|Results?)\s*$`), "results"},
	{regexp.MustCompile(`(?i)^\s*(?:5\s*\.?\s*)?(?:Discussion|Analysis|Interpretation)\s*$`), "discussion"},
	{regexp.MustCompile(`(?i)^\s*(?:6\s*\.?\s*)?(?:Conclusion|Conclusions?|Summary)\s*$`), "conclusion"},
	{regexp.MustCompile(`(?i)^\s*(?:7\s*\.?\s*)?(?:Limitations?|Future\s+Work)\s*$`), "limitations"},
	{regexp.MustCompile(`(?i)^\s*(?:Appendix|Appendices)\s*$`), "appendix"},
}

// SegmentPaper splits text into sections at recognised headings. Text before
// the first heading is not part of any section.
func SegmentPaper(text string) []Section {
	lines := strings.Split(text, "\n")

	var sections []Section
	currentName := ""
	currentStart := 0
	var currentLines []string

	flush := func() {
		if currentName == "" || len(currentLines) == 0 {
			return
		}
		sectionText := strings.Join(currentLines, "\n")
		sections = append(sections, Section{
			Name:  currentName,
			Start: currentStart,
			End:   currentStart + len(sectionText),
			Text:  sectionText,
		})
	}

	offset := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(currentLines) > 0 {
				currentLines = append(currentLines, line)
			}
			offset += len(line) + 1
			continue
		}

		matched := ""
		for _, p := range sectionPatterns {
			if p.re.MatchString(trimmed) {
				matched = p.name
				break
			}
		}

		if matched != "" {
			flush()
			currentName = matched
			currentStart = offset
			currentLines = []string{line}
		} else {
			currentLines = append(currentLines, line)
		}
		offset += len(line) + 1
	}
	flush()

	return sections
}

// SectionText returns the text of the named section, or "".
func SectionText(text, name string) string {
	for _, s := range SegmentPaper(text) {
		if s.Name == name {
			return s.Text
		}
	}
	return ""
}
