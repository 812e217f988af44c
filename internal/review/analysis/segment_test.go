package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePaper = `A Study of Things

Abstract
This paper studies things in depth.

1. Introduction
We propose a new method for studying things.
Our results show it works.

4. Results
Our method achieves state-of-the-art accuracy on the benchmark.

6. Conclusion
We demonstrate that the method generalizes well.
`

func TestSegmentPaperFindsSections(t *testing.T) {
	sections := SegmentPaper(samplePaper)
	require.Len(t, sections, 4)

	names := make([]string, len(sections))
	for i, s := range sections {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"abstract", "introduction", "results", "conclusion"}, names)
}

func TestSegmentPaperOffsets(t *testing.T) {
	sections := SegmentPaper(samplePaper)
	require.NotEmpty(t, sections)
	for _, s := range sections {
		require.LessOrEqual(t, s.End, len(samplePaper)+1)
		assert.Equal(t, s.Text, samplePaper[s.Start:s.End], "section %s offsets", s.Name)
	}
}

func TestSegmentPaperNoHeadings(t *testing.T) {
	assert.Empty(t, SegmentPaper("Just a plain paragraph with no headings at all."))
}

func TestSegmentPaperNumberedAndUnnumberedHeadings(t *testing.T) {
	text := "Introduction\nfirst\n\n5. Discussion\nsecond\n"
	sections := SegmentPaper(text)
	require.Len(t, sections, 2)
	assert.Equal(t, "introduction", sections[0].Name)
	assert.Equal(t, "discussion", sections[1].Name)
}

func TestSectionText(t *testing.T) {
	got := SectionText(samplePaper, "results")
	assert.Contains(t, got, "state-of-the-art accuracy")
	assert.Empty(t, SectionText(samplePaper, "appendix"))
}
