// Package quality scores a review: feature extraction over the paper, repo
// and upstream pipeline outputs, a transparent baseline predictor, additive
// per-feature attributions and a narrative explanation of the result.
package quality

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/arandu-labs/arandu/internal/review/analysis"
	"github.com/arandu-labs/arandu/internal/review/rag"
)

// Features is the full input vector for the score predictor.
type Features struct {
	// Paper signals.
	NumClaims        int                `json:"num_claims"`
	ClaimsPerSection map[string]float64 `json:"claims_per_section"`
	HasAblation      bool               `json:"has_ablation"`
	HasBaselines     bool               `json:"has_baselines"`
	HasErrorBars     bool               `json:"has_error_bars"`
	HasSeeds         bool               `json:"has_seeds"`

	// Repository signals.
	HasRequirements bool    `json:"has_requirements"`
	HasLockFile     bool    `json:"has_lock_file"`
	VersionsPinned  float64 `json:"versions_pinned"`
	HasCI           bool    `json:"has_ci"`
	HasTests        bool    `json:"has_tests"`
	HasReproREADME  bool    `json:"has_repro_readme"`
	HasLicense      bool    `json:"has_license"`

	// Citation signals.
	CitationCoverage     float64 `json:"citation_coverage"`
	CitationDiversity    float64 `json:"citation_diversity"`
	AvgCitationRelevance float64 `json:"avg_citation_relevance"`

	// Checklist signals.
	ChecklistPctOK       float64 `json:"checklist_pct_ok"`
	CriticalItemsMissing int     `json:"critical_items_missing"`

	// Reproduction signals, nil when no run was linked.
	ReproExitCode     *int     `json:"repro_exit_code"`
	ReproDuration     *float64 `json:"repro_duration"`
	ReproSeedVariance *float64 `json:"repro_seed_variance"`
}

var (
	ablationPattern = regexp.MustCompile(`(?i)ablation|ablative`)
	baselinePattern = regexp.MustCompile(`(?i)baseline|comparison|compared\s+to`)
	errorBarPattern = regexp.MustCompile(`(?i)error\s+bar|confidence\s+interval|std|standard\s+deviation`)
	seedsPattern    = regexp.MustCompile(`(?i)seed|random[_\s]?state`)
	reproPattern    = regexp.MustCompile(`(?i)reproduce|reproducibility|how\s+to\s+run`)
	pinnedPattern   = regexp.MustCompile(`==|@`)
)

// criticalKeys are the checklist items whose absence is penalised directly.
var criticalKeys = map[string]bool{
	"data_available": true,
	"seeds_fixed":    true,
	"environment":    true,
	"commands":       true,
}

// BuildFeatures assembles the feature vector. repoPath may be "" when no
// repository is linked; citations maps claim IDs to their candidates.
func BuildFeatures(paperText string, claims []analysis.Claim, citations map[string][]rag.CitationCandidate, checklist analysis.Checklist, repoPath string) Features {
	f := Features{
		NumClaims:         len(claims),
		ClaimsPerSection:  map[string]float64{},
		CitationDiversity: 0.5,
	}

	if len(claims) > 0 {
		counts := map[string]int{}
		for _, c := range claims {
			section := c.Section
			if section == "" {
				section = "unknown"
			}
			counts[section]++
		}
		for section, n := range counts {
			f.ClaimsPerSection[section] = float64(n) / float64(len(claims))
		}
	}

	f.HasAblation = ablationPattern.MatchString(paperText)
	f.HasBaselines = baselinePattern.MatchString(paperText)
	f.HasErrorBars = errorBarPattern.MatchString(paperText)
	f.HasSeeds = seedsPattern.MatchString(paperText)

	if repoPath != "" {
		buildRepoFeatures(&f, repoPath)
	}

	buildCitationFeatures(&f, claims, citations)
	buildChecklistFeatures(&f, checklist)
	return f
}

func buildRepoFeatures(f *Features, repoPath string) {
	for _, name := range []string{"requirements.txt", "environment.yml", "pyproject.toml", "Pipfile"} {
		if fileExists(filepath.Join(repoPath, name)) {
			f.HasRequirements = true
			break
		}
	}
	for _, name := range []string{"poetry.lock", "Pipfile.lock", "package-lock.json"} {
		if fileExists(filepath.Join(repoPath, name)) {
			f.HasLockFile = true
			break
		}
	}

	if data, err := os.ReadFile(filepath.Join(repoPath, "requirements.txt")); err == nil {
		lines := 0
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) != "" {
				lines++
			}
		}
		if lines > 0 {
			pinned := len(pinnedPattern.FindAllString(string(data), -1))
			f.VersionsPinned = min(float64(pinned)/float64(lines), 1.0)
		}
	}

	for _, name := range []string{
		filepath.Join(".github", "workflows"),
		".gitlab-ci.yml",
		".travis.yml",
		filepath.Join(".circleci", "config.yml"),
	} {
		if fileExists(filepath.Join(repoPath, name)) {
			f.HasCI = true
			break
		}
	}

	f.HasTests = hasTestFiles(repoPath)

	if readme, err := os.ReadFile(filepath.Join(repoPath, "README.md")); err == nil {
		f.HasReproREADME = reproPattern.Match(readme)
	}

	for _, name := range []string{"LICENSE", "LICENSE.txt", "LICENSE.md", "COPYING"} {
		if fileExists(filepath.Join(repoPath, name)) {
			f.HasLicense = true
			break
		}
	}
}

func buildCitationFeatures(f *Features, claims []analysis.Claim, citations map[string][]rag.CitationCandidate) {
	if len(claims) == 0 {
		return
	}
	covered := 0
	var relevanceSum float64
	var relevanceN int
	for _, c := range claims {
		cands := citations[c.ID]
		if len(cands) > 0 {
			covered++
		}
		for _, cand := range cands {
			score := cand.ScoreFinal
			if score == 0 {
				score = cand.ScoreRerank
			}
			relevanceSum += score
			relevanceN++
		}
	}
	f.CitationCoverage = float64(covered) / float64(len(claims))
	if relevanceN > 0 {
		f.AvgCitationRelevance = relevanceSum / float64(relevanceN)
	}
}

func buildChecklistFeatures(f *Features, checklist analysis.Checklist) {
	if len(checklist.Items) == 0 {
		return
	}
	ok := 0
	for _, item := range checklist.Items {
		if item.Status == analysis.StatusOK {
			ok++
		}
		if criticalKeys[item.Key] && item.Status == analysis.StatusMissing {
			f.CriticalItemsMissing++
		}
	}
	f.ChecklistPctOK = float64(ok) / float64(len(checklist.Items))
}

// ToMap flattens the feature vector for attribution and serialisation.
// Booleans become 0/1; absent reproduction signals default to -1 exit code
// and 0.0 durations.
func (f Features) ToMap() map[string]float64 {
	m := map[string]float64{
		"num_claims":             float64(f.NumClaims),
		"has_ablation":           boolToFloat(f.HasAblation),
		"has_baselines":          boolToFloat(f.HasBaselines),
		"has_error_bars":         boolToFloat(f.HasErrorBars),
		"has_seeds":              boolToFloat(f.HasSeeds),
		"has_requirements":       boolToFloat(f.HasRequirements),
		"has_lock_file":          boolToFloat(f.HasLockFile),
		"versions_pinned":        f.VersionsPinned,
		"has_ci":                 boolToFloat(f.HasCI),
		"has_tests":              boolToFloat(f.HasTests),
		"has_repro_readme":       boolToFloat(f.HasReproREADME),
		"has_license":            boolToFloat(f.HasLicense),
		"citation_coverage":      f.CitationCoverage,
		"citation_diversity":     f.CitationDiversity,
		"avg_citation_relevance": f.AvgCitationRelevance,
		"checklist_pct_ok":       f.ChecklistPctOK,
		"critical_items_missing": float64(f.CriticalItemsMissing),
		"repro_exit_code":        -1,
		"repro_duration":         0,
		"repro_seed_variance":    0,
	}
	if f.ReproExitCode != nil {
		m["repro_exit_code"] = float64(*f.ReproExitCode)
	}
	if f.ReproDuration != nil {
		m["repro_duration"] = *f.ReproDuration
	}
	if f.ReproSeedVariance != nil {
		m["repro_seed_variance"] = *f.ReproSeedVariance
	}
	return m
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func hasTestFiles(repoPath string) bool {
	found := false
	_ = filepath.WalkDir(repoPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasPrefix(filepath.Base(path), "test_") && filepath.Ext(path) == ".py" {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}
