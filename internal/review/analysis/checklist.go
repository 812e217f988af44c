package analysis

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Checklist statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
	StatusMissing = "missing"
)

// ChecklistItem is one evaluated reproducibility criterion.
type ChecklistItem struct {
	Key      string `json:"key"`
	Status   string `json:"status"`
	Evidence string `json:"evidence,omitempty"`
	Source   string `json:"source"` // "paper" or "repo"
}

// Checklist is the fixed seven-item method checklist.
type Checklist struct {
	Items   []ChecklistItem `json:"items"`
	Summary string          `json:"summary"`
}

// GenerateChecklist evaluates all seven criteria over the paper text and an
// optional repository path ("" when no repo is linked).
func GenerateChecklist(paperText string, repoPath string) Checklist {
	items := []ChecklistItem{
		checkDataAvailable(paperText, repoPath),
		checkSeedsFixed(paperText, repoPath),
		checkEnvironmentFiles(repoPath),
		checkCommandsAvailable(paperText, repoPath),
		checkMetricsDefined(paperText),
		checkComparatives(paperText),
		checkLicense(repoPath),
	}

	var ok, partial, missing int
	for _, item := range items {
		switch item.Status {
		case StatusOK:
			ok++
		case StatusPartial:
			partial++
		default:
			missing++
		}
	}
	return Checklist{
		Items:   items,
		Summary: fmt.Sprintf("Checklist: %d OK, %d partial, %d missing", ok, partial, missing),
	}
}

var dataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)dataset[:\s]+(?:https?://|www\.)`),
	regexp.MustCompile(`(?i)data[:\s]+(?:available|provided|download)`),
	regexp.MustCompile(`(?i)https?://[^\s]+(?:data|dataset)`),
}

func checkDataAvailable(paperText, repoPath string) ChecklistItem {
	item := ChecklistItem{Key: "data_available", Status: StatusMissing, Source: "repo"}

	for _, p := range dataPatterns {
		if m := p.FindString(paperText); m != "" {
			item.Status = StatusOK
			item.Evidence = m
			item.Source = "paper"
			return item
		}
	}

	if repoPath != "" {
		for _, dir := range []string{"data", "datasets", "data_files"} {
			if info, err := os.Stat(filepath.Join(repoPath, dir)); err == nil && info.IsDir() {
				item.Status = StatusOK
				item.Evidence = fmt.Sprintf("Found %s/ directory in repo", dir)
				return item
			}
		}
		if readme := readREADME(repoPath); readme != "" {
			if regexp.MustCompile(`(?i)data|dataset`).MatchString(readme) {
				item.Status = StatusPartial
				item.Evidence = "README mentions data"
			}
		}
	}
	return item
}

var seedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)seed[:\s]+\d+`),
	regexp.MustCompile(`(?i)random[_\s]?state[:\s]+\d+`),
	regexp.MustCompile(`(?i)random[_\s]?seed[:\s]+\d+`),
}

var seedAssignment = regexp.MustCompile(`seed\s*=\s*\d+|random_state\s*=\s*\d+`)

func checkSeedsFixed(paperText, repoPath string) ChecklistItem {
	item := ChecklistItem{Key: "seeds_fixed", Status: StatusMissing, Source: "repo"}

	for _, p := range seedPatterns {
		if m := p.FindString(paperText); m != "" {
			item.Status = StatusOK
			item.Evidence = m
			item.Source = "paper"
			return item
		}
	}

	// First ten Python files only; deep trees are not worth scanning.
	if repoPath != "" {
		for _, path := range pythonFiles(repoPath, 10) {
			content, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			if seedAssignment.Match(content) {
				item.Status = StatusOK
				item.Evidence = fmt.Sprintf("Found seed setting in %s", filepath.Base(path))
				return item
			}
		}
	}
	return item
}

var manifestNames = []string{"requirements.txt", "environment.yml", "pyproject.toml", "Pipfile", "setup.py"}

func checkEnvironmentFiles(repoPath string) ChecklistItem {
	item := ChecklistItem{Key: "environment", Status: StatusMissing, Source: "repo"}
	if repoPath == "" {
		return item
	}
	var found []string
	for _, name := range manifestNames {
		if _, err := os.Stat(filepath.Join(repoPath, name)); err == nil {
			found = append(found, name)
		}
	}
	if len(found) > 0 {
		item.Status = StatusOK
		item.Evidence = "Found: " + strings.Join(found, ", ")
	}
	return item
}

var commandPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:run|execute|command)[:\s]+(?:python|bash|sh)`),
	regexp.MustCompile(`(?i)python\s+[a-z_]+\.py`),
}

func checkCommandsAvailable(paperText, repoPath string) ChecklistItem {
	item := ChecklistItem{Key: "commands", Status: StatusMissing, Source: "repo"}

	for _, p := range commandPatterns {
		if p.MatchString(paperText) {
			item.Status = StatusPartial
			item.Evidence = "Paper mentions execution commands"
			item.Source = "paper"
			break
		}
	}

	if repoPath != "" {
		if readme := readREADME(repoPath); readme != "" {
			if regexp.MustCompile(`(?i)python|run|execute|usage`).MatchString(readme) {
				if item.Status == StatusMissing {
					item.Status = StatusOK
				} else {
					item.Status = StatusPartial
				}
				item.Evidence = "README contains execution instructions"
				item.Source = "repo"
			}
		}
	}
	return item
}

var metricPattern = regexp.MustCompile(`(?i)accuracy|precision|recall|f1|f-score|auroc|auc|roc`)

func checkMetricsDefined(paperText string) ChecklistItem {
	item := ChecklistItem{Key: "metrics", Status: StatusMissing, Source: "paper"}
	if m := metricPattern.FindString(paperText); m != "" {
		item.Status = StatusOK
		item.Evidence = m
	}
	return item
}

var (
	baselinePattern      = regexp.MustCompile(`(?i)baselines?|compared\s+to|versus|vs\.|state-of-the-art|SOTA`)
	namedBaselinePattern = regexp.MustCompile(`(?i)(?:BERT|GPT|ResNet|VGG)\s+(?:baseline|comparison)`)
)

func checkComparatives(paperText string) ChecklistItem {
	item := ChecklistItem{Key: "comparatives", Status: StatusMissing, Source: "paper"}
	if baselinePattern.MatchString(paperText) {
		item.Status = StatusPartial
		item.Evidence = "Paper mentions baselines/comparisons"
	}
	if namedBaselinePattern.MatchString(paperText) {
		item.Status = StatusOK
		item.Evidence = "Paper names specific baselines"
	}
	return item
}

func checkLicense(repoPath string) ChecklistItem {
	item := ChecklistItem{Key: "license", Status: StatusMissing, Source: "repo"}
	if repoPath == "" {
		return item
	}
	for _, name := range []string{"LICENSE", "LICENSE.txt", "LICENSE.md", "COPYING"} {
		if _, err := os.Stat(filepath.Join(repoPath, name)); err == nil {
			item.Status = StatusOK
			item.Evidence = "Found " + name
			return item
		}
	}
	if readme := readREADME(repoPath); readme != "" {
		if regexp.MustCompile(`(?i)license|licence`).MatchString(readme) {
			item.Status = StatusPartial
			item.Evidence = "License mentioned in README"
		}
	}
	return item
}

func readREADME(repoPath string) string {
	data, err := os.ReadFile(filepath.Join(repoPath, "README.md"))
	if err != nil {
		return ""
	}
	return string(data)
}

// pythonFiles walks repoPath collecting up to limit .py files.
func pythonFiles(repoPath string, limit int) []string {
	var files []string
	_ = filepath.WalkDir(repoPath, func(path string, d os.DirEntry, err error) error {
		if err != nil || len(files) >= limit {
			return filepath.SkipAll
		}
		if !d.IsDir() && filepath.Ext(path) == ".py" {
			files = append(files, path)
		}
		return nil
	})
	return files
}
