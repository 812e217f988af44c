package repro

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arandu-labs/arandu/internal/envdetect"
	"github.com/arandu-labs/arandu/internal/store"
)

// DefaultRunCommand is executed when a job does not name one.
const DefaultRunCommand = "python main.py"

// GenerateArtifacts writes report.md, notebook.ipynb and badge.md into
// outputDir and returns artifact rows ready for the completion transaction.
// Artifacts exist only for successful jobs, so the badge always reads
// "Reproducible".
func GenerateArtifacts(job *store.Job, run *store.Run, env *envdetect.EnvironmentInfo, outputDir, apiBaseURL string) ([]store.Artifact, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifacts dir: %w", err)
	}

	reportPath := filepath.Join(outputDir, "report.md")
	if err := os.WriteFile(reportPath, []byte(renderReport(job, run, env)), 0o644); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}

	notebookPath := filepath.Join(outputDir, "notebook.ipynb")
	nb, err := renderNotebook(job, env)
	if err != nil {
		return nil, fmt.Errorf("render notebook: %w", err)
	}
	if err := os.WriteFile(notebookPath, nb, 0o644); err != nil {
		return nil, fmt.Errorf("write notebook: %w", err)
	}

	badgePath := filepath.Join(outputDir, "badge.md")
	badge := renderBadge(store.JobStatusCompleted, apiBaseURL, job.ID)
	if err := os.WriteFile(badgePath, []byte(badge), 0o644); err != nil {
		return nil, fmt.Errorf("write badge: %w", err)
	}

	return []store.Artifact{
		{Type: store.ArtifactTypeReport, Format: "markdown", ContentPath: reportPath, ContentSize: fileSize(reportPath)},
		{Type: store.ArtifactTypeNotebook, Format: "ipynb", ContentPath: notebookPath, ContentSize: fileSize(notebookPath)},
		{Type: store.ArtifactTypeBadge, Format: "markdown", ContentPath: badgePath, ContentSize: fileSize(badgePath)},
	}, nil
}

func renderReport(job *store.Job, run *store.Run, env *envdetect.EnvironmentInfo) string {
	var status string
	if run.ExitCode == 0 {
		status = "✅ Success"
	} else {
		status = fmt.Sprintf("❌ Failed (exit code: %d)", run.ExitCode)
	}

	lines := []string{
		"# Reproducibility Report",
		"",
		fmt.Sprintf("**Generated:** %s", time.Now().UTC().Format(time.RFC3339)),
		"",
		"## Job Metadata",
		"",
		fmt.Sprintf("- **Job ID:** `%s`", job.ID),
		fmt.Sprintf("- **Repository:** %s", job.RepoURL),
		fmt.Sprintf("- **Status:** %s", status),
		fmt.Sprintf("- **Created:** %s", job.CreatedAt.Format(time.RFC3339)),
		fmt.Sprintf("- **Started:** %s", run.StartedAt.Format(time.RFC3339)),
		fmt.Sprintf("- **Completed:** %s", run.CompletedAt.Format(time.RFC3339)),
		fmt.Sprintf("- **Duration:** %.2fs", run.DurationSeconds),
	}
	if job.ArxivID != "" {
		lines = append(lines, fmt.Sprintf("- **arXiv ID:** %s", job.ArxivID))
	}
	if job.RunCommand != "" {
		lines = append(lines, fmt.Sprintf("- **Command:** `%s`", job.RunCommand))
	}

	lines = append(lines,
		"",
		"## Environment Summary",
		"",
		fmt.Sprintf("- **Type:** %s", env.Type),
		fmt.Sprintf("- **Base Image:** %s", env.BaseImage),
		fmt.Sprintf("- **Detected Files:** %s", strings.Join(env.DetectedFiles, ", ")),
		"",
		"### Dependencies",
		"",
	)
	if len(env.Dependencies) > 0 {
		for _, dep := range env.Dependencies {
			lines = append(lines, fmt.Sprintf("- `%s`", envdetect.FormatForPip(dep)))
		}
	} else {
		lines = append(lines, "- No dependencies detected")
	}

	lines = append(lines,
		"",
		"## Execution Results",
		"",
		fmt.Sprintf("**Status:** %s", status),
		fmt.Sprintf("**Exit Code:** %d", run.ExitCode),
		fmt.Sprintf("**Duration:** %.2f seconds", run.DurationSeconds),
		"",
		"## Logs",
		"",
		"### Standard Output",
		"",
		"```",
	)
	if run.StdoutPreview != "" {
		lines = append(lines, run.StdoutPreview)
	} else {
		lines = append(lines, "(no output)")
	}
	lines = append(lines,
		"```",
		"",
		"### Standard Error",
		"",
		"```",
	)
	if run.StderrPreview != "" {
		lines = append(lines, run.StderrPreview)
	} else {
		lines = append(lines, "(no errors)")
	}
	lines = append(lines, "```", "", "---", "")
	if run.LogsPath != "" {
		lines = append(lines, fmt.Sprintf("*Full logs available at: %s*", run.LogsPath))
	}
	return strings.Join(lines, "\n")
}

// renderNotebook emits an nbformat-4 notebook with a header cell, an
// environment-setup cell and one executable cell running the job command.
func renderNotebook(job *store.Job, env *envdetect.EnvironmentInfo) ([]byte, error) {
	header := map[string]any{
		"cell_type": "markdown",
		"metadata":  map[string]any{},
		"source": []string{
			"# Reproducibility Notebook\n",
			"\n",
			fmt.Sprintf("**Repository:** %s\n", job.RepoURL),
			fmt.Sprintf("**Job ID:** `%s`\n", job.ID),
		},
	}

	setup := []string{"# Environment Setup\n", "\n"}
	switch env.Type {
	case envdetect.EnvTypeConda:
		setup = append(setup,
			"```bash\n",
			"conda env create -f environment.yml\n",
			"conda activate <env-name>\n",
			"```\n")
	default:
		specs := make([]string, 0, len(env.Dependencies))
		for _, dep := range env.Dependencies {
			specs = append(specs, envdetect.FormatForPip(dep))
		}
		setup = append(setup, "```bash\n", "pip install "+strings.Join(specs, " "), "\n```\n")
	}
	setupCell := map[string]any{
		"cell_type": "markdown",
		"metadata":  map[string]any{},
		"source":    setup,
	}

	command := job.RunCommand
	if command == "" {
		command = DefaultRunCommand
	}
	execCell := map[string]any{
		"cell_type":       "code",
		"execution_count": nil,
		"metadata":        map[string]any{},
		"outputs":         []any{},
		"source": []string{
			fmt.Sprintf("# Execute: %s\n", command),
			fmt.Sprintf("!%s\n", command),
		},
	}

	notebook := map[string]any{
		"cells": []any{header, setupCell, execCell},
		"metadata": map[string]any{
			"kernelspec": map[string]any{
				"display_name": "Python 3",
				"language":     "python",
				"name":         "python3",
			},
			"language_info": map[string]any{
				"name":    "python",
				"version": "3.11",
			},
			"colab": map[string]any{
				"name":       "Reproducibility Notebook",
				"provenance": []any{},
			},
		},
		"nbformat":       4,
		"nbformat_minor": 4,
	}
	return json.MarshalIndent(notebook, "", "  ")
}

// renderBadge emits a shields.io markdown badge linking back to the job.
func renderBadge(status store.JobStatus, apiBaseURL, jobID string) string {
	var text, color string
	switch status {
	case store.JobStatusCompleted:
		text, color = "Reproducible", "green"
	case store.JobStatusFailed:
		text, color = "Failed", "red"
	case store.JobStatusRunning:
		text, color = "Running", "yellow"
	default:
		text, color = "Pending", "gray"
	}
	jobURL := fmt.Sprintf("%s/jobs/%s", strings.TrimSuffix(apiBaseURL, "/"), jobID)
	badgeURL := fmt.Sprintf("https://img.shields.io/badge/Reproducibility-%s-%s", text, color)
	return fmt.Sprintf("[![%s](%s)](%s)", text, badgeURL, jobURL)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
