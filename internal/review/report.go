package review

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/arandu-labs/arandu/internal/review/analysis"
	"github.com/arandu-labs/arandu/internal/review/quality"
	"github.com/arandu-labs/arandu/internal/review/rag"
)

// PipelineVersion stamps reports with the pipeline revision that built them.
const PipelineVersion = "v0.1.0"

// Report artifact file names within a review's directory.
const (
	HTMLReportName  = "report.html"
	JSONSummaryName = "review.json"
)

// QualityReport is the serialised quality-score block of a review.
type QualityReport struct {
	Value0100 float64               `json:"value_0_100"`
	Tier      string                `json:"tier"`
	Version   string                `json:"version"`
	ModelType string                `json:"model_type"`
	Features  map[string]float64    `json:"features"`
	SHAP      []quality.Attribution `json:"shap"`
	Narrative quality.Narrative     `json:"narrative"`
}

// ReviewData is the complete serialisable review result. It is both the
// JSON summary body and the input to the HTML report template.
type ReviewData struct {
	ID           string                             `json:"id"`
	URL          string                             `json:"url,omitempty"`
	DOI          string                             `json:"doi,omitempty"`
	RepoURL      string                             `json:"repo_url,omitempty"`
	Status       string                             `json:"status"`
	PaperMeta    PaperMeta                          `json:"paper_meta"`
	Claims       []analysis.Claim                   `json:"claims"`
	Citations    map[string][]rag.CitationCandidate `json:"citations"`
	Checklist    analysis.Checklist                 `json:"checklist"`
	QualityScore *QualityReport                     `json:"quality_score,omitempty"`
	Badges       Badges                             `json:"badges"`
	Errors       []StepError                        `json:"errors,omitempty"`
	CreatedAt    time.Time                          `json:"created_at"`
	UpdatedAt    time.Time                          `json:"updated_at"`
}

// ReportBuilder renders the HTML report and its JSON twin.
type ReportBuilder struct {
	apiBaseURL string
	md         goldmark.Markdown
	tmpl       *template.Template
}

// NewReportBuilder wires the markdown renderer and parses the report
// template once.
func NewReportBuilder(apiBaseURL string) *ReportBuilder {
	return &ReportBuilder{
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		md:         goldmark.New(),
		tmpl:       template.Must(template.New("report").Funcs(reportFuncs).Parse(reportTemplate)),
	}
}

// WriteReports writes report.html and review.json under dir, creating it as
// needed, and returns both paths.
func (b *ReportBuilder) WriteReports(dir string, data ReviewData) (htmlPath, jsonPath string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create report dir: %w", err)
	}

	htmlBody, err := b.BuildHTML(data)
	if err != nil {
		return "", "", err
	}
	htmlPath = filepath.Join(dir, HTMLReportName)
	if err := os.WriteFile(htmlPath, htmlBody, 0o644); err != nil {
		return "", "", fmt.Errorf("write html report: %w", err)
	}

	jsonBody, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal review json: %w", err)
	}
	jsonPath = filepath.Join(dir, JSONSummaryName)
	if err := os.WriteFile(jsonPath, jsonBody, 0o644); err != nil {
		return "", "", fmt.Errorf("write review json: %w", err)
	}
	return htmlPath, jsonPath, nil
}

// BuildHTML renders the report page.
func (b *ReportBuilder) BuildHTML(data ReviewData) ([]byte, error) {
	view := reportView{
		ReviewData:      data,
		APIBaseURL:      b.apiBaseURL,
		PipelineVersion: PipelineVersion,
		Summary:         summaryLine(data),
		Recommendations: recommendations(data),
	}
	if data.QualityScore != nil {
		view.TopSHAP = data.QualityScore.SHAP
		if len(view.TopSHAP) > 5 {
			view.TopSHAP = view.TopSHAP[:5]
		}
		view.TechnicalHTML = b.renderMarkdown(data.QualityScore.Narrative.TechnicalDeepdive)
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// renderMarkdown converts narrative markdown to HTML, falling back to the
// escaped source on conversion failure.
func (b *ReportBuilder) renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := b.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

type reportView struct {
	ReviewData
	APIBaseURL      string
	PipelineVersion string
	Summary         string
	Recommendations []string
	TopSHAP         []quality.Attribution
	TechnicalHTML   template.HTML
}

func summaryLine(data ReviewData) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%d claims extracted", len(data.Claims)))
	if data.Checklist.Summary != "" {
		parts = append(parts, strings.ToLower(data.Checklist.Summary[:1])+data.Checklist.Summary[1:])
	}
	if data.QualityScore != nil {
		parts = append(parts, fmt.Sprintf("quality score %.1f/100 (tier %s)", data.QualityScore.Value0100, data.QualityScore.Tier))
	}
	return strings.Join(parts, "; ") + "."
}

func recommendations(data ReviewData) []string {
	var out []string
	if data.QualityScore != nil && data.QualityScore.Value0100 < 70 {
		out = append(out, "Strengthen evidence quality: add ablations, baselines and error bars where missing.")
	}
	var missing []string
	for _, item := range data.Checklist.Items {
		if item.Status == analysis.StatusMissing {
			switch item.Key {
			case "data_available", "seeds_fixed", "environment":
				missing = append(missing, strings.ReplaceAll(item.Key, "_", " "))
			}
		}
	}
	if len(missing) > 0 {
		out = append(out, "Address missing reproducibility basics: "+strings.Join(missing, ", ")+".")
	}
	if len(out) == 0 {
		out = append(out, "Review looks good! The paper covers the core reproducibility criteria.")
	}
	return out
}

var reportFuncs = template.FuncMap{
	"tierColor": func(tier string) string {
		switch tier {
		case "A":
			return "text-green-600"
		case "B":
			return "text-blue-600"
		case "C":
			return "text-yellow-600"
		default:
			return "text-red-600"
		}
	},
	"statusColor": func(status string) string {
		switch status {
		case analysis.StatusOK:
			return "text-green-600"
		case analysis.StatusPartial:
			return "text-yellow-600"
		default:
			return "text-red-600"
		}
	},
	"joinAuthors": func(authors []string) string { return strings.Join(authors, ", ") },
	"topCitations": func(candidates []rag.CitationCandidate) []rag.CitationCandidate {
		if len(candidates) > 3 {
			return candidates[:3]
		}
		return candidates
	},
	"pct": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Review: {{.PaperMeta.Title}}</title>
<script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-50 text-gray-900">
<div class="max-w-4xl mx-auto px-4 py-8 space-y-8">

<header>
<h1 class="text-2xl font-bold">{{.PaperMeta.Title}}</h1>
{{if .PaperMeta.Authors}}<p class="text-gray-600">{{joinAuthors .PaperMeta.Authors}}</p>{{end}}
{{if or .PaperMeta.Venue .PaperMeta.PublishedAt}}<p class="text-sm text-gray-500">{{.PaperMeta.Venue}}{{if and .PaperMeta.Venue .PaperMeta.PublishedAt}} &bull; {{end}}{{.PaperMeta.PublishedAt}}</p>{{end}}
</header>

<section class="flex gap-2">
<img src="{{.APIBaseURL}}/badges/{{.ID}}/claim-mapped.svg" alt="claim-mapped badge">
<img src="{{.APIBaseURL}}/badges/{{.ID}}/method-check.svg" alt="method-check badge">
<img src="{{.APIBaseURL}}/badges/{{.ID}}/citations-augmented.svg" alt="citations-augmented badge">
</section>

<section class="bg-white rounded shadow p-4">
<h2 class="font-semibold mb-2">Summary</h2>
<p>{{.Summary}}</p>
</section>

{{if .QualityScore}}
<section class="bg-white rounded shadow p-4">
<h2 class="font-semibold mb-2">Quality Score</h2>
<p class="text-3xl font-bold {{tierColor .QualityScore.Tier}}">{{printf "%.1f" .QualityScore.Value0100}}<span class="text-base text-gray-500">/100 &mdash; tier {{.QualityScore.Tier}}</span></p>
{{if .TopSHAP}}
<h3 class="font-medium mt-4 mb-1">Top contributing factors</h3>
<ul class="list-disc pl-6 text-sm">
{{range .TopSHAP}}<li>{{.Feature}}: {{printf "%+.1f" .Phi}}</li>
{{end}}</ul>
{{end}}
{{if .QualityScore.Narrative.ExecutiveJustification}}
<h3 class="font-medium mt-4 mb-1">Why this score</h3>
<ul class="list-disc pl-6 text-sm">
{{range .QualityScore.Narrative.ExecutiveJustification}}<li>{{.}}</li>
{{end}}</ul>
{{end}}
{{if .TechnicalHTML}}
<div class="prose prose-sm mt-4">{{.TechnicalHTML}}</div>
{{end}}
</section>
{{end}}

<section class="bg-white rounded shadow p-4">
<h2 class="font-semibold mb-2">Claims &amp; Citations</h2>
{{if not .Claims}}<p class="text-gray-500">No claims extracted.</p>{{end}}
{{range .Claims}}
<div class="border-b last:border-0 py-3">
<p class="text-sm">{{.Text}}</p>
<p class="text-xs text-gray-500">{{if .Section}}{{.Section}} &bull; {{end}}confidence {{pct .Confidence}}</p>
{{with index $.Citations .ID}}
<ul class="mt-1 pl-4 text-xs text-gray-600">
{{range topCitations .}}<li><a class="text-blue-600 hover:underline" href="{{.URL}}">{{.Title}}</a> (score {{pct .ScoreFinal}})</li>
{{end}}</ul>
{{end}}
</div>
{{end}}
</section>

<section class="bg-white rounded shadow p-4">
<h2 class="font-semibold mb-2">Method Checklist</h2>
<table class="w-full text-sm">
<thead><tr class="text-left text-gray-500"><th class="py-1">Item</th><th>Status</th><th>Evidence</th><th>Source</th></tr></thead>
<tbody>
{{range .Checklist.Items}}
<tr class="border-t"><td class="py-1">{{.Key}}</td><td class="{{statusColor .Status}}">{{.Status}}</td><td>{{.Evidence}}</td><td class="text-gray-500">{{.Source}}</td></tr>
{{end}}
</tbody>
</table>
<p class="text-xs text-gray-500 mt-2">{{.Checklist.Summary}}</p>
</section>

<section class="bg-white rounded shadow p-4">
<h2 class="font-semibold mb-2">Recommendations</h2>
<ul class="list-disc pl-6 text-sm">
{{range .Recommendations}}<li>{{.}}</li>
{{end}}</ul>
</section>

{{if .Errors}}
<section class="bg-white rounded shadow p-4">
<h2 class="font-semibold mb-2">Degraded Steps</h2>
<ul class="list-disc pl-6 text-sm text-amber-700">
{{range .Errors}}<li>{{.Step}}: {{.Message}}</li>
{{end}}</ul>
</section>
{{end}}

<footer class="text-xs text-gray-400">
Review ID {{.ID}}{{if .DOI}} &bull; DOI {{.DOI}}{{end}}{{if .URL}} &bull; <a href="{{.URL}}">source</a>{{end}} &bull; Pipeline {{.PipelineVersion}}
</footer>

</div>
</body>
</html>
`
