package review

import (
	"context"
	"fmt"
	"time"

	"github.com/arandu-labs/arandu/internal/cloner"
	"github.com/arandu-labs/arandu/internal/logfields"
	"github.com/arandu-labs/arandu/internal/observability"
	"github.com/arandu-labs/arandu/internal/review/analysis"
	"github.com/arandu-labs/arandu/internal/review/quality"
	"github.com/arandu-labs/arandu/internal/review/rag"
)

// StepError records one degraded pipeline node. Degradation is not failure:
// the review continues with empty output for that node.
type StepError struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// State is the mutable review pipeline state threaded through the nodes.
type State struct {
	ReviewID string
	URL      string
	DOI      string
	PDFPath  string
	RepoURL  string

	// RepoPath is the local clone, "" when no repo is linked or the clone
	// degraded.
	RepoPath string

	PaperText string
	Meta      PaperMeta
	Claims    []analysis.Claim
	Citations map[string][]rag.CitationCandidate
	Checklist analysis.Checklist
	Quality   *QualityReport
	Badges    Badges
	Errors    []StepError

	CreatedAt time.Time
}

func (s *State) degrade(step string, err error) {
	s.Errors = append(s.Errors, StepError{Step: step, Message: err.Error()})
}

// Pipeline node names, in execution order.
const (
	StepIngestion          = "ingestion"
	StepClaimExtraction    = "claim_extraction"
	StepCitationSuggestion = "citation_suggestion"
	StepChecklist          = "checklist_generation"
	StepQualityScore       = "quality_score"
	StepBadges             = "badge_generation"
	StepReport             = "report_generation"
)

// Pipeline executes the review node sequence. Only ingestion (with no text
// to fall back on) and report generation are fatal; every other node
// degrades to empty output and records a StepError.
type Pipeline struct {
	ingestor  *Ingestor
	suggester *rag.Suggester
	generator quality.TextGenerator
	reports   *ReportBuilder
	repos     *cloner.Cloner
}

// NewPipeline wires the node dependencies. suggester, generator and repos
// may be nil; the corresponding nodes then degrade or skip.
func NewPipeline(ingestor *Ingestor, suggester *rag.Suggester, generator quality.TextGenerator, reports *ReportBuilder, repos *cloner.Cloner) *Pipeline {
	return &Pipeline{
		ingestor:  ingestor,
		suggester: suggester,
		generator: generator,
		reports:   reports,
		repos:     repos,
	}
}

// Run executes all nodes in order, writing reports into reportDir. The
// returned state is complete even when some nodes degraded; a non-nil error
// means the review failed as a whole.
func (p *Pipeline) Run(ctx context.Context, state *State, reportDir string) (*ReviewData, error) {
	if err := observability.LogStep(ctx, StepIngestion, func(ctx context.Context) error {
		return p.runIngestion(ctx, state)
	}); err != nil {
		return nil, fmt.Errorf("Ingestion failed: %w", err)
	}

	p.runClone(ctx, state)
	defer p.cleanupClone(ctx, state)

	_ = observability.LogStep(ctx, StepClaimExtraction, func(ctx context.Context) error {
		p.runClaimExtraction(state)
		return nil
	})
	_ = observability.LogStep(ctx, StepCitationSuggestion, func(ctx context.Context) error {
		p.runCitationSuggestion(ctx, state)
		return nil
	})
	_ = observability.LogStep(ctx, StepChecklist, func(ctx context.Context) error {
		p.runChecklist(state)
		return nil
	})
	_ = observability.LogStep(ctx, StepQualityScore, func(ctx context.Context) error {
		p.runQualityScore(ctx, state)
		return nil
	})
	_ = observability.LogStep(ctx, StepBadges, func(ctx context.Context) error {
		state.Badges = ComputeBadges(state.Claims, state.Checklist, state.Citations)
		return nil
	})

	data := p.buildReviewData(state)
	if err := observability.LogStep(ctx, StepReport, func(ctx context.Context) error {
		_, _, err := p.reports.WriteReports(reportDir, *data)
		return err
	}); err != nil {
		return nil, fmt.Errorf("Report generation failed: %w", err)
	}
	return data, nil
}

// runIngestion resolves paper text and metadata. Pre-populated text with no
// source skips fetching; a fetch failure with text already present degrades
// instead of failing.
func (p *Pipeline) runIngestion(ctx context.Context, state *State) error {
	hasSource := state.URL != "" || state.DOI != "" || state.PDFPath != ""
	if state.PaperText != "" && !hasSource {
		state.PaperText = CleanText(state.PaperText)
		state.Meta = ExtractMetadata(state.PaperText)
		state.Meta.URL = state.URL
		state.Meta.DOI = state.DOI
		return nil
	}

	text, meta, err := p.ingestor.Ingest(ctx, IngestRequest{
		URL:     state.URL,
		DOI:     state.DOI,
		PDFPath: state.PDFPath,
	})
	if err != nil {
		if state.PaperText != "" {
			state.degrade(StepIngestion, err)
			state.PaperText = CleanText(state.PaperText)
			state.Meta = PaperMeta{Title: "Unknown", URL: state.URL, DOI: state.DOI}
			return nil
		}
		return err
	}
	state.PaperText = text
	state.Meta = meta
	return nil
}

// runClone checks out the linked repository for checklist and feature
// extraction. Clone failures degrade.
func (p *Pipeline) runClone(ctx context.Context, state *State) {
	if state.RepoURL == "" || p.repos == nil {
		return
	}
	path, err := p.repos.Clone(ctx, "review-"+state.ReviewID, state.RepoURL)
	if err != nil {
		state.degrade("repo_clone", err)
		return
	}
	state.RepoPath = path
}

func (p *Pipeline) cleanupClone(ctx context.Context, state *State) {
	if state.RepoPath == "" || p.repos == nil {
		return
	}
	if err := p.repos.Cleanup("review-" + state.ReviewID); err != nil {
		observability.WarnContext(ctx, "review repo cleanup failed", logfields.Error(err))
	}
}

func (p *Pipeline) runClaimExtraction(state *State) {
	state.Claims = []analysis.Claim{}
	if state.PaperText == "" {
		return
	}
	state.Claims = analysis.ExtractClaims(state.PaperText)
}

func (p *Pipeline) runCitationSuggestion(ctx context.Context, state *State) {
	state.Citations = map[string][]rag.CitationCandidate{}
	if len(state.Claims) == 0 || p.suggester == nil {
		return
	}
	for _, claim := range state.Claims {
		candidates, err := p.suggester.Suggest(ctx, claim.Text, claim.Section)
		if err != nil {
			state.degrade(StepCitationSuggestion, fmt.Errorf("claim %s: %w", claim.ID, err))
			continue
		}
		state.Citations[claim.ID] = candidates
	}
}

func (p *Pipeline) runChecklist(state *State) {
	if state.PaperText == "" && state.RepoPath == "" {
		state.Checklist = analysis.Checklist{Items: []analysis.ChecklistItem{}, Summary: "No data available"}
		return
	}
	state.Checklist = analysis.GenerateChecklist(state.PaperText, state.RepoPath)
}

func (p *Pipeline) runQualityScore(ctx context.Context, state *State) {
	features := quality.BuildFeatures(state.PaperText, state.Claims, state.Citations, state.Checklist, state.RepoPath)
	result := quality.Predict(features)
	featureMap := features.ToMap()
	attributions := quality.Explain(featureMap)
	narrative := quality.Narrate(ctx, p.generator, quality.NarrativeInput{
		Result:       result,
		Attributions: attributions,
		Checklist:    state.Checklist,
		Claims:       state.Claims,
		PaperTitle:   state.Meta.Title,
	})

	state.Quality = &QualityReport{
		Value0100: result.Score,
		Tier:      result.Tier,
		Version:   result.Version,
		ModelType: result.ModelType,
		Features:  featureMap,
		SHAP:      attributions,
		Narrative: narrative,
	}
}

func (p *Pipeline) buildReviewData(state *State) *ReviewData {
	return &ReviewData{
		ID:           state.ReviewID,
		URL:          state.URL,
		DOI:          state.DOI,
		RepoURL:      state.RepoURL,
		Status:       "completed",
		PaperMeta:    state.Meta,
		Claims:       state.Claims,
		Citations:    state.Citations,
		Checklist:    state.Checklist,
		QualityScore: state.Quality,
		Badges:       state.Badges,
		Errors:       state.Errors,
		CreatedAt:    state.CreatedAt,
		UpdatedAt:    time.Now().UTC(),
	}
}
