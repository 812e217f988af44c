package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// JobStatus is the reproduction job lifecycle state.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ReviewStatus is the review pipeline lifecycle state.
type ReviewStatus string

const (
	ReviewStatusPending    ReviewStatus = "pending"
	ReviewStatusProcessing ReviewStatus = "processing"
	ReviewStatusCompleted  ReviewStatus = "completed"
	ReviewStatusFailed     ReviewStatus = "failed"
)

// ArtifactType labels reproduction output artifacts.
type ArtifactType string

const (
	ArtifactTypeReport   ArtifactType = "report"
	ArtifactTypeNotebook ArtifactType = "notebook"
	ArtifactTypeBadge    ArtifactType = "badge"
)

// Job is a reproduction request. Mutated only by the owning worker.
type Job struct {
	ID                  string
	RepoURL             string
	ArxivID             string
	RunCommand          string
	Status              JobStatus
	ErrorMessage        string
	DetectedEnvironment string // JSON, empty until detection runs
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Run is the exit record of a containerised execution, 1:1 with its job.
type Run struct {
	ID              string
	JobID           string
	ExitCode        int
	StdoutPreview   string
	StderrPreview   string
	LogsPath        string
	StartedAt       time.Time
	CompletedAt     time.Time
	DurationSeconds float64
}

// Artifact is one emitted output file belonging to a completed job.
type Artifact struct {
	ID          string
	JobID       string
	Type        ArtifactType
	Format      string
	ContentPath string
	ContentSize int64
}

// Review is a paper-analysis request with progressively populated result slots.
type Review struct {
	ID              string
	URL             string
	DOI             string
	PDFFilePath     string
	RepoURL         string
	Status          ReviewStatus
	ErrorMessage    string
	PaperMeta       string // JSON
	PaperText       string
	Claims          string // JSON
	Citations       string // JSON
	Checklist       string // JSON
	QualityScore    string // JSON
	Badges          string // JSON
	HTMLReportPath  string
	JSONSummaryPath string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Visibility controls who may list or fetch a hosted paper.
type Visibility string

const (
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPublic   Visibility = "public"
)

// Paper is a hostable artifact owning versions, external ids, claims and scores.
type Paper struct {
	ID               string
	AID              string
	Title            string
	RepoURL          string
	Visibility       Visibility
	License          string
	CreatedBy        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ApprovedPublicAt *time.Time
	DeletedAt        *time.Time
}

// PaperVersion is an immutable uploaded revision of a paper.
type PaperVersion struct {
	ID        string
	PaperID   string
	AID       string
	Version   int
	PDFPath   string
	MetaJSON  string
	CreatedAt time.Time
	DeletedAt *time.Time
}

// ExternalIDKind labels a paper's external identifier.
type ExternalIDKind string

const (
	ExternalIDDOI   ExternalIDKind = "doi"
	ExternalIDArxiv ExternalIDKind = "arxiv"
	ExternalIDPMID  ExternalIDKind = "pmid"
	ExternalIDURL   ExternalIDKind = "url"
)

// PaperExternalID maps a paper to at most one identifier per kind.
type PaperExternalID struct {
	ID      string
	PaperID string
	Kind    ExternalIDKind
	Value   string
}

// Claim is a sentence-level assertion extracted from a paper version.
// Spans are half-open [SpanStart, SpanEnd) into the base document; both
// endpoints are present or both absent.
type Claim struct {
	ID             string
	PaperVersionID string
	PaperID        string
	Text           string
	SpanStart      *int
	SpanEnd        *int
	Page           *int
	BBox           string // JSON, optional
	Section        string
	Confidence     *float64
	Hash           string
	TextHash       string
	CreatedAt      time.Time
	DeletedAt      *time.Time
}

// ComputeHash derives the dedup hash for a claim: the SHA-256 of the text,
// span and owning version. Re-extracting the same sentence at the same span
// from the same version always produces the same hash.
func (c *Claim) ComputeHash() string {
	content := fmt.Sprintf("%s|%s|%s|%s",
		c.Text, formatSpan(c.SpanStart), formatSpan(c.SpanEnd), c.PaperVersionID)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func formatSpan(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

// LinkRelation types a claim's relationship to an external source.
type LinkRelation string

const (
	RelationEquivalent    LinkRelation = "equivalent"
	RelationComplementary LinkRelation = "complementary"
	RelationContradictory LinkRelation = "contradictory"
	RelationUnclear       LinkRelation = "unclear"
)

// ClaimLink relates a claim to a source paper or an opaque external document.
// On source-paper deletion SourcePaperID becomes null but the link survives.
type ClaimLink struct {
	ID             string
	ClaimID        string
	SourcePaperID  *string
	SourceDocID    *string
	Relation       LinkRelation
	Confidence     float64
	ContextExcerpt string
	ReasoningRef   string
}

// ScoreScope selects whether a quality score targets a paper or one version.
type ScoreScope string

const (
	ScopePaper   ScoreScope = "paper"
	ScopeVersion ScoreScope = "version"
)

// QualityScore is a 0-100 reproducibility score with signals and rationale.
// Exactly one of PaperID and PaperVersionID is set, matching Scope.
type QualityScore struct {
	ID                  string
	Scope               ScoreScope
	PaperID             *string
	PaperVersionID      *string
	Score               int
	Signals             string // JSON
	Rationale           string // JSON
	ScoringModelVersion string
	CreatedAt           time.Time
}
