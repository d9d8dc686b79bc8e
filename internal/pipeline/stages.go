package pipeline

import (
	"context"
	"fmt"

	"contact-harvester/internal/entity"
)

// Collaborator ports. Each stage wraps one call to one of these; none of
// them sees the task record.

// Searcher finds candidate URLs for a query. SearchSnippets returns raw
// result snippet text (used by the email fallback, not by a pipeline stage).
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
	SearchSnippets(ctx context.Context, query string) (string, error)
}

// Verifier asks the inference service to pick the official homepage among
// candidates. Empty result means no candidate was confirmed.
type Verifier interface {
	ConfirmOfficialSite(ctx context.Context, query string, candidates []string) (string, error)
}

// Renderer loads pages: contact-relevant link collection from a homepage
// and visible-text extraction per URL.
type Renderer interface {
	CollectContactLinks(ctx context.Context, homepageURL string) ([]string, error)
	FetchVisibleText(ctx context.Context, pageURL string) (string, error)
}

// Extractor turns combined page text into a structured contact mapping.
type Extractor interface {
	ExtractContacts(ctx context.Context, text string) (*entity.ContactInfo, error)
	ExtractFallbackEmail(ctx context.Context, snippets string, current *entity.ContactInfo) (*entity.ContactInfo, error)
}

// StageError is an expected stage-domain outcome (no results, nothing
// confirmed, schema violation, timeout). The orchestrator turns it into a
// FAILURE terminal state; it is never escalated further.
type StageError struct {
	Stage  string
	Reason string
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Reason
}

func failf(stage, format string, args ...any) error {
	return &StageError{Stage: stage, Reason: fmt.Sprintf(format, args...)}
}

// run carries intermediate stage outputs through one pipeline execution.
// Outputs of stages before a failure are discarded with the run.
type run struct {
	task         *entity.Task
	candidates   []string
	officialSite string
	pageURLs     []string
	combinedText string
	contacts     *entity.ContactInfo
}

// stageDef is one entry of the orchestrator's stage list: a persisted stage
// marker, whether the stage needs a gate permit, and the stage function.
// Stage functions return nil, a *StageError (domain failure) or a plain
// error (infrastructure failure).
type stageDef struct {
	name  string
	stage entity.TaskStage
	gated bool
	fn    func(ctx context.Context, r *run) error
}
