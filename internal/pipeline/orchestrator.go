package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"contact-harvester/internal/entity"
)

const (
	maxCandidates = 5
	maxPages      = 4 // homepage + up to 3 contact sub-pages
	pageCharCap   = 15000
)

type TaskRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Task, error)
	MarkInProgress(ctx context.Context, id uuid.UUID) error
	UpdateStage(ctx context.Context, id uuid.UUID, stage entity.TaskStage) error
	SetResultSuccess(ctx context.Context, id uuid.UUID, result json.RawMessage) error
	SetResultFailure(ctx context.Context, id uuid.UUID, reason string) error
}

// Deliverer pushes the terminal payload to the task's callback URL.
type Deliverer interface {
	Deliver(ctx context.Context, task *entity.Task) error
}

// Orchestrator drives one task through the stage sequence. It is the sole
// writer of status/stage/result/error_reason: a stage-domain failure
// short-circuits the remaining stages and terminates the task as FAILURE,
// success terminates it as SUCCESS, and in both cases the deliverer is
// invoked exactly once, after the gate permit has been released.
type Orchestrator struct {
	repo    TaskRepo
	gate    *Gate
	search  Searcher
	verify  Verifier
	render  Renderer
	extract Extractor
	deliver Deliverer

	stageTimeout time.Duration
}

func NewOrchestrator(repo TaskRepo, gate *Gate, search Searcher, verify Verifier, render Renderer, extract Extractor, deliver Deliverer, stageTimeout time.Duration) *Orchestrator {
	if stageTimeout <= 0 {
		stageTimeout = 45 * time.Second
	}
	return &Orchestrator{
		repo:         repo,
		gate:         gate,
		search:       search,
		verify:       verify,
		render:       render,
		extract:      extract,
		deliver:      deliver,
		stageTimeout: stageTimeout,
	}
}

// Process runs the whole pipeline for one claimed task id. Infrastructure
// errors (store unreachable, shutdown) are returned to the pool; everything
// else ends in a terminal state on the record.
func (o *Orchestrator) Process(ctx context.Context, taskID string) error {
	start := time.Now()

	id, err := uuid.Parse(taskID)
	if err != nil {
		log.Printf("[pipeline] task_id=%s parse_error=%v", taskID, err)
		return err
	}

	if err := o.repo.MarkInProgress(ctx, id); err != nil {
		log.Printf("[pipeline] task_id=%s mark_in_progress error=%v", id.String(), err)
		return err
	}

	task, err := o.repo.GetByID(ctx, id)
	if err != nil {
		log.Printf("[pipeline] task_id=%s get_task error=%v", id.String(), err)
		return err
	}

	log.Printf("[pipeline] task_id=%s query=%q status=IN_PROGRESS", id.String(), task.Query)

	result, runErr := o.runStages(ctx, task)

	var stageErr *StageError
	switch {
	case runErr == nil:
		if err := o.repo.SetResultSuccess(ctx, id, result); err != nil {
			log.Printf("[pipeline] task_id=%s set_success error=%v", id.String(), err)
			return err
		}
		log.Printf("[pipeline] task_id=%s status=SUCCESS duration_ms=%d",
			id.String(), time.Since(start).Milliseconds())
	case errors.As(runErr, &stageErr):
		if err := o.repo.SetResultFailure(ctx, id, stageErr.Error()); err != nil {
			log.Printf("[pipeline] task_id=%s set_failure error=%v", id.String(), err)
			return err
		}
		log.Printf("[pipeline] task_id=%s status=FAILURE reason=%q duration_ms=%d",
			id.String(), stageErr.Error(), time.Since(start).Milliseconds())
	default:
		// infrastructure failure: no terminal write happened, the task is
		// abandoned (or requeued by the reaper if the claim was not acked)
		log.Printf("[pipeline] task_id=%s run error=%v", id.String(), runErr)
		return runErr
	}

	terminal, err := o.repo.GetByID(ctx, id)
	if err != nil {
		log.Printf("[pipeline] task_id=%s reload error=%v", id.String(), err)
		return err
	}
	if err := o.deliver.Deliver(ctx, terminal); err != nil {
		// delivery failure is a downstream concern, never the task's status
		log.Printf("[pipeline] task_id=%s delivery exhausted error=%v", id.String(), err)
	}
	return nil
}

// runStages walks the stage list in order. The gate permit is acquired
// before the first gated stage, held across the gated ones, and released
// when this function returns — before any terminal write or delivery.
func (o *Orchestrator) runStages(ctx context.Context, task *entity.Task) (_ json.RawMessage, err error) {
	stages := []stageDef{
		{name: "discover", stage: entity.StageSearching, fn: o.discoverStage},
		{name: "verify", stage: entity.StageVerifying, fn: o.verifyStage},
		{name: "harvest", stage: entity.StageHarvesting, gated: true, fn: o.harvestStage},
		{name: "extract", stage: entity.StageExtracting, gated: true, fn: o.extractStage},
	}

	r := &run{task: task}
	held := false
	defer func() {
		if held {
			o.gate.Release()
		}
	}()

	for _, def := range stages {
		if def.gated && !held {
			if aerr := o.gate.Acquire(ctx); aerr != nil {
				return nil, fmt.Errorf("gate: %w", aerr)
			}
			held = true
		}
		if uerr := o.repo.UpdateStage(ctx, task.ID, def.stage); uerr != nil {
			return nil, fmt.Errorf("update stage %s: %w", def.stage, uerr)
		}

		stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
		serr := def.fn(stageCtx, r)
		timedOut := errors.Is(stageCtx.Err(), context.DeadlineExceeded)
		cancel()

		if serr != nil {
			if ctx.Err() != nil {
				// shutdown, not a stage outcome
				return nil, ctx.Err()
			}
			if timedOut {
				return nil, failf(def.name, "timed out after %s", o.stageTimeout)
			}
			return nil, serr
		}
	}

	result := entity.ScrapeResult{
		Query:        task.Query,
		OfficialSite: r.officialSite,
		Contacts:     r.contacts,
	}
	out, merr := json.Marshal(result)
	if merr != nil {
		return nil, fmt.Errorf("marshal result: %w", merr)
	}
	return out, nil
}

func (o *Orchestrator) discoverStage(ctx context.Context, r *run) error {
	urls, err := o.search.Search(ctx, r.task.Query)
	if err != nil {
		return failf("discover", "search failed: %v", err)
	}
	if len(urls) == 0 {
		return failf("discover", "no results")
	}
	if len(urls) > maxCandidates {
		urls = urls[:maxCandidates]
	}
	r.candidates = urls
	return nil
}

func (o *Orchestrator) verifyStage(ctx context.Context, r *run) error {
	site, err := o.verify.ConfirmOfficialSite(ctx, r.task.Query, r.candidates)
	if err != nil {
		return failf("verify", "confirmation failed: %v", err)
	}
	if site == "" {
		return failf("verify", "no candidate confirmed")
	}
	r.officialSite = site
	return nil
}

func (o *Orchestrator) harvestStage(ctx context.Context, r *run) error {
	links, err := o.render.CollectContactLinks(ctx, r.officialSite)
	if err != nil {
		return failf("harvest", "rendering failed: %v", err)
	}
	if len(links) == 0 {
		return failf("harvest", "no reachable sub-pages")
	}
	if len(links) > maxPages {
		links = links[:maxPages]
	}
	r.pageURLs = links
	return nil
}

// extractStage fetches each harvested page, truncates every page's text to
// pageCharCap before concatenation (one huge page must not starve the
// others), and asks the inference service to structure the combined text.
func (o *Orchestrator) extractStage(ctx context.Context, r *run) error {
	var b strings.Builder
	fetched := 0
	for _, pageURL := range r.pageURLs {
		text, err := o.render.FetchVisibleText(ctx, pageURL)
		if err != nil {
			log.Printf("[pipeline] task_id=%s page=%s fetch error=%v", r.task.ID.String(), pageURL, err)
			continue
		}
		fetched++
		text = truncateRunes(text, pageCharCap)
		fmt.Fprintf(&b, "\n--- Source: %s ---\n%s\n", pageURL, text)
	}
	if fetched == 0 {
		return failf("extract", "all page fetches failed")
	}
	r.combinedText = b.String()

	contacts, err := o.extract.ExtractContacts(ctx, r.combinedText)
	if err != nil {
		return failf("extract", "structuring failed: %v", err)
	}
	r.contacts = contacts

	// Targeted fallback when the primary extraction misses the email: one
	// snippet search plus one more extraction pass. A fallback failure never
	// fails the task.
	if contacts.Email == "" {
		o.fallbackEmail(ctx, r)
	}
	return nil
}

// truncateRunes keeps the first max characters of s. The cap is counted in
// runes, not bytes: Korean pages must contribute as much text as Latin ones,
// and the cut must never land inside a multibyte sequence.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

func (o *Orchestrator) fallbackEmail(ctx context.Context, r *run) {
	query := fmt.Sprintf("%q contact email address", r.task.Query)
	snippets, err := o.search.SearchSnippets(ctx, query)
	if err != nil || snippets == "" {
		log.Printf("[pipeline] task_id=%s fallback snippet search empty error=%v", r.task.ID.String(), err)
		return
	}
	updated, err := o.extract.ExtractFallbackEmail(ctx, snippets, r.contacts)
	if err != nil || updated == nil {
		log.Printf("[pipeline] task_id=%s fallback extraction error=%v", r.task.ID.String(), err)
		return
	}
	r.contacts = updated
}
