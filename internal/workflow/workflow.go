// Package workflow drives a project through Draft, Processing, Ready and
// Error. Every trigger is an explicit method returning the resulting status
// and, when the trigger was refused or recorded a failure, an error.
package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/bpmnprojectflow/internal/bpmn"
	"github.com/Lllllllleong/bpmnprojectflow/internal/intake"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
)

var (
	// ErrInvalidTransition rejects a trigger the current status does not accept.
	ErrInvalidTransition = errors.New("invalid project transition")
	// ErrGenerationFailure records that the generation workflow reported a failure.
	ErrGenerationFailure = errors.New("generation failed")
	// ErrDuplicateResult marks a generation result that arrived after its cycle was resolved.
	ErrDuplicateResult = errors.New("duplicate generation result")
)

// Trigger names what caused a transition.
type Trigger string

const (
	TriggerSubmit    Trigger = "submit"
	TriggerSucceeded Trigger = "generation_succeeded"
	TriggerFailed    Trigger = "generation_failed"
	TriggerRetry     Trigger = "retry"
	TriggerResubmit  Trigger = "resubmit"
)

// Transition describes one applied status change.
type Transition struct {
	ProjectID string
	From      models.ProjectStatus
	To        models.ProjectStatus
	Trigger   Trigger
	Cycle     int
	Reason    string
	At        time.Time
}

// Observer is notified after every applied transition.
type Observer interface {
	OnTransition(Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Transition)

func (f ObserverFunc) OnTransition(t Transition) { f(t) }

// Option customises a Workflow.
type Option func(*Workflow)

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(w *Workflow) { w.observers = append(w.observers, o) }
}

// WithLogger sets the logger used for discarded results. It should already
// carry the projectId.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(w *Workflow) { w.now = fn }
}

// Workflow applies triggers to a project record it does not own exclusively:
// the record may have been loaded from storage, and the workflow resumes
// from whatever status and cycle it carries.
type Workflow struct {
	project   *models.Project
	observers []Observer
	logger    *slog.Logger
	now       func() time.Time
}

// New wraps project. A project with an empty status starts as Draft.
func New(project *models.Project, opts ...Option) *Workflow {
	if project.Status == "" {
		project.Status = models.ProjectDraft
	}
	w := &Workflow{
		project: project,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Status returns the current status.
func (w *Workflow) Status() models.ProjectStatus {
	return w.project.Status
}

// Cycle returns the current generation cycle; it increases on every entry
// into Processing.
func (w *Workflow) Cycle() int {
	return w.project.GenerationCycle
}

// Project returns the underlying record.
func (w *Workflow) Project() *models.Project {
	return w.project
}

// Submit moves a Draft project to Processing once the intake gate holds.
// missing is the gate's report for the submitted document set.
func (w *Workflow) Submit(missing []models.DocumentType) (models.ProjectStatus, error) {
	if err := w.require(TriggerSubmit, models.ProjectDraft); err != nil {
		return w.project.Status, err
	}
	if len(missing) > 0 {
		return w.project.Status, &intake.IntakeError{Missing: missing}
	}
	return w.startCycle(TriggerSubmit), nil
}

// Retry moves an Error project back to Processing with resupplied inputs.
func (w *Workflow) Retry(missing []models.DocumentType) (models.ProjectStatus, error) {
	if err := w.require(TriggerRetry, models.ProjectError); err != nil {
		return w.project.Status, err
	}
	if len(missing) > 0 {
		return w.project.Status, &intake.IntakeError{Missing: missing}
	}
	return w.startCycle(TriggerRetry), nil
}

// Resubmit restarts generation for a Ready project.
func (w *Workflow) Resubmit() (models.ProjectStatus, error) {
	if err := w.require(TriggerResubmit, models.ProjectReady); err != nil {
		return w.project.Status, err
	}
	return w.startCycle(TriggerResubmit), nil
}

// Succeed applies a successful generation result for cycle. The generated
// diagram is validated and appended as the next revision of kind; an invalid
// diagram moves the project to Error instead. The returned artifact is nil
// unless the project became Ready.
func (w *Workflow) Succeed(cycle int, xml string, kind models.ArtifactKind) (models.ProjectStatus, *models.DiagramArtifact, error) {
	return w.SucceedAbove(cycle, xml, kind, 0)
}

// SucceedAbove is Succeed with the new revision numbered above floor as well
// as above every recorded revision. Callers pass the highest revision already
// present in the archive.
func (w *Workflow) SucceedAbove(cycle int, xml string, kind models.ArtifactKind, floor int) (models.ProjectStatus, *models.DiagramArtifact, error) {
	if err := w.acceptResult(cycle, TriggerSucceeded); err != nil {
		return w.project.Status, nil, err
	}
	if kind == "" {
		kind = models.KindAsIs
	}

	res := bpmn.Validate(xml)
	if !res.OK {
		err := res.Err()
		w.finish(models.ProjectError, TriggerSucceeded, "generated diagram is invalid: missing "+strings.Join(res.MissingElements, ", "))
		return w.project.Status, nil, err
	}
	if kind == models.KindToBe && !w.project.HasAsIs() {
		w.finish(models.ProjectError, TriggerSucceeded, "to-be diagram generated before any as-is diagram")
		return w.project.Status, nil, fmt.Errorf("%w: project has no as-is diagram", ErrGenerationFailure)
	}

	revision := max(bpmn.NextRevision(w.project.Artifacts, kind), floor+1)
	artifact, err := bpmn.NewArtifact(kind, revision, xml, "generation", w.now())
	if err != nil {
		w.finish(models.ProjectError, TriggerSucceeded, err.Error())
		return w.project.Status, nil, err
	}
	w.project.Artifacts = append(w.project.Artifacts, artifact)
	w.finish(models.ProjectReady, TriggerSucceeded, "")
	return w.project.Status, &artifact, nil
}

// Fail applies a failed generation result for cycle. The returned error
// wraps ErrGenerationFailure when the failure was recorded.
func (w *Workflow) Fail(cycle int, reason string) (models.ProjectStatus, error) {
	if err := w.acceptResult(cycle, TriggerFailed); err != nil {
		return w.project.Status, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "generation failed without a reason"
	}
	w.finish(models.ProjectError, TriggerFailed, reason)
	return w.project.Status, fmt.Errorf("%w: %s", ErrGenerationFailure, reason)
}

// require guards the triggers that start a generation cycle.
func (w *Workflow) require(trigger Trigger, from models.ProjectStatus) error {
	if w.project.Status != from || !IsTransitionAllowed(from, models.ProjectProcessing) {
		return fmt.Errorf("%w: cannot %s a %s project", ErrInvalidTransition, trigger, w.project.Status)
	}
	return nil
}

// acceptResult allows at most one result per Processing cycle.
func (w *Workflow) acceptResult(cycle int, trigger Trigger) error {
	if w.project.Status == models.ProjectProcessing && cycle == w.project.GenerationCycle {
		return nil
	}
	if w.project.Status == models.ProjectDraft {
		return fmt.Errorf("%w: draft project has not been submitted", ErrInvalidTransition)
	}
	w.logger.Warn("Discarding generation result.",
		"trigger", string(trigger),
		"resultCycle", cycle,
		"currentCycle", w.project.GenerationCycle,
		"status", string(w.project.Status),
	)
	return fmt.Errorf("%w: cycle %d, project is %s in cycle %d", ErrDuplicateResult, cycle, w.project.Status, w.project.GenerationCycle)
}

func (w *Workflow) startCycle(trigger Trigger) models.ProjectStatus {
	w.project.GenerationCycle++
	w.project.ErrorDetails = ""
	w.project.WorkflowExecutionID = ""
	w.apply(models.ProjectProcessing, trigger, "")
	return w.project.Status
}

func (w *Workflow) finish(to models.ProjectStatus, trigger Trigger, reason string) {
	w.project.ErrorDetails = reason
	w.apply(to, trigger, reason)
}

func (w *Workflow) apply(to models.ProjectStatus, trigger Trigger, reason string) {
	t := Transition{
		ProjectID: w.project.ID,
		From:      w.project.Status,
		To:        to,
		Trigger:   trigger,
		Cycle:     w.project.GenerationCycle,
		Reason:    reason,
		At:        w.now().UTC(),
	}
	w.project.Status = to
	w.project.UpdatedAt = t.At
	for _, o := range w.observers {
		o.OnTransition(t)
	}
}
