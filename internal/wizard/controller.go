// Package wizard implements the three-step project creation flow:
// Details, DocumentUpload, Review.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/bpmnprojectflow/internal/intake"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/Lllllllleong/bpmnprojectflow/internal/workflow"
)

// Step is a position in the wizard.
type Step int

const (
	StepDetails Step = iota + 1
	StepDocumentUpload
	StepReview
)

func (s Step) String() string {
	switch s {
	case StepDetails:
		return "details"
	case StepDocumentUpload:
		return "document_upload"
	case StepReview:
		return "review"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

var (
	// ErrNotAtReview rejects Finalize before the Review step.
	ErrNotAtReview = errors.New("wizard is not at the review step")
	// ErrAlreadyFinalized rejects a second Finalize.
	ErrAlreadyFinalized = errors.New("wizard already finalized")
)

// ProjectCreator is the storage operation invoked once at finalize.
type ProjectCreator interface {
	CreateProject(ctx context.Context, details models.ProjectDetails, createdBy string, ready []models.UploadedDocument) (string, error)
}

// Controller holds one wizard session. It is not safe for concurrent use;
// the tracker it reads from is.
type Controller struct {
	registry  *intake.Registry
	tracker   *intake.Tracker
	creator   ProjectCreator
	rules     []Rule
	details   models.ProjectDetails
	createdBy string
	step      Step
	finalized bool
	wfOpts    []workflow.Option
	logger    *slog.Logger
	now       func() time.Time
}

// Option customises a Controller.
type Option func(*Controller)

// WithDetails pre-fills the details form.
func WithDetails(d models.ProjectDetails) Option {
	return func(c *Controller) { c.details = d }
}

// WithCreatedBy records the user creating the project.
func WithCreatedBy(user string) Option {
	return func(c *Controller) { c.createdBy = user }
}

// WithRules replaces DetailsRules.
func WithRules(rules []Rule) Option {
	return func(c *Controller) { c.rules = rules }
}

// WithWorkflowOptions is passed to the workflow built at finalize.
func WithWorkflowOptions(opts ...workflow.Option) Option {
	return func(c *Controller) { c.wfOpts = append(c.wfOpts, opts...) }
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) Option {
	return func(c *Controller) { c.now = fn }
}

// NewController starts a wizard at the Details step.
func NewController(registry *intake.Registry, tracker *intake.Tracker, creator ProjectCreator, opts ...Option) *Controller {
	c := &Controller{
		registry: registry,
		tracker:  tracker,
		creator:  creator,
		rules:    DetailsRules,
		step:     StepDetails,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Step returns the current step.
func (c *Controller) Step() Step {
	return c.step
}

// Details returns the form as entered.
func (c *Controller) Details() models.ProjectDetails {
	return c.details
}

// SetDetails replaces the form. It never validates.
func (c *Controller) SetDetails(d models.ProjectDetails) {
	c.details = d
}

// Missing reports the required document types without a ready upload,
// evaluated against the tracker as it is now.
func (c *Controller) Missing() []models.DocumentType {
	return intake.Missing(c.registry.Requirements(), c.tracker.List())
}

// ValidateStep checks whether step may be left going forward.
func (c *Controller) ValidateStep(step Step) error {
	switch step {
	case StepDetails:
		return ValidateDetails(c.details, c.rules)
	case StepDocumentUpload:
		return intake.Check(c.registry.Requirements(), c.tracker.List())
	case StepReview:
		return nil
	default:
		return fmt.Errorf("unknown wizard step %d", int(step))
	}
}

// Next validates the current step and advances. At Review it stays put.
func (c *Controller) Next() (Step, error) {
	if c.step == StepReview {
		return c.step, nil
	}
	if err := c.ValidateStep(c.step); err != nil {
		return c.step, err
	}
	c.step++
	return c.step, nil
}

// Back moves one step back without validating anything.
func (c *Controller) Back() Step {
	if c.step > StepDetails {
		c.step--
	}
	return c.step
}

// Finalize creates the project from the validated form and the ready
// uploads, then submits it for generation. The returned workflow holds the
// new project in Processing.
func (c *Controller) Finalize(ctx context.Context) (*workflow.Workflow, error) {
	if c.finalized {
		return nil, ErrAlreadyFinalized
	}
	if c.step != StepReview {
		return nil, fmt.Errorf("%w: at %s", ErrNotAtReview, c.step)
	}
	if err := c.ValidateStep(StepDetails); err != nil {
		return nil, err
	}
	// One snapshot feeds both the gate and the documents handed to the creator.
	docs := c.tracker.List()
	if err := intake.Check(c.registry.Requirements(), docs); err != nil {
		return nil, err
	}
	ready := readyDocuments(docs)

	details := NormalizeDetails(c.details)
	projectID, err := c.creator.CreateProject(ctx, details, c.createdBy, ready)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	c.finalized = true

	now := c.now().UTC()
	project := &models.Project{
		ID:          projectID,
		Name:        details.Name,
		ClientAlias: details.ClientAlias,
		Description: details.Description,
		Template:    details.Template,
		Status:      models.ProjectDraft,
		CreatedBy:   c.createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	opts := append([]workflow.Option{workflow.WithLogger(c.logger), workflow.WithClock(c.now)}, c.wfOpts...)
	wf := workflow.New(project, opts...)
	if _, err := wf.Submit(intake.Missing(c.registry.Requirements(), ready)); err != nil {
		return wf, fmt.Errorf("submit project %s: %w", projectID, err)
	}
	c.logger.Info("Project created and submitted.", "projectId", projectID, "readyDocuments", len(ready))
	return wf, nil
}

func readyDocuments(docs []models.UploadedDocument) []models.UploadedDocument {
	var ready []models.UploadedDocument
	for _, doc := range docs {
		if doc.Status == models.UploadReady {
			ready = append(ready, doc)
		}
	}
	return ready
}
