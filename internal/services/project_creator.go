package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/bpmnprojectflow/internal/gcp"
	"github.com/Lllllllleong/bpmnprojectflow/internal/intake"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/Lllllllleong/bpmnprojectflow/internal/store"
	"github.com/Lllllllleong/bpmnprojectflow/internal/wizard"
	"github.com/Lllllllleong/bpmnprojectflow/internal/workflow"
	"golang.org/x/sync/errgroup"
)

// ProjectCreatorConfig holds configuration for the project creator service.
type ProjectCreatorConfig struct {
	ProjectID          string        `env:"PROJECT_ID,required"`
	ProjectsCollection string        `env:"FIRESTORE_PROJECTS_COLLECTION" envDefault:"projects"`
	SessionsCollection string        `env:"FIRESTORE_SESSIONS_COLLECTION" envDefault:"intakeSessions"`
	IntakeBucket       string        `env:"INTAKE_BUCKET,required"`
	WorkflowLocation   string        `env:"WORKFLOW_LOCATION" envDefault:"us-central1"`
	WorkflowID         string        `env:"WORKFLOW_ID" envDefault:"bpmn-generation-orchestrator"`
	UploadTimeout      time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"10m"`
	VerifyConcurrency  int           `env:"VERIFY_CONCURRENCY" envDefault:"10"`
	FinalizeLease      time.Duration `env:"FINALIZE_LEASE" envDefault:"5m"`
}

// ProjectCreatorFunction finalizes an intake session: it creates the project
// (or reopens an existing one) and hands it to the generation workflow.
type ProjectCreatorFunction struct {
	projects ProjectRepository
	sessions SessionRepository
	objects  ObjectReader
	launcher GenerationLauncher
	registry *intake.Registry
	config   ProjectCreatorConfig
	now      func() time.Time
}

// NewProjectCreator creates a new ProjectCreatorFunction from the environment.
func NewProjectCreator(ctx context.Context) (*ProjectCreatorFunction, error) {
	var config ProjectCreatorConfig
	if err := gcp.ParseEnv(&config); err != nil {
		return nil, err
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	launcher, err := gcp.NewExecutionLauncher(ctx, config.ProjectID, config.WorkflowLocation, config.WorkflowID)
	if err != nil {
		return nil, err
	}
	f := newProjectCreatorFunction(config,
		store.NewProjectStore(firestoreClient, config.ProjectsCollection),
		store.NewSessionStore(firestoreClient, config.SessionsCollection),
		gcp.NewObjectStore(storageClient),
		launcher,
		intake.DefaultRegistry(),
	)
	slog.Info("Project creator logic initialized.", "workflowId", config.WorkflowID)
	return f, nil
}

func newProjectCreatorFunction(config ProjectCreatorConfig, projects ProjectRepository, sessions SessionRepository, objects ObjectReader, launcher GenerationLauncher, registry *intake.Registry) *ProjectCreatorFunction {
	if config.VerifyConcurrency <= 0 {
		config.VerifyConcurrency = 10
	}
	if config.FinalizeLease <= 0 {
		config.FinalizeLease = 5 * time.Minute
	}
	return &ProjectCreatorFunction{
		projects: projects,
		sessions: sessions,
		objects:  objects,
		launcher: launcher,
		registry: registry,
		config:   config,
		now:      time.Now,
	}
}

// Process finalizes the session named in req. With no ProjectID a new project
// is created through the wizard; otherwise the session's documents retry an
// Error project or re-generate a Ready one. The session is claimed in a
// transaction first, so overlapping calls for one session create at most one
// project; the loser gets wizard.ErrAlreadyFinalized.
func (f *ProjectCreatorFunction) Process(ctx context.Context, req *models.CreateProjectRequest) (*models.CreateProjectResponse, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("%w: sessionId is required", ErrBadRequest)
	}
	logCtx := slog.With("sessionId", req.SessionID)
	if req.ProjectID != "" {
		logCtx = logCtx.With("projectId", req.ProjectID)
	}
	logCtx.Info("Finalizing intake session.")

	session, err := f.claim(ctx, req)
	if err != nil {
		if errors.Is(err, wizard.ErrAlreadyFinalized) {
			logCtx.Warn("Intake session already claimed.", "reason", err.Error())
		} else {
			logCtx.Error("Failed to claim intake session", "error", err)
		}
		return nil, err
	}

	resp, err := f.finalize(ctx, logCtx, req, session)
	if err != nil {
		projectID := ""
		if resp != nil {
			projectID = resp.ProjectID
		}
		f.release(ctx, logCtx, session.ID, projectID)
		return resp, err
	}

	if err := f.sessions.Delete(ctx, session.ID); err != nil {
		logCtx.Warn("Failed to discard intake session.", "error", err)
		f.release(ctx, logCtx, session.ID, resp.ProjectID)
	}
	return resp, nil
}

// claim marks the session as being finalized. A session that already produced
// a project can only be finalized again for that same project.
func (f *ProjectCreatorFunction) claim(ctx context.Context, req *models.CreateProjectRequest) (*models.IntakeSession, error) {
	now := f.now().UTC()
	return f.sessions.Update(ctx, req.SessionID, func(s *models.IntakeSession) error {
		if s.ProjectID != "" && s.ProjectID != req.ProjectID {
			return fmt.Errorf("%w: session %s already created project %s", wizard.ErrAlreadyFinalized, s.ID, s.ProjectID)
		}
		if s.Finalizing && now.Sub(s.ClaimedAt) < f.config.FinalizeLease {
			return fmt.Errorf("%w: session %s is being finalized", wizard.ErrAlreadyFinalized, s.ID)
		}
		s.Finalizing = true
		s.ClaimedAt = now
		s.UpdatedAt = now
		return nil
	})
}

// release drops the claim, recording the project the session produced if any.
func (f *ProjectCreatorFunction) release(ctx context.Context, logCtx *slog.Logger, sessionID, projectID string) {
	_, err := f.sessions.Update(ctx, sessionID, func(s *models.IntakeSession) error {
		s.Finalizing = false
		s.ClaimedAt = time.Time{}
		if projectID != "" {
			s.ProjectID = projectID
		}
		s.UpdatedAt = f.now().UTC()
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		logCtx.Error("CRITICAL: Failed to release intake session claim.", "error", err)
	}
}

func (f *ProjectCreatorFunction) finalize(ctx context.Context, logCtx *slog.Logger, req *models.CreateProjectRequest, session *models.IntakeSession) (*models.CreateProjectResponse, error) {
	tracker, err := intake.RestoreTracker(f.registry, session.Uploads, session.Removed)
	if err != nil {
		return nil, err
	}
	if expired := tracker.ExpireStale(f.now(), f.config.UploadTimeout); len(expired) > 0 {
		logCtx.Warn("Expired stale uploads before finalize.", "documentIds", expired)
	}
	if err := f.verifyReadyDocuments(ctx, logCtx, tracker.Ready()); err != nil {
		return nil, err
	}

	if req.ProjectID == "" {
		return f.create(ctx, logCtx, session, tracker)
	}
	return f.regenerate(ctx, logCtx, req.ProjectID, tracker)
}

// verifyReadyDocuments checks concurrently that every ready upload's bytes
// are present in the intake bucket.
func (f *ProjectCreatorFunction) verifyReadyDocuments(ctx context.Context, logCtx *slog.Logger, ready []models.UploadedDocument) error {
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(f.config.VerifyConcurrency)

	var mu sync.Mutex
	var missing []string
	for _, doc := range ready {
		eg.Go(func() error {
			if doc.ObjectName == "" {
				return fmt.Errorf("%w: document %s has no object name", ErrDocumentMissing, doc.ID)
			}
			if _, err := f.objects.ObjectSize(gctx, f.config.IntakeBucket, doc.ObjectName); err != nil {
				if errors.Is(err, gcp.ErrObjectNotFound) {
					mu.Lock()
					missing = append(missing, doc.ID)
					mu.Unlock()
					return nil
				}
				return fmt.Errorf("document %s: %w", doc.ID, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logCtx.Error("Failed to verify uploaded documents", "error", err)
		return err
	}
	if len(missing) > 0 {
		logCtx.Warn("Ready documents are missing from storage.", "documentIds", missing)
		return fmt.Errorf("%w: %s", ErrDocumentMissing, strings.Join(missing, ", "))
	}
	return nil
}

func (f *ProjectCreatorFunction) create(ctx context.Context, logCtx *slog.Logger, session *models.IntakeSession, tracker *intake.Tracker) (*models.CreateProjectResponse, error) {
	ctrl := wizard.NewController(f.registry, tracker, f.projects,
		wizard.WithDetails(session.Details),
		wizard.WithCreatedBy(session.CreatedBy),
		wizard.WithLogger(logCtx),
		wizard.WithClock(f.now),
		// The project id is only known once the wizard creates the project.
		wizard.WithWorkflowOptions(workflow.WithObserver(workflow.ObserverFunc(func(t workflow.Transition) {
			logTransitions(logCtx.With("projectId", t.ProjectID)).OnTransition(t)
		}))),
	)
	for ctrl.Step() != wizard.StepReview {
		if _, err := ctrl.Next(); err != nil {
			logCtx.Warn("Intake session is not ready to finalize.", "step", ctrl.Step().String(), "error", err)
			return nil, err
		}
	}

	wf, err := ctrl.Finalize(ctx)
	if err != nil {
		logCtx.Error("Failed to finalize project", "error", err)
		return nil, err
	}
	project := wf.Project()
	logCtx = logCtx.With("projectId", project.ID)

	execID, launchErr := f.launch(ctx, project, wf.Cycle(), tracker.Ready())
	if launchErr != nil {
		return f.handleLaunchError(ctx, logCtx, wf, launchErr)
	}
	project.WorkflowExecutionID = execID
	if err := f.projects.Save(ctx, project); err != nil {
		logCtx.Error("CRITICAL: Failed to persist submitted project.", "error", err)
		return nil, fmt.Errorf("failed to save project %s: %w", project.ID, err)
	}
	logCtx.Info("Hand-off to generation workflow complete.", "executionId", execID)
	return f.response(project), nil
}

func (f *ProjectCreatorFunction) regenerate(ctx context.Context, logCtx *slog.Logger, projectID string, tracker *intake.Tracker) (*models.CreateProjectResponse, error) {
	missing := intake.Missing(f.registry.Requirements(), tracker.List())
	opts := []workflow.Option{
		workflow.WithLogger(logCtx),
		workflow.WithClock(f.now),
		workflow.WithObserver(logTransitions(logCtx)),
	}

	project, err := f.projects.Update(ctx, projectID, func(p *models.Project) error {
		wf := workflow.New(p, opts...)
		var err error
		if p.Status == models.ProjectError {
			_, err = wf.Retry(missing)
		} else {
			_, err = wf.Resubmit()
		}
		return err
	})
	if err != nil {
		logCtx.Warn("Project cannot be regenerated.", "error", err)
		return nil, err
	}
	cycle := project.GenerationCycle

	execID, launchErr := f.launch(ctx, project, cycle, tracker.Ready())
	project, err = f.projects.Update(ctx, projectID, func(p *models.Project) error {
		if !workflow.AwaitsExternalResult(p.Status) || p.GenerationCycle != cycle {
			return store.ErrNoChange
		}
		if launchErr != nil {
			_, _ = workflow.New(p, opts...).Fail(cycle, "failed to trigger workflow execution: "+launchErr.Error())
			return nil
		}
		p.WorkflowExecutionID = execID
		return nil
	})
	if err != nil {
		logCtx.Error("CRITICAL: Failed to record generation hand-off.", "error", err)
		return nil, err
	}
	if launchErr != nil {
		logCtx.Error("failed to trigger workflow execution", "error", launchErr)
		return f.response(project), fmt.Errorf("failed to trigger workflow execution: %w", launchErr)
	}
	logCtx.Info("Hand-off to generation workflow complete.", "executionId", execID, "cycle", cycle)
	return f.response(project), nil
}

func (f *ProjectCreatorFunction) launch(ctx context.Context, project *models.Project, cycle int, ready []models.UploadedDocument) (string, error) {
	uris := make([]string, 0, len(ready))
	for _, doc := range ready {
		uris = append(uris, gcp.URI(f.config.IntakeBucket, doc.ObjectName))
	}
	return f.launcher.Launch(ctx, models.GenerationLaunchPayload{
		ProjectID:   project.ID,
		Cycle:       cycle,
		Template:    string(project.Template),
		DocumentURI: uris,
	})
}

// handleLaunchError records the failed hand-off on the project, the way a
// generation failure would be, and returns the wrapped error.
func (f *ProjectCreatorFunction) handleLaunchError(ctx context.Context, logCtx *slog.Logger, wf *workflow.Workflow, launchErr error) (*models.CreateProjectResponse, error) {
	message := "failed to trigger workflow execution"
	logCtx.Error(message, "error", launchErr)
	_, _ = wf.Fail(wf.Cycle(), fmt.Sprintf("%s: %v", message, launchErr))
	if err := f.projects.Save(ctx, wf.Project()); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to error after a processing error.", "updateError", err)
	}
	return f.response(wf.Project()), fmt.Errorf("%s: %w", message, launchErr)
}

func (f *ProjectCreatorFunction) response(p *models.Project) *models.CreateProjectResponse {
	status := "success"
	if p.Status == models.ProjectError {
		status = "failed"
	}
	return &models.CreateProjectResponse{
		Status:      status,
		ProjectID:   p.ID,
		Project:     p.Status,
		Cycle:       p.GenerationCycle,
		ExecutionID: p.WorkflowExecutionID,
	}
}
