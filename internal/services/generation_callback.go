package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/bpmnprojectflow/internal/bpmn"
	"github.com/Lllllllleong/bpmnprojectflow/internal/gcp"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/Lllllllleong/bpmnprojectflow/internal/store"
	"github.com/Lllllllleong/bpmnprojectflow/internal/workflow"
)

// GenerationCallbackConfig holds configuration for the generation callback service.
type GenerationCallbackConfig struct {
	ProjectID          string `env:"PROJECT_ID,required"`
	ProjectsCollection string `env:"FIRESTORE_PROJECTS_COLLECTION" envDefault:"projects"`
	ArtifactBucket     string `env:"ARTIFACT_BUCKET,required"`
}

// GenerationCallbackFunction applies the result of one generation cycle.
type GenerationCallbackFunction struct {
	projects ProjectRepository
	archive  ArtifactArchiver
	config   GenerationCallbackConfig
	now      func() time.Time
}

// NewGenerationCallback creates a new GenerationCallbackFunction from the environment.
func NewGenerationCallback(ctx context.Context) (*GenerationCallbackFunction, error) {
	var config GenerationCallbackConfig
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
	f := newGenerationCallbackFunction(config,
		store.NewProjectStore(firestoreClient, config.ProjectsCollection),
		store.NewArtifactArchive(storageClient, config.ArtifactBucket),
	)
	slog.Info("Generation callback logic initialized.", "artifactBucket", config.ArtifactBucket)
	return f, nil
}

func newGenerationCallbackFunction(config GenerationCallbackConfig, projects ProjectRepository, archive ArtifactArchiver) *GenerationCallbackFunction {
	return &GenerationCallbackFunction{projects: projects, archive: archive, config: config, now: time.Now}
}

// Process applies req to its project. A result for a cycle that is already
// resolved, or for a cycle that is not current, changes nothing and is
// reported with Applied=false. A recorded failure is not an error.
func (f *GenerationCallbackFunction) Process(ctx context.Context, req *models.GenerationResultRequest) (*models.GenerationResultResponse, error) {
	if req.ProjectID == "" {
		return nil, fmt.Errorf("%w: projectId is required", ErrBadRequest)
	}
	if req.Kind != "" && !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown artifact kind %q", ErrBadRequest, req.Kind)
	}
	logCtx := slog.With("projectId", req.ProjectID, "cycle", req.Cycle, "executionId", req.ExecutionID)
	logCtx.Info("Received generation result.", "success", req.Success)

	// Saved editor revisions live only in the archive, so generated ones are
	// numbered above whatever it already holds.
	archived := 0
	if req.Success {
		kind := req.Kind
		if kind == "" {
			kind = models.KindAsIs
		}
		latest, err := f.archive.LatestRevision(ctx, req.ProjectID, kind)
		if err != nil {
			logCtx.Error("Failed to list archived revisions", "error", err)
			return nil, err
		}
		archived = latest
	}

	var (
		outcome  error
		artifact *models.DiagramArtifact
		applied  bool
	)
	project, err := f.projects.Update(ctx, req.ProjectID, func(p *models.Project) error {
		outcome, artifact, applied = nil, nil, false
		wf := workflow.New(p,
			workflow.WithLogger(logCtx),
			workflow.WithClock(f.now),
			workflow.WithObserver(logTransitions(logCtx)),
		)
		if req.Success {
			_, artifact, outcome = wf.SucceedAbove(req.Cycle, req.XML, req.Kind, archived)
		} else {
			_, outcome = wf.Fail(req.Cycle, req.Reason)
		}
		if errors.Is(outcome, workflow.ErrDuplicateResult) || errors.Is(outcome, workflow.ErrInvalidTransition) {
			return store.ErrNoChange
		}
		applied = true

		if artifact != nil {
			artifact.ObjectName = f.archive.ObjectName(p.ID, artifact.Kind, artifact.Revision)
			p.Artifacts[len(p.Artifacts)-1].ObjectName = artifact.ObjectName
		}
		if req.ExecutionID != "" && p.WorkflowExecutionID == "" {
			p.WorkflowExecutionID = req.ExecutionID
		}
		return nil
	})
	if err != nil {
		logCtx.Error("Failed to apply generation result", "error", err)
		return nil, err
	}

	resp := &models.GenerationResultResponse{
		Status:  "success",
		Project: project.Status,
		Applied: applied,
	}
	if !applied {
		resp.Status = "discarded"
		logCtx.Info("Generation result discarded.", "reason", outcome.Error())
		return resp, nil
	}

	var structural *bpmn.StructuralError
	if errors.As(outcome, &structural) {
		resp.MissingElements = structural.Missing
	}
	if outcome != nil {
		resp.Status = "failed"
		logCtx.Warn("Generation cycle ended in error.", "reason", project.ErrorDetails)
		return resp, nil
	}

	if artifact != nil {
		resp.Revision = artifact.Revision
		// The revision is already recorded on the project with its XML, so an
		// archive failure is logged and not returned.
		uri, err := f.archive.Put(ctx, project.ID, *artifact)
		switch {
		case errors.Is(err, store.ErrRevisionExists):
			logCtx.Warn("Archive object for generated revision already exists.", "revision", artifact.Revision)
			f.detachObject(ctx, logCtx, project.ID, artifact.ID)
		case err != nil:
			logCtx.Error("Failed to archive generated diagram", "error", err, "revision", artifact.Revision)
		default:
			logCtx.Info("Generated diagram archived.", "revision", artifact.Revision, "gcsUri", uri)
		}
	}
	return resp, nil
}

// detachObject clears the artifact's archive reference so the project never
// points at an object holding different XML. The revision keeps its RawXML.
func (f *GenerationCallbackFunction) detachObject(ctx context.Context, logCtx *slog.Logger, projectID, artifactID string) {
	_, err := f.projects.Update(ctx, projectID, func(p *models.Project) error {
		for i := range p.Artifacts {
			if p.Artifacts[i].ID == artifactID && p.Artifacts[i].ObjectName != "" {
				p.Artifacts[i].ObjectName = ""
				return nil
			}
		}
		return store.ErrNoChange
	})
	if err != nil {
		logCtx.Error("CRITICAL: Failed to detach archive object from generated revision.", "error", err, "artifactId", artifactID)
	}
}
