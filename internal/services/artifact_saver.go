package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/bpmnprojectflow/internal/bpmn"
	"github.com/Lllllllleong/bpmnprojectflow/internal/gcp"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/Lllllllleong/bpmnprojectflow/internal/store"
)

const maxRevisionAttempts = 5

// ArtifactSaverConfig holds configuration for the artifact saver service.
type ArtifactSaverConfig struct {
	ProjectID          string `env:"PROJECT_ID,required"`
	ProjectsCollection string `env:"FIRESTORE_PROJECTS_COLLECTION" envDefault:"projects"`
	ArtifactBucket     string `env:"ARTIFACT_BUCKET,required"`
}

// ArtifactSaverFunction stores diagrams saved from the editor as new revisions.
type ArtifactSaverFunction struct {
	projects ProjectRepository
	archive  ArtifactArchiver
	config   ArtifactSaverConfig
	now      func() time.Time
}

// NewArtifactSaver creates a new ArtifactSaverFunction from the environment.
func NewArtifactSaver(ctx context.Context) (*ArtifactSaverFunction, error) {
	var config ArtifactSaverConfig
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
	f := newArtifactSaverFunction(config,
		store.NewProjectStore(firestoreClient, config.ProjectsCollection),
		store.NewArtifactArchive(storageClient, config.ArtifactBucket),
	)
	slog.Info("Artifact saver logic initialized.", "artifactBucket", config.ArtifactBucket)
	return f, nil
}

func newArtifactSaverFunction(config ArtifactSaverConfig, projects ProjectRepository, archive ArtifactArchiver) *ArtifactSaverFunction {
	return &ArtifactSaverFunction{projects: projects, archive: archive, config: config, now: time.Now}
}

// Process validates req.XML and persists it as the next revision of its kind.
// An invalid diagram is rejected with the missing elements and nothing is
// stored. Revisions never repeat: the archive object is written once, and a
// revision taken by a concurrent save moves this one to the next number.
func (f *ArtifactSaverFunction) Process(ctx context.Context, req *models.SaveArtifactRequest) (*models.SaveArtifactResponse, error) {
	if req.ProjectID == "" {
		return nil, fmt.Errorf("%w: projectId is required", ErrBadRequest)
	}
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown artifact kind %q", ErrBadRequest, req.Kind)
	}
	logCtx := slog.With("projectId", req.ProjectID, "kind", string(req.Kind))

	modeler := bpmn.NewModeler()
	res, err := modeler.Import(req.XML)
	if err != nil {
		logCtx.Warn("Rejected diagram.", "missingElements", res.MissingElements, "error", err)
		return &models.SaveArtifactResponse{Status: "invalid", MissingElements: res.MissingElements}, err
	}
	formatted, err := modeler.Export()
	if err != nil {
		return nil, err
	}

	project, err := f.projects.Get(ctx, req.ProjectID)
	if err != nil {
		logCtx.Error("Failed to load project", "error", err)
		return nil, err
	}
	if req.Kind == models.KindToBe && !project.HasAsIs() {
		return nil, fmt.Errorf("%w: project %s has no as-is diagram yet", ErrBadRequest, project.ID)
	}
	archived, err := f.archive.LatestRevision(ctx, project.ID, req.Kind)
	if err != nil {
		logCtx.Error("Failed to list archived revisions", "error", err)
		return nil, err
	}
	revision := max(bpmn.NextRevision(project.Artifacts, req.Kind), archived+1)

	createdBy := strings.TrimSpace(req.CreatedBy)
	if createdBy == "" {
		createdBy = project.CreatedBy
	}

	for attempt := 0; attempt < maxRevisionAttempts; attempt++ {
		artifact, err := bpmn.NewArtifact(req.Kind, revision, formatted, createdBy, f.now())
		if err != nil {
			return nil, err
		}
		artifact.ObjectName = f.archive.ObjectName(project.ID, req.Kind, revision)

		uri, err := f.archive.Put(ctx, project.ID, artifact)
		if errors.Is(err, store.ErrRevisionExists) {
			logCtx.Info("Revision already taken, trying the next one.", "revision", revision)
			revision++
			continue
		}
		if err != nil {
			logCtx.Error("Failed to archive diagram", "error", err, "revision", revision)
			return nil, err
		}

		if _, err := f.projects.AppendArtifact(ctx, project.ID, artifact); err != nil {
			logCtx.Error("Failed to record diagram revision", "error", err, "revision", revision)
			return nil, err
		}
		logCtx.Info("Diagram revision saved.", "revision", revision, "gcsUri", uri)
		return &models.SaveArtifactResponse{Status: "success", Revision: revision, ObjectURI: uri}, nil
	}
	return nil, fmt.Errorf("%w: no free revision for %s after %d attempts", store.ErrRevisionConflict, req.Kind, maxRevisionAttempts)
}
