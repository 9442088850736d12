package services

import (
	"context"
	"log/slog"

	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/Lllllllleong/bpmnprojectflow/internal/wizard"
	"github.com/Lllllllleong/bpmnprojectflow/internal/workflow"
)

// ProjectRepository is the project storage used by the functions.
// store.ProjectStore implements it.
type ProjectRepository interface {
	wizard.ProjectCreator
	Get(ctx context.Context, id string) (*models.Project, error)
	Save(ctx context.Context, p *models.Project) error
	Update(ctx context.Context, id string, fn func(*models.Project) error) (*models.Project, error)
	AppendArtifact(ctx context.Context, id string, artifact models.DiagramArtifact) (*models.Project, error)
}

// SessionRepository is the intake session storage. store.SessionStore implements it.
type SessionRepository interface {
	Create(ctx context.Context, createdBy string) (*models.IntakeSession, error)
	Get(ctx context.Context, id string) (*models.IntakeSession, error)
	Update(ctx context.Context, id string, fn func(*models.IntakeSession) error) (*models.IntakeSession, error)
	Delete(ctx context.Context, id string) error
}

// ArtifactArchiver writes diagram revisions to write-once objects.
type ArtifactArchiver interface {
	ObjectName(projectID string, kind models.ArtifactKind, revision int) string
	Put(ctx context.Context, projectID string, artifact models.DiagramArtifact) (string, error)
	LatestRevision(ctx context.Context, projectID string, kind models.ArtifactKind) (int, error)
}

// GenerationLauncher starts the external generation workflow.
type GenerationLauncher interface {
	Launch(ctx context.Context, payload models.GenerationLaunchPayload) (string, error)
}

// ObjectReader reads uploaded documents from Cloud Storage.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, name string, limit int64) ([]byte, error)
	ObjectSize(ctx context.Context, bucket, name string) (int64, error)
}

// logTransitions logs every applied project status change. logCtx is
// expected to carry the projectId already.
func logTransitions(logCtx *slog.Logger) workflow.Observer {
	return workflow.ObserverFunc(func(t workflow.Transition) {
		logCtx.Info("Project status changed.",
			"from", string(t.From),
			"to", string(t.To),
			"trigger", string(t.Trigger),
			"cycle", t.Cycle,
			"reason", t.Reason,
		)
	})
}
