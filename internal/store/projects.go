package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
)

// ProjectStore keeps project records in a Firestore collection.
type ProjectStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

func NewProjectStore(client *firestore.Client, collection string) *ProjectStore {
	return &ProjectStore{client: client, collection: collection, now: time.Now}
}

func setProjectID(p *models.Project, id string) { p.ID = id }

// CreateProject writes a new Draft project and returns its generated id.
func (s *ProjectStore) CreateProject(ctx context.Context, details models.ProjectDetails, createdBy string, ready []models.UploadedDocument) (string, error) {
	now := s.now().UTC()
	project := models.Project{
		Name:        details.Name,
		ClientAlias: details.ClientAlias,
		Description: details.Description,
		Template:    details.Template,
		Status:      models.ProjectDraft,
		CreatedBy:   createdBy,
		Artifacts:   []models.DiagramArtifact{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	docRef, _, err := s.client.Collection(s.collection).Add(ctx, project)
	if err != nil {
		return "", fmt.Errorf("failed to create project document: %w", err)
	}
	slog.Info("Created project document.", "projectId", docRef.ID, "readyDocuments", len(ready))
	return docRef.ID, nil
}

// Get loads one project.
func (s *ProjectStore) Get(ctx context.Context, id string) (*models.Project, error) {
	return getDoc(ctx, s.client.Collection(s.collection).Doc(id), setProjectID)
}

// Save overwrites a project record.
func (s *ProjectStore) Save(ctx context.Context, p *models.Project) error {
	if p.ID == "" {
		return fmt.Errorf("cannot save a project without an id")
	}
	if _, err := s.client.Collection(s.collection).Doc(p.ID).Set(ctx, p); err != nil {
		return fmt.Errorf("failed to save project %s: %w", p.ID, err)
	}
	return nil
}

// Update applies fn to the project inside a transaction.
func (s *ProjectStore) Update(ctx context.Context, id string, fn func(*models.Project) error) (*models.Project, error) {
	return updateDoc(ctx, s.client, s.client.Collection(s.collection).Doc(id), setProjectID, fn)
}

// AppendArtifact records a new artifact revision on the project. A revision
// already present for the same kind yields ErrRevisionConflict.
func (s *ProjectStore) AppendArtifact(ctx context.Context, id string, artifact models.DiagramArtifact) (*models.Project, error) {
	return s.Update(ctx, id, func(p *models.Project) error {
		return appendArtifact(p, artifact, s.now().UTC())
	})
}

func appendArtifact(p *models.Project, artifact models.DiagramArtifact, now time.Time) error {
	for _, existing := range p.Artifacts {
		if existing.Kind == artifact.Kind && existing.Revision == artifact.Revision {
			return fmt.Errorf("%w: %s revision %d on project %s", ErrRevisionConflict, artifact.Kind, artifact.Revision, p.ID)
		}
	}
	p.Artifacts = append(p.Artifacts, artifact)
	p.UpdatedAt = now
	return nil
}
