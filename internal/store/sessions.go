package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/google/uuid"
)

// SessionStore keeps intake sessions in a Firestore collection.
type SessionStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

func NewSessionStore(client *firestore.Client, collection string) *SessionStore {
	return &SessionStore{client: client, collection: collection, now: time.Now}
}

func setSessionID(s *models.IntakeSession, id string) { s.ID = id }

// Create starts an empty session owned by createdBy.
func (s *SessionStore) Create(ctx context.Context, createdBy string) (*models.IntakeSession, error) {
	now := s.now().UTC()
	session := &models.IntakeSession{
		ID:        uuid.NewString(),
		CreatedBy: createdBy,
		Uploads:   []models.UploadedDocument{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.client.Collection(s.collection).Doc(session.ID).Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create intake session: %w", err)
	}
	return session, nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*models.IntakeSession, error) {
	return getDoc(ctx, s.client.Collection(s.collection).Doc(id), setSessionID)
}

// Update applies fn to the session inside a transaction.
func (s *SessionStore) Update(ctx context.Context, id string, fn func(*models.IntakeSession) error) (*models.IntakeSession, error) {
	return updateDoc(ctx, s.client, s.client.Collection(s.collection).Doc(id), setSessionID, fn)
}

// Delete discards a session. Deleting a missing session is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.client.Collection(s.collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete intake session %s: %w", id, err)
	}
	return nil
}
