package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/bpmnprojectflow/internal/gcp"
	"github.com/Lllllllleong/bpmnprojectflow/internal/intake"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/Lllllllleong/bpmnprojectflow/internal/store"
)

// IntakeConfig holds configuration for the intake service.
type IntakeConfig struct {
	ProjectID          string        `env:"PROJECT_ID,required"`
	SessionsCollection string        `env:"FIRESTORE_SESSIONS_COLLECTION" envDefault:"intakeSessions"`
	IntakeBucket       string        `env:"INTAKE_BUCKET,required"`
	UploadTimeout      time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"10m"`
}

// IntakeFunction holds dependencies for the upload step of the creation wizard.
type IntakeFunction struct {
	sessions SessionRepository
	registry *intake.Registry
	config   IntakeConfig
	now      func() time.Time
}

// NewIntake creates a new IntakeFunction from the environment.
func NewIntake(ctx context.Context) (*IntakeFunction, error) {
	var config IntakeConfig
	if err := gcp.ParseEnv(&config); err != nil {
		return nil, err
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	f := newIntakeFunction(config, store.NewSessionStore(firestoreClient, config.SessionsCollection), intake.DefaultRegistry())
	slog.Info("Intake logic initialized.", "intakeBucket", config.IntakeBucket)
	return f, nil
}

func newIntakeFunction(config IntakeConfig, sessions SessionRepository, registry *intake.Registry) *IntakeFunction {
	return &IntakeFunction{sessions: sessions, registry: registry, config: config, now: time.Now}
}

// Process applies one intake action and returns the session as it now stands.
func (f *IntakeFunction) Process(ctx context.Context, req *models.IntakeRequest) (*models.IntakeResponse, error) {
	logCtx := slog.With("sessionId", req.SessionID, "action", string(req.Action))

	switch req.Action {
	case models.IntakeOpen:
		session, err := f.sessions.Create(ctx, req.CreatedBy)
		if err != nil {
			logCtx.Error("Failed to open intake session", "error", err)
			return nil, err
		}
		if req.Details != nil {
			session, err = f.sessions.Update(ctx, session.ID, func(s *models.IntakeSession) error {
				s.Details = *req.Details
				s.UpdatedAt = f.now().UTC()
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
		logCtx.Info("Opened intake session.", "newSessionId", session.ID)
		return f.respond(session, nil)

	case models.IntakeStatus:
		if req.SessionID == "" {
			return nil, fmt.Errorf("%w: sessionId is required", ErrBadRequest)
		}
		session, err := f.sessions.Get(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		return f.respond(session, nil)

	case models.IntakeDetails, models.IntakeBegin, models.IntakeFail, models.IntakeRemove:
		if req.SessionID == "" {
			return nil, fmt.Errorf("%w: sessionId is required", ErrBadRequest)
		}
		return f.mutate(ctx, logCtx, req)

	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrBadRequest, req.Action)
	}
}

func (f *IntakeFunction) mutate(ctx context.Context, logCtx *slog.Logger, req *models.IntakeRequest) (*models.IntakeResponse, error) {
	var touched *models.UploadedDocument
	session, err := f.sessions.Update(ctx, req.SessionID, func(s *models.IntakeSession) error {
		touched = nil
		tracker, err := intake.RestoreTracker(f.registry, s.Uploads, s.Removed, intake.WithClock(f.now))
		if err != nil {
			return err
		}
		now := f.now()
		if expired := tracker.ExpireStale(now, f.config.UploadTimeout); len(expired) > 0 {
			logCtx.Warn("Expired stale uploads.", "documentIds", expired)
		}

		switch req.Action {
		case models.IntakeDetails:
			if req.Details == nil {
				return fmt.Errorf("%w: details are required", ErrBadRequest)
			}
			s.Details = *req.Details
		case models.IntakeBegin:
			if strings.TrimSpace(req.Filename) == "" {
				return fmt.Errorf("%w: filename is required", ErrBadRequest)
			}
			doc, err := tracker.BeginUpload(req.Type, req.Filename, req.SizeBytes)
			if err != nil {
				return err
			}
			if err := tracker.SetObjectName(doc.ID, IntakeObjectName(s.ID, doc.ID, req.Filename)); err != nil {
				return err
			}
			doc, _ = tracker.Get(doc.ID)
			touched = &doc
		case models.IntakeFail:
			reason := req.Reason
			if strings.TrimSpace(reason) == "" {
				reason = "upload failed"
			}
			if err := tracker.FailUpload(req.DocumentID, reason); err != nil {
				return err
			}
		case models.IntakeRemove:
			if err := tracker.Remove(req.DocumentID); err != nil {
				return err
			}
		}

		s.Uploads, s.Removed = tracker.Snapshot()
		s.UpdatedAt = now.UTC()
		return nil
	})
	if err != nil {
		if errors.Is(err, intake.ErrStaleID) {
			logCtx.Info("Ignoring action for a removed document.", "documentId", req.DocumentID)
		} else {
			logCtx.Error("Intake action failed", "error", err, "documentId", req.DocumentID)
		}
		return nil, err
	}
	return f.respond(session, touched)
}

func (f *IntakeFunction) respond(session *models.IntakeSession, doc *models.UploadedDocument) (*models.IntakeResponse, error) {
	tracker, err := intake.RestoreTracker(f.registry, session.Uploads, session.Removed)
	if err != nil {
		return nil, err
	}
	reqs := f.registry.Requirements()
	uploads := tracker.List()
	resp := &models.IntakeResponse{
		SessionID:    session.ID,
		Document:     doc,
		Uploads:      uploads,
		Requirements: reqs,
		Missing:      intake.Missing(reqs, uploads),
		Satisfied:    intake.IsSatisfied(reqs, uploads),
		Summary:      tracker.Summary(),
	}
	if doc != nil {
		resp.UploadBucket = f.config.IntakeBucket
	}
	return resp, nil
}
