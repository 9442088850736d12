package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/bpmnprojectflow/internal/gcp"
	"github.com/Lllllllleong/bpmnprojectflow/internal/intake"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/Lllllllleong/bpmnprojectflow/internal/store"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// UploadFinalizerConfig holds configuration for the upload finalizer service.
type UploadFinalizerConfig struct {
	ProjectID          string `env:"PROJECT_ID,required"`
	SessionsCollection string `env:"FIRESTORE_SESSIONS_COLLECTION" envDefault:"intakeSessions"`
	MaxPDFBytes        int64  `env:"MAX_PDF_BYTES" envDefault:"52428800"`
}

// UploadFinalizerFunction completes uploads when their bytes land in the intake bucket.
type UploadFinalizerFunction struct {
	sessions SessionRepository
	objects  ObjectReader
	registry *intake.Registry
	config   UploadFinalizerConfig
	now      func() time.Time
}

// NewUploadFinalizer creates a new UploadFinalizerFunction from the environment.
func NewUploadFinalizer(ctx context.Context) (*UploadFinalizerFunction, error) {
	var config UploadFinalizerConfig
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
	f := newUploadFinalizerFunction(config,
		store.NewSessionStore(firestoreClient, config.SessionsCollection),
		gcp.NewObjectStore(storageClient),
		intake.DefaultRegistry(),
	)
	slog.Info("Upload finalizer logic initialized.")
	return f, nil
}

func newUploadFinalizerFunction(config UploadFinalizerConfig, sessions SessionRepository, objects ObjectReader, registry *intake.Registry) *UploadFinalizerFunction {
	return &UploadFinalizerFunction{
		sessions: sessions,
		objects:  objects,
		registry: registry,
		config:   config,
		now:      time.Now,
	}
}

// Process handles one GCS object finalize event. Signals for documents that
// were removed, or for sessions already discarded, are dropped.
func (f *UploadFinalizerFunction) Process(ctx context.Context, e models.GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)

	sessionID, documentID, ok := ParseIntakeObjectName(e.Name)
	if !ok {
		logCtx.Info("Ignoring object outside the intake layout.")
		return nil
	}
	logCtx = logCtx.With("sessionId", sessionID, "documentId", documentID)
	logCtx.Info("Processing uploaded document.")

	pageCount, rejectReason, err := f.inspect(ctx, e)
	if err != nil {
		logCtx.Error("Failed to read uploaded document", "error", err)
		return err
	}

	_, err = f.sessions.Update(ctx, sessionID, func(s *models.IntakeSession) error {
		tracker, err := intake.RestoreTracker(f.registry, s.Uploads, s.Removed)
		if err != nil {
			return err
		}
		if rejectReason != "" {
			err = tracker.FailUpload(documentID, rejectReason)
		} else {
			err = tracker.CompleteUpload(documentID)
			if err == nil && pageCount > 0 {
				err = tracker.SetPageCount(documentID, pageCount)
			}
		}
		if err != nil {
			return err
		}
		s.Uploads, s.Removed = tracker.Snapshot()
		s.UpdatedAt = f.now().UTC()
		return nil
	})

	switch {
	case err == nil:
		if rejectReason != "" {
			logCtx.Warn("Upload rejected.", "reason", rejectReason)
		} else {
			logCtx.Info("Upload completed.", "pageCount", pageCount)
		}
		return nil
	case errors.Is(err, intake.ErrStaleID), errors.Is(err, intake.ErrUnknownID):
		logCtx.Info("Discarding completion for a document no longer in the session.", "reason", err.Error())
		return nil
	case errors.Is(err, intake.ErrInvalidTransition):
		logCtx.Warn("Discarding completion for a document already resolved.", "reason", err.Error())
		return nil
	case errors.Is(err, store.ErrNotFound):
		logCtx.Info("Discarding completion for a closed session.")
		return nil
	default:
		logCtx.Error("Failed to record upload completion", "error", err)
		return err
	}
}

// inspect checks PDFs with pdfcpu. A document pdfcpu cannot read is rejected
// with a reason; other types are accepted as-is.
func (f *UploadFinalizerFunction) inspect(ctx context.Context, e models.GCSEvent) (int, string, error) {
	if !strings.HasSuffix(strings.ToLower(e.Name), ".pdf") {
		return 0, "", nil
	}
	data, err := f.objects.ReadObject(ctx, e.Bucket, e.Name, f.config.MaxPDFBytes)
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return 0, "uploaded file is no longer in storage", nil
		}
		if errors.Is(err, gcp.ErrObjectTooLarge) {
			return 0, fmt.Sprintf("PDF exceeds %d bytes", f.config.MaxPDFBytes), nil
		}
		return 0, "", err
	}
	pageCount, err := pdfPageCount(data)
	if err != nil {
		return 0, fmt.Sprintf("file is not a readable PDF: %v", err), nil
	}
	if pageCount == 0 {
		return 0, "PDF has no pages", nil
	}
	return pageCount, "", nil
}

func pdfPageCount(data []byte) (int, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.PageCount(bytes.NewReader(data), cfg)
}
