package intake

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/google/uuid"
)

// Tracker follows the lifecycle of every file submitted during one intake
// session. Status changes are keyed by document id only; a document that
// has been removed never comes back, whatever signal arrives for it later.
type Tracker struct {
	mu       sync.Mutex
	registry *Registry
	docs     map[string]*models.UploadedDocument
	order    []string
	removed  map[string]struct{}
	newID    func() string
	now      func() time.Time
}

// TrackerOption customises a Tracker.
type TrackerOption func(*Tracker)

// WithIDGenerator replaces the uuid-based id generator.
func WithIDGenerator(fn func() string) TrackerOption {
	return func(t *Tracker) { t.newID = fn }
}

// WithClock replaces time.Now.
func WithClock(fn func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = fn }
}

// NewTracker returns an empty tracker validating types against registry.
func NewTracker(registry *Registry, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		registry: registry,
		docs:     make(map[string]*models.UploadedDocument),
		removed:  make(map[string]struct{}),
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RestoreTracker rebuilds a tracker from a snapshot taken with Snapshot.
func RestoreTracker(registry *Registry, docs []models.UploadedDocument, removed []string, opts ...TrackerOption) (*Tracker, error) {
	t := NewTracker(registry, opts...)
	for _, id := range removed {
		t.removed[id] = struct{}{}
	}
	for _, d := range docs {
		if _, ok := registry.Lookup(d.Type); !ok {
			return nil, fmt.Errorf("%w: %q on document %s", ErrInvalidType, d.Type, d.ID)
		}
		if _, dup := t.docs[d.ID]; dup {
			return nil, fmt.Errorf("duplicate document id %s in snapshot", d.ID)
		}
		if _, gone := t.removed[d.ID]; gone {
			continue
		}
		doc := d
		t.docs[doc.ID] = &doc
		t.order = append(t.order, doc.ID)
	}
	return t, nil
}

// BeginUpload registers a new file in the Uploading state.
func (t *Tracker) BeginUpload(docType models.DocumentType, filename string, sizeBytes int64) (models.UploadedDocument, error) {
	if _, ok := t.registry.Lookup(docType); !ok {
		return models.UploadedDocument{}, fmt.Errorf("%w: %q", ErrInvalidType, docType)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	doc := &models.UploadedDocument{
		ID:        t.newID(),
		Type:      docType,
		Filename:  filename,
		SizeBytes: sizeBytes,
		Status:    models.UploadUploading,
		CreatedAt: t.now(),
	}
	t.docs[doc.ID] = doc
	t.order = append(t.order, doc.ID)
	return *doc, nil
}

// CompleteUpload moves a document from Uploading to Ready. A removed id
// yields ErrStaleID and changes nothing.
func (t *Tracker) CompleteUpload(id string) error {
	return t.transition(id, models.UploadReady, "")
}

// FailUpload moves a document from Uploading to Error with a reason.
func (t *Tracker) FailUpload(id, reason string) error {
	return t.transition(id, models.UploadError, reason)
}

func (t *Tracker) transition(id string, to models.UploadStatus, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	doc, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	switch doc.Status {
	case models.UploadUploading:
		doc.Status = to
		doc.ErrorReason = reason
		return nil
	case to:
		// Repeated delivery of the same signal.
		return nil
	default:
		return fmt.Errorf("%w: document %s is %s, cannot become %s", ErrInvalidTransition, id, doc.Status, to)
	}
}

// Remove deletes a document whatever its status. Any later signal for the
// id is reported as stale.
func (t *Tracker) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.lookupLocked(id); err != nil {
		return err
	}
	delete(t.docs, id)
	t.removed[id] = struct{}{}
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetObjectName records where the document's bytes are stored.
func (t *Tracker) SetObjectName(id, objectName string) error {
	return t.update(id, func(d *models.UploadedDocument) { d.ObjectName = objectName })
}

// SetPageCount records the page count of a PDF document.
func (t *Tracker) SetPageCount(id string, pages int) error {
	return t.update(id, func(d *models.UploadedDocument) { d.PageCount = pages })
}

func (t *Tracker) update(id string, fn func(*models.UploadedDocument)) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	doc, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	fn(doc)
	return nil
}

func (t *Tracker) lookupLocked(id string) (*models.UploadedDocument, error) {
	if doc, ok := t.docs[id]; ok {
		return doc, nil
	}
	if _, gone := t.removed[id]; gone {
		return nil, fmt.Errorf("%w: %s", ErrStaleID, id)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownID, id)
}

// Get returns a copy of one document.
func (t *Tracker) Get(id string) (models.UploadedDocument, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	doc, ok := t.docs[id]
	if !ok {
		return models.UploadedDocument{}, false
	}
	return *doc, true
}

// List returns the documents in the order they were begun, optionally
// restricted to the given types.
func (t *Tracker) List(types ...models.DocumentType) []models.UploadedDocument {
	t.mu.Lock()
	defer t.mu.Unlock()

	want := make(map[models.DocumentType]bool, len(types))
	for _, dt := range types {
		want[dt] = true
	}
	out := make([]models.UploadedDocument, 0, len(t.order))
	for _, id := range t.order {
		doc := t.docs[id]
		if len(want) > 0 && !want[doc.Type] {
			continue
		}
		out = append(out, *doc)
	}
	return out
}

// Ready returns the documents whose upload has completed.
func (t *Tracker) Ready() []models.UploadedDocument {
	var out []models.UploadedDocument
	for _, doc := range t.List() {
		if doc.Status == models.UploadReady {
			out = append(out, doc)
		}
	}
	return out
}

// Summary counts documents the way the upload step displays them.
func (t *Tracker) Summary() models.UploadSummary {
	docs := t.List()
	s := models.UploadSummary{
		Total:         len(docs),
		RequiredTotal: len(t.registry.RequiredTypes()),
	}
	for _, doc := range docs {
		if doc.Status != models.UploadReady {
			continue
		}
		s.Ready++
		if req, ok := t.registry.Lookup(doc.Type); ok && req.Required {
			s.RequiredReady++
		}
	}
	return s
}

// ExpireStale fails every document still Uploading after timeout and
// returns their ids.
func (t *Tracker) ExpireStale(now time.Time, timeout time.Duration) []string {
	if timeout <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []string
	for _, id := range t.order {
		doc := t.docs[id]
		if doc.Status == models.UploadUploading && now.Sub(doc.CreatedAt) > timeout {
			doc.Status = models.UploadError
			doc.ErrorReason = fmt.Sprintf("upload did not complete within %s", timeout)
			expired = append(expired, id)
		}
	}
	return expired
}

// Snapshot returns the live documents and the ids removed so far.
func (t *Tracker) Snapshot() ([]models.UploadedDocument, []string) {
	docs := t.List()

	t.mu.Lock()
	defer t.mu.Unlock()
	removed := make([]string, 0, len(t.removed))
	for id := range t.removed {
		removed = append(removed, id)
	}
	sort.Strings(removed)
	return docs, removed
}
