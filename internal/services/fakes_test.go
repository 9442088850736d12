package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Lllllllleong/bpmnprojectflow/internal/gcp"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/Lllllllleong/bpmnprojectflow/internal/store"
	"github.com/stretchr/testify/assert"
)

const validDiagram = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="Definitions_1">
  <bpmn:process id="Process_1" isExecutable="true">
    <bpmn:startEvent id="StartEvent_1" />
    <bpmn:task id="Task_1" name="Qualify lead" />
    <bpmn:endEvent id="EndEvent_1" />
  </bpmn:process>
</bpmn:definitions>`

var fixedNow = time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func cloneProject(p *models.Project) *models.Project {
	out := *p
	out.Artifacts = append([]models.DiagramArtifact(nil), p.Artifacts...)
	return &out
}

type fakeProjects struct {
	mu        sync.Mutex
	projects  map[string]*models.Project
	nextID    int
	createErr error
	saveErr   error
}

func newFakeProjects() *fakeProjects {
	return &fakeProjects{projects: make(map[string]*models.Project)}
}

func (f *fakeProjects) CreateProject(_ context.Context, details models.ProjectDetails, createdBy string, _ []models.UploadedDocument) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("proj-%d", f.nextID)
	f.projects[id] = &models.Project{
		ID:          id,
		Name:        details.Name,
		ClientAlias: details.ClientAlias,
		Description: details.Description,
		Template:    details.Template,
		Status:      models.ProjectDraft,
		CreatedBy:   createdBy,
		CreatedAt:   fixedNow,
		UpdatedAt:   fixedNow,
	}
	return id, nil
}

func (f *fakeProjects) put(p *models.Project) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[p.ID] = cloneProject(p)
}

func (f *fakeProjects) Get(_ context.Context, id string) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: projects/%s", store.ErrNotFound, id)
	}
	return cloneProject(p), nil
}

func (f *fakeProjects) Save(_ context.Context, p *models.Project) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.put(p)
	return nil
}

func (f *fakeProjects) Update(_ context.Context, id string, fn func(*models.Project) error) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, fmt.Errorf("%w: projects/%s", store.ErrNotFound, id)
	}
	current := cloneProject(p)
	if err := fn(current); err != nil {
		if errors.Is(err, store.ErrNoChange) {
			return cloneProject(p), nil
		}
		return nil, err
	}
	f.projects[id] = cloneProject(current)
	return current, nil
}

func (f *fakeProjects) AppendArtifact(ctx context.Context, id string, artifact models.DiagramArtifact) (*models.Project, error) {
	return f.Update(ctx, id, func(p *models.Project) error {
		for _, a := range p.Artifacts {
			if a.Kind == artifact.Kind && a.Revision == artifact.Revision {
				return store.ErrRevisionConflict
			}
		}
		p.Artifacts = append(p.Artifacts, artifact)
		return nil
	})
}

func cloneSession(s *models.IntakeSession) *models.IntakeSession {
	out := *s
	out.Uploads = append([]models.UploadedDocument(nil), s.Uploads...)
	out.Removed = append([]string(nil), s.Removed...)
	return &out
}

type fakeSessions struct {
	mu        sync.Mutex
	sessions  map[string]*models.IntakeSession
	nextID    int
	deleted   []string
	deleteErr error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]*models.IntakeSession)}
}

func (f *fakeSessions) Create(_ context.Context, createdBy string) (*models.IntakeSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	s := &models.IntakeSession{
		ID:        fmt.Sprintf("sess-%d", f.nextID),
		CreatedBy: createdBy,
		Uploads:   []models.UploadedDocument{},
		CreatedAt: fixedNow,
		UpdatedAt: fixedNow,
	}
	f.sessions[s.ID] = cloneSession(s)
	return s, nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (*models.IntakeSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: intakeSessions/%s", store.ErrNotFound, id)
	}
	return cloneSession(s), nil
}

func (f *fakeSessions) Update(_ context.Context, id string, fn func(*models.IntakeSession) error) (*models.IntakeSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: intakeSessions/%s", store.ErrNotFound, id)
	}
	current := cloneSession(s)
	if err := fn(current); err != nil {
		if errors.Is(err, store.ErrNoChange) {
			return cloneSession(s), nil
		}
		return nil, err
	}
	f.sessions[id] = cloneSession(current)
	return current, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.sessions, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeArchive struct {
	mu      sync.Mutex
	objects map[string]string
	putErr  error
	// staleListing makes LatestRevision miss every object, like a listing
	// taken before a concurrent save landed.
	staleListing bool
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: make(map[string]string)}
}

func (f *fakeArchive) ObjectName(projectID string, kind models.ArtifactKind, revision int) string {
	return store.ArtifactObjectName(projectID, kind, revision)
}

func (f *fakeArchive) Put(_ context.Context, projectID string, artifact models.DiagramArtifact) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return "", f.putErr
	}
	name := artifact.ObjectName
	if name == "" {
		name = f.ObjectName(projectID, artifact.Kind, artifact.Revision)
	}
	if _, exists := f.objects[name]; exists {
		return "", fmt.Errorf("%w: %s", store.ErrRevisionExists, name)
	}
	f.objects[name] = artifact.RawXML
	return gcp.URI("artifacts", name), nil
}

func (f *fakeArchive) LatestRevision(_ context.Context, projectID string, kind models.ArtifactKind) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.staleListing {
		return 0, nil
	}
	latest := 0
	for i := 1; i <= 1000; i++ {
		if _, ok := f.objects[f.ObjectName(projectID, kind, i)]; ok {
			latest = i
		}
	}
	return latest, nil
}

type fakeLauncher struct {
	mu       sync.Mutex
	payloads []models.GenerationLaunchPayload
	err      error
	// When set, Launch signals entered and waits for proceed.
	entered chan struct{}
	proceed chan struct{}
}

func (f *fakeLauncher) Launch(_ context.Context, payload models.GenerationLaunchPayload) (string, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.proceed
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.payloads = append(f.payloads, payload)
	return fmt.Sprintf("executions/exec-%d", len(f.payloads)), nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	readErr error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) put(bucket, name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+name] = data
}

func (f *fakeObjects) ReadObject(_ context.Context, bucket, name string, limit int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	data, ok := f.objects[bucket+"/"+name]
	if !ok {
		return nil, fmt.Errorf("%w: gs://%s/%s", gcp.ErrObjectNotFound, bucket, name)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: gs://%s/%s", gcp.ErrObjectTooLarge, bucket, name)
	}
	return data, nil
}

func (f *fakeObjects) ObjectSize(_ context.Context, bucket, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+name]
	if !ok {
		return 0, fmt.Errorf("%w: gs://%s/%s", gcp.ErrObjectNotFound, bucket, name)
	}
	return int64(len(data)), nil
}

// captureLogs routes the default logger to a JSON buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &logs
}

// assertKeyAtMostOnce fails when any log line repeats key.
func assertKeyAtMostOnce(t *testing.T, logs *bytes.Buffer, key string) {
	t.Helper()
	field := []byte(`"` + key + `":`)
	for _, line := range bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		assert.LessOrEqual(t, bytes.Count(line, field), 1, string(line))
	}
}
