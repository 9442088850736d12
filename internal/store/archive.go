package store

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/bpmnprojectflow/internal/gcp"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"google.golang.org/api/iterator"
)

const bpmnExt = ".bpmn"

// ArtifactArchive writes each diagram revision to its own write-once object.
type ArtifactArchive struct {
	client *storage.Client
	bucket string
}

func NewArtifactArchive(client *storage.Client, bucket string) *ArtifactArchive {
	return &ArtifactArchive{client: client, bucket: bucket}
}

// ArtifactObjectName returns projects/<id>/<kind>/<revision>.bpmn with the
// revision zero-padded to five digits.
func ArtifactObjectName(projectID string, kind models.ArtifactKind, revision int) string {
	return fmt.Sprintf("%s%05d%s", kindPrefix(projectID, kind), revision, bpmnExt)
}

func kindPrefix(projectID string, kind models.ArtifactKind) string {
	return fmt.Sprintf("projects/%s/%s/", projectID, kind)
}

// ParseRevision extracts the revision from an archive object name.
func ParseRevision(objectName string) (int, bool) {
	base := path.Base(objectName)
	if !strings.HasSuffix(base, bpmnExt) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(base, bpmnExt))
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func (a *ArtifactArchive) ObjectName(projectID string, kind models.ArtifactKind, revision int) string {
	return ArtifactObjectName(projectID, kind, revision)
}

// Put stores the artifact XML and returns its gs:// URI. An object already
// present for the revision yields ErrRevisionExists and is left untouched.
func (a *ArtifactArchive) Put(ctx context.Context, projectID string, artifact models.DiagramArtifact) (string, error) {
	objectName := artifact.ObjectName
	if objectName == "" {
		objectName = ArtifactObjectName(projectID, artifact.Kind, artifact.Revision)
	}
	created, err := gcp.SaveToGCSAtomically(ctx, a.client.Bucket(a.bucket), objectName, "application/xml", artifact.RawXML)
	if err != nil {
		return "", err
	}
	if !created {
		return "", fmt.Errorf("%w: %s", ErrRevisionExists, objectName)
	}
	return gcp.URI(a.bucket, objectName), nil
}

// LatestRevision returns the highest archived revision of kind, or 0.
func (a *ArtifactArchive) LatestRevision(ctx context.Context, projectID string, kind models.ArtifactKind) (int, error) {
	it := a.client.Bucket(a.bucket).Objects(ctx, &storage.Query{Prefix: kindPrefix(projectID, kind)})
	latest := 0
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("failed to list archived revisions for project %s: %w", projectID, err)
		}
		if rev, ok := ParseRevision(attrs.Name); ok && rev > latest {
			latest = rev
		}
	}
	return latest, nil
}
