package bpmn

import (
	"fmt"
	"time"

	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/google/uuid"
)

// NextRevision is one more than the highest revision of kind in artifacts,
// or 1 when there is none.
func NextRevision(artifacts []models.DiagramArtifact, kind models.ArtifactKind) int {
	highest := 0
	for _, a := range artifacts {
		if a.Kind == kind && a.Revision > highest {
			highest = a.Revision
		}
	}
	return highest + 1
}

// NewArtifact validates xml and builds an immutable artifact for it.
func NewArtifact(kind models.ArtifactKind, revision int, xml, createdBy string, now time.Time) (models.DiagramArtifact, error) {
	if !kind.Valid() {
		return models.DiagramArtifact{}, fmt.Errorf("unknown artifact kind %q", kind)
	}
	if revision < 1 {
		return models.DiagramArtifact{}, fmt.Errorf("revision must be positive, got %d", revision)
	}
	if err := Validate(xml).Err(); err != nil {
		return models.DiagramArtifact{}, err
	}
	return models.DiagramArtifact{
		ID:        uuid.NewString(),
		Kind:      kind,
		Revision:  revision,
		RawXML:    xml,
		CreatedBy: createdBy,
		CreatedAt: now.UTC(),
	}, nil
}
