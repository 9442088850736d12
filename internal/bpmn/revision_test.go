package bpmn

import (
	"math/rand"
	"testing"

	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRevision(t *testing.T) {
	tests := []struct {
		name      string
		artifacts []models.DiagramArtifact
		kind      models.ArtifactKind
		want      int
	}{
		{name: "none yet", kind: models.KindAsIs, want: 1},
		{
			name: "other kind ignored",
			artifacts: []models.DiagramArtifact{
				{Kind: models.KindToBe, Revision: 4},
			},
			kind: models.KindAsIs,
			want: 1,
		},
		{
			name: "gaps are not refilled",
			artifacts: []models.DiagramArtifact{
				{Kind: models.KindAsIs, Revision: 1},
				{Kind: models.KindAsIs, Revision: 5},
				{Kind: models.KindAsIs, Revision: 3},
			},
			kind: models.KindAsIs,
			want: 6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextRevision(tt.artifacts, tt.kind))
		})
	}
}

func TestNextRevisionIsAboveEveryExisting(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	kinds := []models.ArtifactKind{models.KindAsIs, models.KindToBe}
	for i := 0; i < 200; i++ {
		var artifacts []models.DiagramArtifact
		for j := rng.Intn(8); j > 0; j-- {
			artifacts = append(artifacts, models.DiagramArtifact{
				Kind:     kinds[rng.Intn(2)],
				Revision: 1 + rng.Intn(20),
			})
		}
		for _, kind := range kinds {
			next := NextRevision(artifacts, kind)
			for _, a := range artifacts {
				if a.Kind == kind {
					assert.Greater(t, next, a.Revision)
				}
			}
		}
	}
}

func TestNewArtifactRejectsBadInput(t *testing.T) {
	_, err := NewArtifact("sketch", 1, completeDiagram, "", saveTime)
	assert.Error(t, err)

	_, err = NewArtifact(models.KindAsIs, 0, completeDiagram, "", saveTime)
	assert.Error(t, err)

	_, err = NewArtifact(models.KindAsIs, 1, "<definitions/>", "", saveTime)
	assert.ErrorIs(t, err, ErrStructuralInvalid)

	a, err := NewArtifact(models.KindToBe, 3, completeDiagram, "mike", saveTime)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Revision)
	assert.Equal(t, "mike", a.CreatedBy)
	assert.Equal(t, completeDiagram, a.RawXML)
}
