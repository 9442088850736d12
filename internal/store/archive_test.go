package store

import (
	"testing"
	"time"

	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactObjectName(t *testing.T) {
	assert.Equal(t, "projects/p1/as_is/00001.bpmn", ArtifactObjectName("p1", models.KindAsIs, 1))
	assert.Equal(t, "projects/p1/to_be/00042.bpmn", ArtifactObjectName("p1", models.KindToBe, 42))
}

func TestParseRevision(t *testing.T) {
	tests := []struct {
		name   string
		object string
		want   int
		ok     bool
	}{
		{name: "padded", object: "projects/p1/as_is/00007.bpmn", want: 7, ok: true},
		{name: "wide", object: "projects/p1/as_is/123456.bpmn", want: 123456, ok: true},
		{name: "wrong extension", object: "projects/p1/as_is/00007.xml"},
		{name: "not a number", object: "projects/p1/as_is/latest.bpmn"},
		{name: "zero", object: "projects/p1/as_is/00000.bpmn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseRevision(tt.object)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRevisionRoundTrip(t *testing.T) {
	for _, rev := range []int{1, 9, 10, 99999, 100000} {
		got, ok := ParseRevision(ArtifactObjectName("p", models.KindToBe, rev))
		require.True(t, ok)
		assert.Equal(t, rev, got)
	}
}

func TestAppendArtifactRejectsRecordedRevision(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &models.Project{ID: "p1", Artifacts: []models.DiagramArtifact{
		{ID: "a1", Kind: models.KindAsIs, Revision: 1},
	}}

	err := appendArtifact(p, models.DiagramArtifact{ID: "a2", Kind: models.KindAsIs, Revision: 1}, now)
	require.ErrorIs(t, err, ErrRevisionConflict)
	assert.Len(t, p.Artifacts, 1)

	require.NoError(t, appendArtifact(p, models.DiagramArtifact{ID: "a3", Kind: models.KindToBe, Revision: 1}, now))
	require.NoError(t, appendArtifact(p, models.DiagramArtifact{ID: "a4", Kind: models.KindAsIs, Revision: 2}, now))
	assert.Len(t, p.Artifacts, 3)
	assert.Equal(t, now, p.UpdatedAt)
}
