package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "kickoff.pdf", want: "kickoff.pdf"},
		{name: "spaces and case", in: "Kick Off Meeting (Final).PDF", want: "kick_off_meeting_final.pdf"},
		{name: "path components dropped", in: "../../etc/passwd", want: "passwd"},
		{name: "windows path", in: `C:\Users\ana\scope v2.docx`, want: "scope_v2.docx"},
		{name: "no extension", in: "notes", want: "notes"},
		{name: "only symbols", in: "###.txt", want: "file.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFileName(tt.in))
		})
	}
}

func TestIntakeObjectNameRoundTrip(t *testing.T) {
	name := IntakeObjectName("sess-1", "doc-9", "Meeting Notes.pdf")
	assert.Equal(t, "intake/sess-1/doc-9/meeting_notes.pdf", name)

	sessionID, documentID, ok := ParseIntakeObjectName(name)
	assert.True(t, ok)
	assert.Equal(t, "sess-1", sessionID)
	assert.Equal(t, "doc-9", documentID)
}

func TestParseIntakeObjectNameRejectsOtherLayouts(t *testing.T) {
	for _, name := range []string{
		"",
		"projects/p1/as_is/00001.bpmn",
		"intake/sess-1/doc-9",
		"intake/sess-1/doc-9/a/b.pdf",
		"intake//doc-9/a.pdf",
		"other/sess-1/doc-9/a.pdf",
	} {
		_, _, ok := ParseIntakeObjectName(name)
		assert.False(t, ok, name)
	}
}
