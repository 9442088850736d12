package bpmn

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completeDiagram = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="Definitions_1">
  <bpmn:process id="Process_1" isExecutable="true">
    <bpmn:startEvent id="StartEvent_1" />
    <bpmn:task id="Task_1" name="Qualify lead" />
    <bpmn:endEvent id="EndEvent_1" />
  </bpmn:process>
</bpmn:definitions>`

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		xml     string
		missing []string
	}{
		{
			name:    "complete prefixed diagram",
			xml:     completeDiagram,
			missing: []string{},
		},
		{
			name:    "unqualified tags are enough",
			xml:     `<definitions><process><startEvent/><endEvent></endEvent></process></definitions>`,
			missing: []string{},
		},
		{
			name:    "element order does not matter",
			xml:     `<endEvent/><startEvent/><process/><definitions/>`,
			missing: []string{},
		},
		{
			name:    "no end event",
			xml:     `<bpmn:definitions><bpmn:process id="p"><bpmn:startEvent id="s"/></bpmn:process></bpmn:definitions>`,
			missing: []string{ElementEndEvent},
		},
		{
			name:    "empty document",
			xml:     "",
			missing: []string{ElementDefinitions, ElementProcess, ElementStartEvent, ElementEndEvent},
		},
		{
			name:    "lookalike tag names do not count",
			xml:     `<definitions><processing/><startEventual/><endEvents/></definitions>`,
			missing: []string{ElementProcess, ElementStartEvent, ElementEndEvent},
		},
		{
			name:    "default template lacks an end event",
			xml:     DefaultDiagramXML,
			missing: []string{ElementEndEvent},
		},
		{
			name:    "tag split across lines",
			xml:     "<definitions>\n<process\n id=\"p\"><startEvent\n/><endEvent\n/></process></definitions>",
			missing: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.xml)
			assert.Equal(t, tt.missing, res.MissingElements)
			assert.Equal(t, len(tt.missing) == 0, res.OK)
		})
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	for _, doc := range []string{completeDiagram, DefaultDiagramXML, "", "<process/>"} {
		assert.Equal(t, Validate(doc), Validate(doc))
	}
}

func TestValidationResultErr(t *testing.T) {
	assert.NoError(t, Validate(completeDiagram).Err())

	err := Validate(`<definitions/>`).Err()
	require.ErrorIs(t, err, ErrStructuralInvalid)

	var structural *StructuralError
	require.ErrorAs(t, err, &structural)
	assert.Equal(t, []string{ElementProcess, ElementStartEvent, ElementEndEvent}, structural.Missing)
	assert.True(t, strings.HasSuffix(err.Error(), "missing process, startEvent, endEvent"))
}

func TestFormatRoundTrip(t *testing.T) {
	compact := strings.Join(strings.Fields(completeDiagram), " ")
	out, err := Format(compact)
	require.NoError(t, err)

	assert.True(t, Validate(out).OK)
	assert.Contains(t, out, `<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" id="Definitions_1">`)
	assert.Contains(t, out, "\n  <bpmn:process")

	again, err := Format(out)
	require.NoError(t, err)
	assert.Equal(t, out, again, "formatting is stable")
}

func TestFormatRejectsMalformed(t *testing.T) {
	_, err := Format(`<definitions><process></definitions>`)
	assert.ErrorIs(t, err, ErrMalformed)
}
