package bpmn

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
)

// DefaultDiagramXML is loaded into a new Modeler. It has a process and a
// start event but no end event, so it must be completed before it saves.
const DefaultDiagramXML = `<?xml version="1.0" encoding="UTF-8"?>
<bpmn:definitions xmlns:bpmn="http://www.omg.org/spec/BPMN/20100524/MODEL" xmlns:bpmndi="http://www.omg.org/spec/BPMN/20100524/DI" xmlns:dc="http://www.omg.org/spec/DD/20100524/DC" xmlns:di="http://www.omg.org/spec/DD/20100524/DI" id="Definitions_1" targetNamespace="http://bpmn.io/schema/bpmn" exporter="bpmn-js" exporterVersion="17.11.1">
  <bpmn:process id="Process_1" isExecutable="true">
    <bpmn:startEvent id="StartEvent_1" />
  </bpmn:process>
  <bpmndi:BPMNDiagram id="BPMNDiagram_1">
    <bpmndi:BPMNPlane id="BPMNPlane_1" bpmnElement="Process_1">
      <bpmndi:BPMNShape id="_BPMNShape_StartEvent_2" bpmnElement="StartEvent_1">
        <dc:Bounds x="179" y="79" width="36" height="36" />
      </bpmndi:BPMNShape>
    </bpmndi:BPMNPlane>
  </bpmndi:BPMNDiagram>
</bpmn:definitions>`

// ErrMalformed reports XML that cannot be tokenised.
var ErrMalformed = errors.New("malformed diagram xml")

// Modeler is the working-document handle of one editor session. Callers own
// it and pass it around explicitly; there is no shared instance.
type Modeler struct {
	xml string
}

// NewModeler returns a modeler holding DefaultDiagramXML.
func NewModeler() *Modeler {
	return &Modeler{xml: DefaultDiagramXML}
}

// Import replaces the working document with src if it validates and parses.
// On failure the previous document stays loaded.
func (m *Modeler) Import(src string) (ValidationResult, error) {
	res := Validate(src)
	if !res.OK {
		return res, res.Err()
	}
	if _, err := Format(src); err != nil {
		return res, err
	}
	m.xml = src
	return res, nil
}

// Export re-serialises the working document with indentation.
func (m *Modeler) Export() (string, error) {
	return Format(m.xml)
}

// Reset reloads the default template.
func (m *Modeler) Reset() {
	m.xml = DefaultDiagramXML
}

// Save exports the working document as the next revision of kind.
func (m *Modeler) Save(kind models.ArtifactKind, existing []models.DiagramArtifact, createdBy string, now time.Time) (models.DiagramArtifact, error) {
	out, err := m.Export()
	if err != nil {
		return models.DiagramArtifact{}, err
	}
	return NewArtifact(kind, NextRevision(existing, kind), out, createdBy, now)
}

// Format re-indents an XML document, keeping namespace prefixes, attribute
// order and non-whitespace text as written.
func Format(src string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(src))
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			attrs := make([]xml.Attr, len(t.Attr))
			for i, a := range t.Attr {
				attrs[i] = xml.Attr{Name: prefixed(a.Name), Value: a.Value}
			}
			tok = xml.StartElement{Name: prefixed(t.Name), Attr: attrs}
		case xml.EndElement:
			tok = xml.EndElement{Name: prefixed(t.Name)}
		case xml.CharData:
			if len(bytes.TrimSpace(t)) == 0 {
				continue
			}
		}
		if err := enc.EncodeToken(tok); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return buf.String(), nil
}

// prefixed folds a raw prefix into the local name so the encoder writes it
// back verbatim instead of treating it as a namespace URI.
func prefixed(n xml.Name) xml.Name {
	if n.Space == "" {
		return n
	}
	return xml.Name{Local: n.Space + ":" + n.Local}
}
