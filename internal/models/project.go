package models

import "time"

// ProjectStatus is the lifecycle label of a mapping project.
type ProjectStatus string

const (
	ProjectDraft      ProjectStatus = "draft"
	ProjectProcessing ProjectStatus = "processing"
	ProjectReady      ProjectStatus = "ready"
	ProjectError      ProjectStatus = "error"
)

// ArtifactKind distinguishes current-state from proposed-state diagrams.
type ArtifactKind string

const (
	KindAsIs ArtifactKind = "as_is"
	KindToBe ArtifactKind = "to_be"
)

// Valid reports whether k is a known artifact kind.
func (k ArtifactKind) Valid() bool {
	return k == KindAsIs || k == KindToBe
}

// ProjectTemplate selects the mapping template chosen in the creation wizard.
type ProjectTemplate string

const (
	TemplateStandard   ProjectTemplate = "standard"
	TemplateSales      ProjectTemplate = "sales"
	TemplateSupport    ProjectTemplate = "support"
	TemplateOnboarding ProjectTemplate = "onboarding"
)

// KnownTemplates lists the templates offered by the wizard, default first.
var KnownTemplates = []ProjectTemplate{TemplateStandard, TemplateSales, TemplateSupport, TemplateOnboarding}

// DiagramArtifact is an immutable, revisioned BPMN document attached to a project.
type DiagramArtifact struct {
	ID         string       `firestore:"id" json:"id"`
	Kind       ArtifactKind `firestore:"kind" json:"kind"`
	Revision   int          `firestore:"revision" json:"revision"`
	RawXML     string       `firestore:"rawXml" json:"rawXml"`
	ObjectName string       `firestore:"objectName,omitempty" json:"objectName,omitempty"`
	CreatedBy  string       `firestore:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt  time.Time    `firestore:"createdAt" json:"createdAt"`
}

// ProjectDetails holds the free-form fields collected on the first wizard step.
type ProjectDetails struct {
	Name        string          `firestore:"name" json:"name"`
	ClientAlias string          `firestore:"clientAlias" json:"clientAlias"`
	Description string          `firestore:"description,omitempty" json:"description,omitempty"`
	Template    ProjectTemplate `firestore:"template,omitempty" json:"template,omitempty"`
}

// Project is the Firestore record of a mapping project.
type Project struct {
	ID                  string            `firestore:"-" json:"id"`
	Name                string            `firestore:"name" json:"name"`
	ClientAlias         string            `firestore:"clientAlias" json:"clientAlias"`
	Description         string            `firestore:"description,omitempty" json:"description,omitempty"`
	Template            ProjectTemplate   `firestore:"template" json:"template"`
	Status              ProjectStatus     `firestore:"status" json:"status"`
	ErrorDetails        string            `firestore:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	GenerationCycle     int               `firestore:"generationCycle" json:"generationCycle"`
	WorkflowExecutionID string            `firestore:"workflowExecutionId,omitempty" json:"workflowExecutionId,omitempty"` // For traceability
	CreatedBy           string            `firestore:"createdBy" json:"createdBy"`
	Artifacts           []DiagramArtifact `firestore:"artifacts" json:"artifacts"`
	CreatedAt           time.Time         `firestore:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time         `firestore:"updatedAt" json:"updatedAt"`
}

// ArtifactsCount is derived from Artifacts.
func (p *Project) ArtifactsCount() int {
	return len(p.Artifacts)
}

// HasAsIs reports whether any as-is artifact exists.
func (p *Project) HasAsIs() bool {
	return p.hasKind(KindAsIs)
}

// HasToBe reports whether any to-be artifact exists.
func (p *Project) HasToBe() bool {
	return p.hasKind(KindToBe)
}

func (p *Project) hasKind(kind ArtifactKind) bool {
	for _, a := range p.Artifacts {
		if a.Kind == kind {
			return true
		}
	}
	return false
}
