package intake

import "github.com/Lllllllleong/bpmnprojectflow/internal/models"

// Registry is the fixed catalog of recognized document types. It is built
// once at startup and never mutated afterwards.
type Registry struct {
	requirements []models.DocumentRequirement
	index        map[models.DocumentType]int
}

// NewRegistry builds a registry from the given requirements, keeping their
// order. A repeated type keeps its first entry.
func NewRegistry(requirements ...models.DocumentRequirement) *Registry {
	r := &Registry{index: make(map[models.DocumentType]int, len(requirements))}
	for _, req := range requirements {
		if _, seen := r.index[req.Type]; seen {
			continue
		}
		r.index[req.Type] = len(r.requirements)
		r.requirements = append(r.requirements, req)
	}
	return r
}

// DefaultRegistry returns the catalog offered by the creation wizard.
func DefaultRegistry() *Registry {
	return NewRegistry(
		models.DocumentRequirement{Type: models.DocTranscription, Label: "Transcription", Required: true, Description: "Meeting transcription following standard agenda"},
		models.DocumentRequirement{Type: models.DocScope, Label: "Project Scope", Description: "Project scope document (required for To-Be generation)"},
		models.DocumentRequirement{Type: models.DocProposal, Label: "Proposal", Description: "Commercial proposal or project specification"},
		models.DocumentRequirement{Type: models.DocContract, Label: "Contract", Description: "Service contract or agreement"},
		models.DocumentRequirement{Type: models.DocBusinessRules, Label: "Business Rules", Description: "Business rules and requirements document"},
		models.DocumentRequirement{Type: models.DocOther, Label: "Other", Description: "Additional supporting documents"},
	)
}

// Requirements returns a copy of the catalog in display order.
func (r *Registry) Requirements() []models.DocumentRequirement {
	out := make([]models.DocumentRequirement, len(r.requirements))
	copy(out, r.requirements)
	return out
}

// Lookup finds the requirement for a document type.
func (r *Registry) Lookup(t models.DocumentType) (models.DocumentRequirement, bool) {
	i, ok := r.index[t]
	if !ok {
		return models.DocumentRequirement{}, false
	}
	return r.requirements[i], true
}

// RequiredTypes lists the required document types in catalog order.
func (r *Registry) RequiredTypes() []models.DocumentType {
	var out []models.DocumentType
	for _, req := range r.requirements {
		if req.Required {
			out = append(out, req.Type)
		}
	}
	return out
}
