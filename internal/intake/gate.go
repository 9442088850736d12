package intake

import "github.com/Lllllllleong/bpmnprojectflow/internal/models"

// IsSatisfied reports whether every required type has at least one ready
// upload. Optional types never block.
func IsSatisfied(requirements []models.DocumentRequirement, uploads []models.UploadedDocument) bool {
	return len(Missing(requirements, uploads)) == 0
}

// Missing returns the required types lacking a ready upload, in requirement
// order and without duplicates. The result depends only on the inputs.
func Missing(requirements []models.DocumentRequirement, uploads []models.UploadedDocument) []models.DocumentType {
	ready := make(map[models.DocumentType]bool, len(uploads))
	for _, u := range uploads {
		if u.Status == models.UploadReady {
			ready[u.Type] = true
		}
	}

	missing := []models.DocumentType{}
	seen := make(map[models.DocumentType]bool)
	for _, req := range requirements {
		if !req.Required || ready[req.Type] || seen[req.Type] {
			continue
		}
		seen[req.Type] = true
		missing = append(missing, req.Type)
	}
	return missing
}

// Check returns an *IntakeError when the gate is not satisfied.
func Check(requirements []models.DocumentRequirement, uploads []models.UploadedDocument) error {
	if missing := Missing(requirements, uploads); len(missing) > 0 {
		return &IntakeError{Missing: missing}
	}
	return nil
}
