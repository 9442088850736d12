package workflow

import "github.com/Lllllllleong/bpmnprojectflow/internal/models"

// IsTransitionAllowed enforces the project lifecycle. There is no terminal
// status: Ready and Error both lead back to Processing.
func IsTransitionAllowed(from, to models.ProjectStatus) bool {
	switch from {
	case models.ProjectDraft:
		return to == models.ProjectProcessing
	case models.ProjectProcessing:
		return to == models.ProjectReady || to == models.ProjectError
	case models.ProjectReady:
		return to == models.ProjectProcessing
	case models.ProjectError:
		return to == models.ProjectProcessing
	default:
		return false
	}
}

// AwaitsExternalResult reports whether the status is waiting on the
// generation workflow rather than on the user.
func AwaitsExternalResult(s models.ProjectStatus) bool {
	return s == models.ProjectProcessing
}
