package intake

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
)

var (
	// ErrInvalidType rejects an upload for a type missing from the registry.
	ErrInvalidType = errors.New("invalid document type")
	// ErrStaleID marks a signal for a document that was removed. Callers discard it.
	ErrStaleID = errors.New("stale document id")
	// ErrUnknownID marks a signal for an id the tracker never issued.
	ErrUnknownID = errors.New("unknown document id")
	// ErrInvalidTransition rejects a status change the upload lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid upload transition")
	// ErrIntakeIncomplete is matched by *IntakeError.
	ErrIntakeIncomplete = errors.New("intake incomplete")
)

// IntakeError reports the required document types still lacking a ready upload.
type IntakeError struct {
	Missing []models.DocumentType
}

func (e *IntakeError) Error() string {
	names := make([]string, len(e.Missing))
	for i, t := range e.Missing {
		names[i] = string(t)
	}
	return fmt.Sprintf("%s: missing %s", ErrIntakeIncomplete, strings.Join(names, ", "))
}

func (e *IntakeError) Is(target error) bool {
	return target == ErrIntakeIncomplete
}
