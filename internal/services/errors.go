package services

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Lllllllleong/bpmnprojectflow/internal/bpmn"
	"github.com/Lllllllleong/bpmnprojectflow/internal/intake"
	"github.com/Lllllllleong/bpmnprojectflow/internal/models"
	"github.com/Lllllllleong/bpmnprojectflow/internal/store"
	"github.com/Lllllllleong/bpmnprojectflow/internal/wizard"
	"github.com/Lllllllleong/bpmnprojectflow/internal/workflow"
)

var (
	// ErrBadRequest marks a malformed request.
	ErrBadRequest = errors.New("bad request")
	// ErrDocumentMissing marks a ready upload whose object is not in the intake bucket.
	ErrDocumentMissing = errors.New("uploaded document is missing from storage")
)

// StatusCode maps an error returned by a function to an HTTP status code.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, intake.ErrInvalidType):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, intake.ErrUnknownID):
		return http.StatusNotFound
	case errors.Is(err, intake.ErrStaleID),
		errors.Is(err, intake.ErrInvalidTransition),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrDuplicateResult),
		errors.Is(err, wizard.ErrAlreadyFinalized),
		errors.Is(err, store.ErrRevisionConflict),
		errors.Is(err, ErrDocumentMissing):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrIncompleteDetails),
		errors.Is(err, intake.ErrIntakeIncomplete),
		errors.Is(err, bpmn.ErrStructuralInvalid),
		errors.Is(err, bpmn.ErrMalformed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse is the JSON body written for a failed request. The blocker
// lists are filled from typed errors so the dashboard can show them.
type ErrorResponse struct {
	Error           string                `json:"error"`
	Missing         []models.DocumentType `json:"missing,omitempty"`
	MissingElements []string              `json:"missingElements,omitempty"`
	Fields          []wizard.FieldError   `json:"fields,omitempty"`
}

// NewErrorResponse builds the body for err. Server errors are not echoed.
func NewErrorResponse(err error) ErrorResponse {
	if StatusCode(err) == http.StatusInternalServerError {
		return ErrorResponse{Error: "Internal Server Error: processing failed"}
	}
	resp := ErrorResponse{Error: err.Error()}
	var intakeErr *intake.IntakeError
	if errors.As(err, &intakeErr) {
		resp.Missing = intakeErr.Missing
	}
	var structural *bpmn.StructuralError
	if errors.As(err, &structural) {
		resp.MissingElements = structural.Missing
	}
	var details *wizard.DetailsError
	if errors.As(err, &details) {
		resp.Fields = details.Fields
	}
	return resp
}

// WriteJSON writes v with the given status code.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes err as an ErrorResponse with its mapped status code.
func WriteError(w http.ResponseWriter, err error) {
	WriteJSON(w, StatusCode(err), NewErrorResponse(err))
}
