package models

// These structs define the JSON payloads exchanged between the dashboard,
// the generation workflow and the Cloud Functions in this repo.

// IntakeAction selects what an IntakeRequest does to the session.
type IntakeAction string

const (
	IntakeOpen    IntakeAction = "open"
	IntakeDetails IntakeAction = "details"
	IntakeBegin   IntakeAction = "begin"
	IntakeFail    IntakeAction = "fail"
	IntakeRemove  IntakeAction = "remove"
	IntakeStatus  IntakeAction = "status"
)

// IntakeRequest is the input for the intake function.
type IntakeRequest struct {
	Action     IntakeAction    `json:"action"`
	SessionID  string          `json:"sessionId,omitempty"`
	CreatedBy  string          `json:"createdBy,omitempty"`
	Details    *ProjectDetails `json:"details,omitempty"`
	DocumentID string          `json:"documentId,omitempty"`
	Type       DocumentType    `json:"type,omitempty"`
	Filename   string          `json:"filename,omitempty"`
	SizeBytes  int64           `json:"sizeBytes,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// UploadSummary mirrors the counters shown under the upload step.
type UploadSummary struct {
	Total         int `json:"total"`
	Ready         int `json:"ready"`
	RequiredReady int `json:"requiredReady"`
	RequiredTotal int `json:"requiredTotal"`
}

// IntakeResponse is the output of the intake function. The gate fields are
// recomputed on every call.
type IntakeResponse struct {
	SessionID    string                `json:"sessionId"`
	Document     *UploadedDocument     `json:"document,omitempty"`
	UploadBucket string                `json:"uploadBucket,omitempty"`
	Uploads      []UploadedDocument    `json:"uploads"`
	Requirements []DocumentRequirement `json:"requirements"`
	Missing      []DocumentType        `json:"missing"`
	Satisfied    bool                  `json:"satisfied"`
	Summary      UploadSummary         `json:"summary"`
}

// CreateProjectRequest is the input for the project-creator function. With an
// empty ProjectID a new project is created from the session; otherwise the
// session resupplies documents for a retry or re-generation of that project.
type CreateProjectRequest struct {
	SessionID string `json:"sessionId"`
	ProjectID string `json:"projectId,omitempty"`
}

// CreateProjectResponse is the output of the project-creator function.
type CreateProjectResponse struct {
	Status      string        `json:"status"`
	ProjectID   string        `json:"projectId"`
	Project     ProjectStatus `json:"projectStatus"`
	Cycle       int           `json:"cycle"`
	ExecutionID string        `json:"executionId,omitempty"`
}

// GenerationLaunchPayload is the argument passed to the generation workflow.
type GenerationLaunchPayload struct {
	ProjectID   string   `json:"projectId"`
	Cycle       int      `json:"cycle"`
	Template    string   `json:"template"`
	DocumentURI []string `json:"documentUris"`
}

// GenerationResultRequest is delivered by the generation workflow when a cycle ends.
type GenerationResultRequest struct {
	ProjectID   string       `json:"projectId"`
	Cycle       int          `json:"cycle"`
	Success     bool         `json:"success"`
	XML         string       `json:"xml,omitempty"`
	Kind        ArtifactKind `json:"kind,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	ExecutionID string       `json:"executionId,omitempty"`
}

// GenerationResultResponse is the output of the generation-callback function.
type GenerationResultResponse struct {
	Status          string        `json:"status"`
	Project         ProjectStatus `json:"projectStatus"`
	Applied         bool          `json:"applied"`
	Revision        int           `json:"revision,omitempty"`
	MissingElements []string      `json:"missingElements,omitempty"`
}

// SaveArtifactRequest is the input for the artifact-saver function.
type SaveArtifactRequest struct {
	ProjectID string       `json:"projectId"`
	Kind      ArtifactKind `json:"kind"`
	XML       string       `json:"xml"`
	CreatedBy string       `json:"createdBy,omitempty"`
}

// SaveArtifactResponse is the output of the artifact-saver function.
type SaveArtifactResponse struct {
	Status          string   `json:"status"`
	Revision        int      `json:"revision,omitempty"`
	ObjectURI       string   `json:"objectUri,omitempty"`
	MissingElements []string `json:"missingElements,omitempty"`
}

// GCSEvent is the payload of a Cloud Storage object finalize event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}
