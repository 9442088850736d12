package models

import "time"

// DocumentType identifies a category of intake document (transcription, scope, ...).
type DocumentType string

const (
	DocTranscription DocumentType = "transcription"
	DocScope         DocumentType = "scope"
	DocProposal      DocumentType = "proposal"
	DocContract      DocumentType = "contract"
	DocBusinessRules DocumentType = "business_rules"
	DocOther         DocumentType = "other"
)

// DocumentRequirement is one entry of the document catalog shown on the upload step.
type DocumentRequirement struct {
	Type        DocumentType `json:"type"`
	Label       string       `json:"label"`
	Required    bool         `json:"required"`
	Description string       `json:"description"`
}

// UploadStatus is the lifecycle label of a single uploaded file.
type UploadStatus string

const (
	UploadUploading UploadStatus = "uploading"
	UploadReady     UploadStatus = "ready"
	UploadError     UploadStatus = "error"
)

// UploadedDocument tracks one user-submitted file against a document type.
// Several documents may share a type; identity is the ID.
type UploadedDocument struct {
	ID          string       `firestore:"id" json:"id"`
	Type        DocumentType `firestore:"type" json:"type"`
	Filename    string       `firestore:"filename" json:"filename"`
	SizeBytes   int64        `firestore:"sizeBytes" json:"sizeBytes"`
	Status      UploadStatus `firestore:"status" json:"status"`
	ErrorReason string       `firestore:"errorReason,omitempty" json:"errorReason,omitempty"`
	ObjectName  string       `firestore:"objectName,omitempty" json:"objectName,omitempty"`
	PageCount   int          `firestore:"pageCount,omitempty" json:"pageCount,omitempty"`
	CreatedAt   time.Time    `firestore:"createdAt" json:"createdAt"`
}
