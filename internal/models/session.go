package models

import "time"

// IntakeSession is the persisted state of an in-progress creation wizard.
// It is deleted once the project has been created.
type IntakeSession struct {
	ID        string             `firestore:"-" json:"id"`
	CreatedBy string             `firestore:"createdBy" json:"createdBy"`
	Details   ProjectDetails     `firestore:"details" json:"details"`
	Uploads   []UploadedDocument `firestore:"uploads" json:"uploads"`
	Removed   []string           `firestore:"removed,omitempty" json:"-"`
	CreatedAt time.Time          `firestore:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt" json:"updatedAt"`

	// Set while a finalize call holds the session.
	Finalizing bool      `firestore:"finalizing" json:"-"`
	ClaimedAt  time.Time `firestore:"claimedAt" json:"-"`
	// ProjectID is the project created from this session, once there is one.
	ProjectID string `firestore:"projectId,omitempty" json:"projectId,omitempty"`
}
