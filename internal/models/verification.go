package models

import "time"

// DocumentKind names an identity document accepted for verification.
type DocumentKind string

const (
	DocumentPAN    DocumentKind = "pan"
	DocumentAadhar DocumentKind = "aadhar"
)

// Submission is one row of the PostgreSQL document_submissions ledger.
type Submission struct {
	ID          int64        `json:"id"`
	UserID      string       `json:"userId"`
	Kind        DocumentKind `json:"kind"`
	Number      string       `json:"number"`
	DocumentURL string       `json:"documentUrl"`
	Status      string       `json:"status"` // pending until reviewed out of band
	SubmittedAt time.Time    `json:"submittedAt"`
}
