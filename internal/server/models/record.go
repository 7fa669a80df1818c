// Package models defines the documents the vault stores: verification
// records, the aggregates derived from them, and the results handed back to
// callers.
package models

import (
	"github.com/dmitrijs2005/kycvault/internal/timex"
)

// Status is the outcome of a verification.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

func (s Status) Valid() bool {
	return s == StatusPass || s == StatusFail
}

// IDDetails holds the fields extracted from the identity document. All of
// them are optional.
type IDDetails struct {
	Name        string `json:"name,omitempty"`
	IDNumber    string `json:"id_number,omitempty"`
	TypeOfID    string `json:"type_of_id,omitempty"`
	Country     string `json:"country,omitempty"`
	Sex         string `json:"sex,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Address     string `json:"address,omitempty"`
	IssuedDate  string `json:"issued_date,omitempty"`
	ExpireDate  string `json:"expire_date,omitempty"`
}

// ArtifactKeys are the object keys of a record's blobs.
type ArtifactKeys struct {
	IDCard      string `json:"id_card"`
	SelfieVideo string `json:"selfie_video"`
	Metadata    string `json:"metadata,omitempty"`
}

// ProcessingInfo repeats parts of the timestamp for cheap filtering by
// readers that do not parse dates.
type ProcessingInfo struct {
	Date  string `json:"date"`
	Time  string `json:"time"`
	Month string `json:"month"`
	Year  string `json:"year"`
}

// VerificationRecord is the metadata document of one verification. It is the
// source of truth every aggregate is derived from and is never modified
// after it is written.
type VerificationRecord struct {
	ID              string         `json:"verification_id"`
	Subject         string         `json:"email"`
	Timestamp       Timestamp      `json:"timestamp"`
	Status          Status         `json:"status"`
	ConfidenceScore float64        `json:"confidence_score"`
	Files           ArtifactKeys   `json:"files"`
	IDDetails       IDDetails      `json:"id_details"`
	ErrorMessage    *string        `json:"error_message"`
	ProcessingInfo  ProcessingInfo `json:"processing_info"`
}

func NewProcessingInfo(ts Timestamp) ProcessingInfo {
	return ProcessingInfo{
		Date:  ts.Format(timex.DateLayout),
		Time:  ts.Format(timex.TimeLayout),
		Month: ts.Format(timex.MonthLayout),
		Year:  ts.Format("2006"),
	}
}

// Summary projects the record into its monthly-index entry.
func (r *VerificationRecord) Summary() VerificationSummary {
	return VerificationSummary{
		RecordID:        r.ID,
		Subject:         r.Subject,
		Status:          r.Status,
		Timestamp:       r.Timestamp,
		ConfidenceScore: r.ConfidenceScore,
		Name:            r.IDDetails.Name,
	}
}

// LookupEntry maps a record id to the key of its metadata document.
type LookupEntry struct {
	RecordID    string    `json:"verification_id"`
	Subject     string    `json:"email"`
	Timestamp   Timestamp `json:"timestamp"`
	MetadataKey string    `json:"metadata_key"`
}
