// Package common defines shared constants and sentinel errors used across
// the KYC vault packages. Callers should use errors.Is to match these values.
package common

import (
	"errors"
	"strings"
)

var (
	// Store-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrTransport       = errors.New("object store transport error")
	ErrVersionConflict = errors.New("version conflict")
	ErrMalformed       = errors.New("malformed document")

	// Write-path errors.
	ErrPartialWrite = errors.New("partial write")
	ErrIndexUpdate  = errors.New("index update failed")

	// Validation / request errors.
	ErrorValidation = errors.New("validation error")

	// Presigned URL was rejected by the store (expired or revoked).
	ErrorForbidden = errors.New("forbidden or expired")
)

// PartialWriteError reports which artifacts of a record could not be stored.
// The artifacts that did succeed stay in place.
type PartialWriteError struct {
	RecordID string
	Failed   map[string]error
}

func (e *PartialWriteError) Error() string {
	names := make([]string, 0, len(e.Failed))
	for _, name := range ArtifactNames {
		if err, ok := e.Failed[name]; ok {
			names = append(names, name+": "+err.Error())
		}
	}
	return "partial write of record " + e.RecordID + ": " + strings.Join(names, "; ")
}

func (e *PartialWriteError) Is(target error) bool {
	return target == ErrPartialWrite
}

func (e *PartialWriteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, name := range ArtifactNames {
		if err, ok := e.Failed[name]; ok {
			errs = append(errs, err)
		}
	}
	return errs
}
