package models

import "time"

// ArtifactResult is the outcome of one upload.
type ArtifactResult struct {
	Key   string `json:"key"`
	Saved bool   `json:"saved"`
	Error string `json:"error,omitempty"`
}

// SaveResult reports what a write produced. Artifacts succeed or fail
// independently, so a result can be partially saved.
type SaveResult struct {
	RecordID string                    `json:"verification_id"`
	BasePath string                    `json:"base_path"`
	Files    map[string]ArtifactResult `json:"files_saved"`
	Record   VerificationRecord        `json:"metadata"`
	Success  bool                      `json:"success"`
	Indexed  bool                      `json:"indexed"`
}

// DownloadLink is a presigned URL for one artifact. Unavailable artifacts
// (blob missing from the store) carry no URL.
type DownloadLink struct {
	Key       string `json:"key"`
	Available bool   `json:"available"`
	URL       string `json:"url,omitempty"`
}

// RecordBundle is a resolved record together with its download links.
type RecordBundle struct {
	Record    VerificationRecord      `json:"record"`
	Downloads map[string]DownloadLink `json:"download_urls"`
	ExpiresAt time.Time               `json:"expires_at"`
}
