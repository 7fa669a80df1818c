package common

// Artifact names used in write results, upload attributes and download bundles.
const (
	ArtifactIDCard   = "id_card"
	ArtifactVideo    = "selfie_video"
	ArtifactMetadata = "metadata"
)

// ArtifactNames lists the artifacts of one record in write order.
var ArtifactNames = []string{ArtifactIDCard, ArtifactVideo, ArtifactMetadata}

// Content types the writer sets explicitly.
const (
	ContentTypeJSON   = "application/json"
	ContentTypeJPEG   = "image/jpeg"
	ContentTypeBinary = "application/octet-stream"
)
