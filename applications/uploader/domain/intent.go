package domain

import "net/http"

// Purpose selects the backend endpoint an intent is requested from.
type Purpose string

const (
	PurposeProductImage   Purpose = "product-image"
	PurposeVideo          Purpose = "video"
	PurposeThumbnail      Purpose = "thumbnail"
	PurposeAvatar         Purpose = "avatar"
	PurposeBroadcastCover Purpose = "broadcast-cover"
)

// UploadIntent is a single-use write target issued by the backend.
type UploadIntent struct {
	Key         string
	Destination string
	Headers     http.Header
}

type ValidationStatus string

const (
	StatusWaiting   ValidationStatus = "WAITING"
	StatusSucceeded ValidationStatus = "SUCCEEDED"
	StatusFailed    ValidationStatus = "FAILED"
)

// Terminal reports whether no further status change is expected.
func (s ValidationStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

func (s ValidationStatus) Valid() bool {
	return s == StatusWaiting || s.Terminal()
}

type StatusResult struct {
	Status ValidationStatus
	// URL is set only for StatusSucceeded.
	URL string
}
