package domain

import (
	"mime"
	"net/http"
	"strings"
	"time"
)

type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Asset is the server-side bookkeeping for one issued upload intent.
type Asset struct {
	Key         string
	Purpose     string
	ContentType string
	Token       string
	Status      Status
	// Claimed is set once a write against the intent started; intents are single use.
	Claimed       bool
	Uploaded      bool
	StorageURL    string
	ContentLength int64
	PublicURL     string
	Reason        string
	CreatedAt     time.Time
	ResolvedAt    time.Time
}

type Intent struct {
	Key     string
	URL     string
	Headers http.Header
}

// PurposeRule describes what may be uploaded for a purpose and where it is stored.
type PurposeRule struct {
	Name   string
	Prefix string
	// AllowedTypes holds media types or "type/*" wildcards. Empty allows everything.
	AllowedTypes []string
	// MaxSize in bytes, zero means unlimited.
	MaxSize int64
}

// Allows reports whether contentType matches one of the allowed patterns.
func (r PurposeRule) Allows(contentType string) bool {
	mediaType, err := MediaType(contentType)
	if err != nil {
		return false
	}
	if len(r.AllowedTypes) == 0 {
		return true
	}

	for _, pattern := range r.AllowedTypes {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == mediaType || pattern == "*/*" {
			return true
		}
		if prefix, ok := strings.CutSuffix(pattern, "/*"); ok && strings.HasPrefix(mediaType, prefix+"/") {
			return true
		}
	}

	return false
}

// MediaType returns the lower-cased media type of contentType without parameters.
func MediaType(contentType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", err
	}
	return mediaType, nil
}
