// Package uploadapi holds the JSON wire types shared by the upload backend and its clients.
package uploadapi

import "net/http"

// Status values reported by the status endpoint.
const (
	StatusWaiting   = "WAITING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// Header carrying the single-use write token issued with an intent.
const UploadTokenHeader = "X-Upload-Token"

const (
	IntentPathTemplate = "/v1/uploads/{purpose}/intents"
	StatusPath         = "/v1/uploads/status"
)

type IntentRequest struct {
	ContentType string `json:"contentType"`
}

type IntentResponse struct {
	Key     string      `json:"key"`
	URL     string      `json:"url"`
	Headers http.Header `json:"headers"`
}

type StatusRequest struct {
	Key string `json:"key"`
}

type StatusResponse struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// IntentPath returns the intent endpoint path for purpose.
func IntentPath(purpose string) string {
	return "/v1/uploads/" + purpose + "/intents"
}
