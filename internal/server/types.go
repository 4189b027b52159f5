// Package server provides the HTTP server for the video compression API.
// It includes handlers, middleware, routes, and the JSON response bodies.
package server

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Details carries the encoder failure description, when there is one.
	Details string `json:"details,omitempty"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}

// Client-facing error messages.
const (
	msgNoVideo       = "No video file provided"
	msgTooLarge      = "Video file too large"
	msgUploadFailed  = "Error receiving video upload"
	msgCompressError = "Error compressing video."
	msgSendError     = "Error sending compressed video"
	msgInternalError = "internal server error"
)
