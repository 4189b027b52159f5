// Package compress implements the lifecycle of a single video compression
// request: staging the upload, validating its format, running the encoder,
// delivering the result and removing every temporary file afterwards.
package compress

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/videocompress-api/internal/compress/id"
)

// Status represents the current state of a Request.
type Status string

const (
	// StatusReceived indicates the upload has arrived but nothing is staged yet.
	StatusReceived Status = "RECEIVED"
	// StatusStaged indicates the upload has been written to a temporary file.
	StatusStaged Status = "STAGED"
	// StatusRejected indicates the upload failed format validation.
	StatusRejected Status = "REJECTED"
	// StatusEncoding indicates the encoder is running.
	StatusEncoding Status = "ENCODING"
	// StatusEncoded indicates the encoder finished and the output exists.
	StatusEncoded Status = "ENCODED"
	// StatusTransferring indicates the output is being streamed to the caller.
	StatusTransferring Status = "TRANSFERRING"
	// StatusCompleted indicates the output was delivered.
	StatusCompleted Status = "COMPLETED"
	// StatusFailed indicates staging, encoding or transfer failed.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusReceived:     {StatusStaged, StatusFailed},
	StatusStaged:       {StatusRejected, StatusEncoding},
	StatusEncoding:     {StatusEncoded, StatusFailed},
	StatusEncoded:      {StatusTransferring, StatusFailed},
	StatusTransferring: {StatusCompleted, StatusFailed},
	StatusRejected:     {},
	StatusCompleted:    {},
	StatusFailed:       {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Request tracks one compression request. It is owned by a single handler
// invocation and never shared between requests.
type Request struct {
	mu sync.RWMutex

	// ID is the unique identifier for this request.
	ID string
	// Filename is the original filename supplied by the client.
	Filename string
	// Format is the lowercased extension derived from Filename.
	Format string
	// Status is the current lifecycle state.
	Status Status
	// Error contains the failure detail if the request failed.
	Error string
	// InputPath is the staged upload. Empty until staged.
	InputPath string
	// OutputPath is the staged encoder output. Empty until computed.
	OutputPath string
	// InputBytes is the size of the staged upload.
	InputBytes int64
	// OutputBytes is the size of the encoder output.
	OutputBytes int64
	// CreatedAt is when the request was received.
	CreatedAt time.Time
	// UpdatedAt is when the request last changed state.
	UpdatedAt time.Time
	// EncodeStartedAt is when the encoder was invoked.
	EncodeStartedAt time.Time
	// CompletedAt is when the request reached a terminal state.
	CompletedAt time.Time
}

// NewRequest creates a Request in RECEIVED status for the given client filename.
func NewRequest(filename string) *Request {
	now := time.Now()
	return &Request{
		ID:        id.Generate(),
		Filename:  filename,
		Format:    Extension(filename),
		Status:    StatusReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the request status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (r *Request) TransitionTo(status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !canTransition(r.Status, status) {
		return ErrInvalidTransition
	}

	r.Status = status
	r.UpdatedAt = time.Now()

	switch status {
	case StatusEncoding:
		r.EncodeStartedAt = r.UpdatedAt
	case StatusRejected, StatusCompleted, StatusFailed:
		r.CompletedAt = r.UpdatedAt
	}

	return nil
}

// Fail transitions the request to FAILED with a failure detail.
func (r *Request) Fail(detail string) error {
	r.mu.Lock()
	r.Error = detail
	r.mu.Unlock()
	return r.TransitionTo(StatusFailed)
}

// GetStatus returns the current status (thread-safe).
func (r *Request) GetStatus() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// IsTerminal returns true if the request is in a terminal state.
func (r *Request) IsTerminal() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status == StatusRejected ||
		r.Status == StatusCompleted ||
		r.Status == StatusFailed
}

// TempPaths returns the staged paths that have been assigned so far.
func (r *Request) TempPaths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	paths := make([]string, 0, 2)
	if r.InputPath != "" {
		paths = append(paths, r.InputPath)
	}
	if r.OutputPath != "" {
		paths = append(paths, r.OutputPath)
	}
	return paths
}

// SetInput records the staged upload path and size.
func (r *Request) SetInput(path string, size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.InputPath = path
	r.InputBytes = size
	r.UpdatedAt = time.Now()
}

// SetOutput records the staged output path.
func (r *Request) SetOutput(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OutputPath = path
	r.UpdatedAt = time.Now()
}

// SetOutputBytes records the size of the encoder output.
func (r *Request) SetOutputBytes(size int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.OutputBytes = size
}
