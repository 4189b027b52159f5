package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/maauso/videocompress-api/internal/compress"
)

// VideoField is the multipart form field carrying the upload.
const VideoField = "video"

// DefaultMaxUploadBytes bounds the request body when no limit is configured.
const DefaultMaxUploadBytes int64 = 2 << 30

// Compressor runs one compression request and hands the result to deliver.
type Compressor interface {
	Process(ctx context.Context, up compress.Upload, deliver compress.DeliverFunc) (*compress.Request, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service        Compressor
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes limits the size of a compression request body.
// Non-positive values are ignored.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service Compressor, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:        service,
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CompressVideo handles POST /compress-video requests.
// The upload is streamed from the multipart body straight into staging.
func (h *Handlers) CompressVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	rw := guard(w)

	part, err := videoPart(r)
	if err != nil {
		h.writeUploadError(rw, err)
		return
	}
	defer func() { _ = part.Close() }()

	_, err = h.service.Process(r.Context(), compress.Upload{
		Filename: part.FileName(),
		Body:     part,
	}, sendVideo(rw))
	if err != nil {
		h.writeProcessError(rw, err)
	}
}

// videoPart returns the first file part named VideoField.
func videoPart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, compress.ErrNoVideo
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, compress.ErrNoVideo
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == VideoField && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

// sendVideo streams a compressed result as an attachment.
func sendVideo(w http.ResponseWriter) compress.DeliverFunc {
	return func(_ context.Context, d compress.Deliverable) error {
		w.Header().Set("Content-Type", d.ContentType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.Name}))
		if d.Size >= 0 {
			w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
		}
		w.WriteHeader(http.StatusOK)
		_, err := io.Copy(w, d.Body)
		return err
	}
}

// writeUploadError maps multipart parsing failures to a response.
func (h *Handlers) writeUploadError(w *responseWriter, err error) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
	case errors.Is(err, compress.ErrNoVideo):
		writeError(w, http.StatusBadRequest, msgNoVideo)
	default:
		h.logger.Warn("malformed multipart body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, msgNoVideo)
	}
}

// writeProcessError maps a compression failure to a response. Nothing is
// written if the success response has already started.
func (h *Handlers) writeProcessError(w *responseWriter, err error) {
	if w.Committed() {
		h.logger.Warn("response already started, dropping error response",
			slog.String("error", err.Error()),
		)
		return
	}

	var (
		fmtErr   *compress.UnsupportedFormatError
		encErr   *compress.EncodeError
		trErr    *compress.TransferError
		maxErr   *http.MaxBytesError
		stageErr *compress.StageError
	)
	switch {
	case errors.Is(err, compress.ErrNoVideo):
		writeError(w, http.StatusBadRequest, msgNoVideo)
	case errors.As(err, &fmtErr):
		writeError(w, http.StatusBadRequest, fmtErr.Message())
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
	case errors.As(err, &encErr):
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   msgCompressError,
			Details: encErr.Detail,
		})
	case errors.As(err, &trErr):
		writeError(w, http.StatusInternalServerError, msgSendError)
	case errors.As(err, &stageErr):
		writeError(w, http.StatusInternalServerError, msgUploadFailed)
	default:
		h.logger.Error("unexpected compression error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, msgInternalError)
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
