package compress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/maauso/videocompress-api/internal/media"
	"github.com/maauso/videocompress-api/internal/metrics"
	"github.com/maauso/videocompress-api/internal/storage"
)

const (
	// DownloadName is the filename suggested to clients for the compressed video.
	DownloadName = "compressed_video.mp4"
	// OutputSuffix terminates every staged output path.
	OutputSuffix = "compressed.mp4"
	// sniffLen is how many leading bytes are kept for content type detection.
	sniffLen = 3072
)

// ErrNoOutput is returned when the encoder reports success but left no file.
var ErrNoOutput = errors.New("encoder produced no output")

// Upload is an inbound video payload.
type Upload struct {
	// Filename is the original client filename, used only for format validation.
	Filename string
	// Body streams the uploaded bytes.
	Body io.Reader
}

// Deliverable is the compressed result handed to a DeliverFunc.
type Deliverable struct {
	// Name is the suggested download filename.
	Name string
	// ContentType is a binary media type sniffed from the output.
	ContentType string
	// Size is the output length in bytes, or -1 if unknown.
	Size int64
	// Body streams the compressed bytes. It is only valid until the
	// DeliverFunc returns.
	Body io.Reader
}

// DeliverFunc transfers a compressed result to the caller. The staged files
// are removed after it returns, whatever the result.
type DeliverFunc func(ctx context.Context, d Deliverable) error

// Service runs compression requests end to end.
// Each call to Process is independent; the service holds no per-request state.
type Service struct {
	storage       storage.Storage
	encoder       media.Encoder
	logger        *slog.Logger
	encodeTimeout time.Duration
	archive       bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithEncodeTimeout bounds the time the encoder may run for one request.
// Zero leaves the encode bounded only by the caller's context.
func WithEncodeTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d >= 0 {
			s.encodeTimeout = d
		}
	}
}

// WithArchive uploads every compressed output to S3 before delivery.
// Archival failures are logged and never fail the request.
func WithArchive(enabled bool) ServiceOption {
	return func(s *Service) {
		s.archive = enabled
	}
}

// NewService creates a new Service.
func NewService(store storage.Storage, encoder media.Encoder, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		storage: store,
		encoder: encoder,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Process stages the upload, validates its format, encodes it and passes the
// result to deliver. Every temporary file created on the way is removed before
// Process returns, on success and on every failure path.
//
// The returned Request is nil only when err is ErrNoVideo.
func (s *Service) Process(ctx context.Context, up Upload, deliver DeliverFunc) (req *Request, err error) {
	if up.Body == nil || up.Filename == "" {
		return nil, ErrNoVideo
	}

	req = NewRequest(up.Filename)
	log := s.logger.With(
		slog.String("request_id", req.ID),
		slog.String("format", req.Format),
	)

	defer func() {
		s.cleanup(req, log)
		s.record(req, err, log)
	}()

	if err := s.stage(ctx, req, up.Body, log); err != nil {
		return req, err
	}

	if !IsSupported(req.Format) {
		_ = req.TransitionTo(StatusRejected)
		return req, &UnsupportedFormatError{Format: req.Format}
	}

	req.SetOutput(s.storage.NewTempPath(OutputSuffix))
	if err := s.encode(ctx, req, log); err != nil {
		return req, err
	}

	out, closer, err := s.open(ctx, req)
	if err != nil {
		return req, err
	}
	// Runs before cleanup so the output is closed when it is removed.
	defer func() { _ = closer.Close() }()

	if s.archive {
		s.archiveOutput(ctx, req, log)
	}

	_ = req.TransitionTo(StatusTransferring)
	if err := deliver(ctx, out); err != nil {
		_ = req.Fail(err.Error())
		return req, &TransferError{Err: err}
	}

	_ = req.TransitionTo(StatusCompleted)
	return req, nil
}

// stage writes the upload to temporary storage and moves req to STAGED.
func (s *Service) stage(ctx context.Context, req *Request, body io.Reader, log *slog.Logger) error {
	hr := &headReader{r: body, limit: sniffLen}
	path, err := s.storage.SaveTemp(ctx, "upload", hr)
	if err != nil {
		_ = req.Fail(err.Error())
		return &StageError{Err: err}
	}
	req.SetInput(path, hr.n)
	_ = req.TransitionTo(StatusStaged)
	metrics.InputBytesTotal.Add(float64(hr.n))

	log.Debug("upload staged",
		slog.String("path", path),
		slog.Int64("bytes", hr.n),
		slog.String("detected_type", mimetype.Detect(hr.head.Bytes()).String()),
	)
	return nil
}

// encode runs the encoder and moves req to ENCODED or FAILED.
func (s *Service) encode(ctx context.Context, req *Request, log *slog.Logger) error {
	if s.encodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.encodeTimeout)
		defer cancel()
	}

	_ = req.TransitionTo(StatusEncoding)
	metrics.EncodesInProgress.Inc()
	start := time.Now()

	obs := media.ObserverFuncs{
		Start: func(commandLine string) {
			log.Info("ffmpeg process started", slog.String("command", commandLine))
		},
		Progress: func(p media.Progress) {
			log.Debug("processing",
				slog.Int64("frame", p.Frame),
				slog.Float64("fps", p.FPS),
				slog.Duration("out_time", p.OutTime),
				slog.String("speed", p.Speed),
			)
		},
	}
	err := s.encoder.Compress(ctx, req.InputPath, req.OutputPath, obs)

	metrics.EncodesInProgress.Dec()
	metrics.EncodeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		detail := s.redact(req, failureDetail(err))
		_ = req.Fail(detail)
		log.Error("ffmpeg error", slog.String("error", err.Error()))
		return &EncodeError{Detail: detail, Err: err}
	}

	_ = req.TransitionTo(StatusEncoded)
	log.Info("compression finished successfully",
		slog.Duration("encode_duration", time.Since(start)),
	)
	return nil
}

// statter is implemented by *os.File.
type statter interface {
	Stat() (fs.FileInfo, error)
}

// open prepares the staged output for delivery. The caller closes the
// returned Closer once delivery is done.
func (s *Service) open(ctx context.Context, req *Request) (Deliverable, io.Closer, error) {
	rc, err := s.storage.LoadTemp(ctx, req.OutputPath)
	if err != nil {
		_ = req.Fail(ErrNoOutput.Error())
		return Deliverable{}, nil, &EncodeError{Detail: ErrNoOutput.Error(), Err: fmt.Errorf("%w: %w", ErrNoOutput, err)}
	}

	size := int64(-1)
	if f, ok := rc.(statter); ok {
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
	}
	if size >= 0 {
		req.SetOutputBytes(size)
		metrics.OutputBytesTotal.Add(float64(size))
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		_ = rc.Close()
		_ = req.Fail(err.Error())
		return Deliverable{}, nil, &TransferError{Err: fmt.Errorf("read output: %w", err)}
	}
	head = head[:n]

	return Deliverable{
		Name:        DownloadName,
		ContentType: binaryContentType(head),
		Size:        size,
		Body:        io.MultiReader(bytes.NewReader(head), rc),
	}, rc, nil
}

// archiveOutput copies the staged output to S3. Failures are logged only.
func (s *Service) archiveOutput(ctx context.Context, req *Request, log *slog.Logger) {
	rc, err := s.storage.LoadTemp(ctx, req.OutputPath)
	if err != nil {
		metrics.ArchiveUploadsTotal.WithLabelValues("error").Inc()
		log.Warn("archive skipped", slog.String("error", err.Error()))
		return
	}
	defer func() { _ = rc.Close() }()

	url, err := s.storage.UploadToS3(ctx, req.ID+".mp4", rc)
	switch {
	case errors.Is(err, storage.ErrS3NotConfigured):
		return
	case err != nil:
		metrics.ArchiveUploadsTotal.WithLabelValues("error").Inc()
		log.Warn("archive upload failed", slog.String("error", err.Error()))
	default:
		metrics.ArchiveUploadsTotal.WithLabelValues("success").Inc()
		log.Info("compressed video archived", slog.String("url", url))
	}
}

// cleanup removes the staged files. It runs on a context detached from
// cancellation so an aborted request still releases its disk space.
func (s *Service) cleanup(req *Request, log *slog.Logger) {
	paths := req.TempPaths()
	if len(paths) == 0 {
		return
	}
	if err := s.storage.CleanupTemp(context.Background(), paths); err != nil {
		log.Error("failed to remove temporary files", slog.String("error", err.Error()))
		return
	}
	log.Debug("temporary files removed", slog.Int("count", len(paths)))
}

// record logs the final outcome and updates the outcome counter.
func (s *Service) record(req *Request, err error, log *slog.Logger) {
	status := req.GetStatus()
	metrics.CompressionsTotal.WithLabelValues(string(status)).Inc()

	attrs := []any{
		slog.String("status", string(status)),
		slog.Int64("input_bytes", req.InputBytes),
		slog.Int64("output_bytes", req.OutputBytes),
		slog.Duration("duration", time.Since(req.CreatedAt)),
	}
	switch {
	case err == nil:
		log.Info("compression request completed", attrs...)
	case status == StatusRejected:
		log.Warn("compression request rejected", attrs...)
	default:
		log.Error("compression request failed", append(attrs, slog.String("error", err.Error()))...)
	}
}

// redact replaces staged paths in encoder output so clients never see the
// server's filesystem layout.
func (s *Service) redact(req *Request, detail string) string {
	replacements := make([]string, 0, 6)
	if req.InputPath != "" {
		replacements = append(replacements, req.InputPath, "input")
	}
	if req.OutputPath != "" {
		replacements = append(replacements, req.OutputPath, "output")
	}
	if req.InputPath != "" {
		replacements = append(replacements, filepath.Dir(req.InputPath)+string(filepath.Separator), "")
	}
	return strings.NewReplacer(replacements...).Replace(detail)
}

// failureDetail returns the most useful description of an encode failure.
func failureDetail(err error) string {
	var ffErr *media.FFmpegError
	if errors.As(err, &ffErr) {
		return ffErr.Detail()
	}
	return err.Error()
}

// binaryContentType sniffs head and falls back to application/octet-stream
// for anything that is not a video container.
func binaryContentType(head []byte) string {
	mt := mimetype.Detect(head)
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") {
			return mt.String()
		}
	}
	return "application/octet-stream"
}

// headReader counts bytes read and keeps the first limit bytes.
type headReader struct {
	r     io.Reader
	limit int
	head  bytes.Buffer
	n     int64
}

func (h *headReader) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	if n > 0 {
		if room := h.limit - h.head.Len(); room > 0 {
			h.head.Write(p[:min(n, room)])
		}
		h.n += int64(n)
	}
	return n, err
}
