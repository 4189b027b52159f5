package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/videocompress-api/internal/compress"
	"github.com/maauso/videocompress-api/internal/media"
	"github.com/maauso/videocompress-api/internal/storage"
)

// mp4Header is the start of an ISO BMFF file with an mp4 brand.
var mp4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm', 0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2'}

// mockEncoder implements media.Encoder for testing.
type mockEncoder struct {
	mock.Mock
}

func (m *mockEncoder) Compress(ctx context.Context, input, output string, obs media.Observer) error {
	args := m.Called(ctx, input, output, obs)
	return args.Error(0)
}

// mockCompressor implements Compressor for testing.
type mockCompressor struct {
	mock.Mock
}

func (m *mockCompressor) Process(ctx context.Context, up compress.Upload, deliver compress.DeliverFunc) (*compress.Request, error) {
	args := m.Called(ctx, up, deliver)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*compress.Request), args.Error(1)
}

// compressorFunc adapts a function to Compressor.
type compressorFunc func(ctx context.Context, up compress.Upload, deliver compress.DeliverFunc) (*compress.Request, error)

func (f compressorFunc) Process(ctx context.Context, up compress.Upload, deliver compress.DeliverFunc) (*compress.Request, error) {
	return f(ctx, up, deliver)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRouter(t *testing.T, opts ...HandlerOption) (http.Handler, *mockEncoder, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	enc := &mockEncoder{}
	logger := testLogger()
	svc := compress.NewService(store, enc, logger)
	h := NewHandlers(svc, logger, opts...)
	return NewRouter(h, logger, DefaultConfig()), enc, dir
}

// multipartBody builds a multipart body with an optional file part.
func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postVideo(t *testing.T, router http.Handler, field, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, field, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/compress-video", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary files left behind")
}

func TestHealth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "videocompress_")
}

func TestCompressVideo_Success(t *testing.T) {
	router, enc, dir := newTestRouter(t)

	compressed := append(append([]byte{}, mp4Header...), []byte("compressed payload")...)
	enc.On("Compress", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			_ = os.WriteFile(args.String(2), compressed, 0o600)
		}).
		Return(nil).Once()

	rec := postVideo(t, router, VideoField, "holiday.mp4", []byte("original video"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=compressed_video.mp4", rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "42", rec.Header().Get("Content-Length"))
	assert.Equal(t, compressed, rec.Body.Bytes())

	staged, err := os.ReadFile(enc.Calls[0].Arguments.String(1))
	assert.True(t, os.IsNotExist(err), "staged input should be removed, got %q", staged)

	enc.AssertExpectations(t)
	assertNoTempFiles(t, dir)
}

func TestCompressVideo_NoVideo(t *testing.T) {
	router, enc, dir := newTestRouter(t)

	tests := []struct {
		name  string
		build func() *http.Request
	}{
		{
			name: "no file part",
			build: func() *http.Request {
				body, ct := multipartBody(t, "", "", nil)
				req := httptest.NewRequest(http.MethodPost, "/compress-video", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
		},
		{
			name: "wrong field name",
			build: func() *http.Request {
				body, ct := multipartBody(t, "file", "a.mp4", []byte("v"))
				req := httptest.NewRequest(http.MethodPost, "/compress-video", body)
				req.Header.Set("Content-Type", ct)
				return req
			},
		},
		{
			name: "not multipart",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/compress-video", strings.NewReader(`{"video":"x"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, tt.build())

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, map[string]string{"error": "No video file provided"}, decodeError(t, rec))
		})
	}

	enc.AssertNotCalled(t, "Compress", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assertNoTempFiles(t, dir)
}

func TestCompressVideo_UnsupportedFormat(t *testing.T) {
	router, enc, dir := newTestRouter(t)

	rec := postVideo(t, router, VideoField, "notes.txt", []byte("hello"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]string{
		"error": "Format 'txt' not supported. Supported formats are: mp4, mkv, mov, avi, flv, webm, wmv",
	}, decodeError(t, rec))

	enc.AssertNotCalled(t, "Compress", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assertNoTempFiles(t, dir)
}

func TestCompressVideo_EncodeFailure(t *testing.T) {
	router, enc, dir := newTestRouter(t)

	enc.On("Compress", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			_ = os.WriteFile(args.String(2), []byte("partial"), 0o600)
		}).
		Return(&media.FFmpegError{
			Err:    errors.New("exit status 1"),
			Stderr: "Invalid data found when processing input",
		}).Once()

	rec := postVideo(t, router, VideoField, "broken.mkv", []byte("garbage"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]string{
		"error":   "Error compressing video.",
		"details": "ffmpeg exited: exit status 1: Invalid data found when processing input",
	}, decodeError(t, rec))
	assertNoTempFiles(t, dir)
}

func TestCompressVideo_TooLarge(t *testing.T) {
	router, enc, dir := newTestRouter(t, WithMaxUploadBytes(512))

	rec := postVideo(t, router, VideoField, "big.mp4", bytes.Repeat([]byte("x"), 4096))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, map[string]string{"error": "Video file too large"}, decodeError(t, rec))

	enc.AssertNotCalled(t, "Compress", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assertNoTempFiles(t, dir)
}

func TestCompressVideo_TransferFailureBeforeCommit(t *testing.T) {
	svc := &mockCompressor{}
	svc.On("Process", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &compress.TransferError{Err: errors.New("read output: io error")})
	router := NewRouter(NewHandlers(svc, testLogger()), testLogger(), DefaultConfig())

	rec := postVideo(t, router, VideoField, "a.mp4", []byte("v"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]string{"error": "Error sending compressed video"}, decodeError(t, rec))
}

func TestCompressVideo_TransferFailureAfterCommit(t *testing.T) {
	svc := compressorFunc(func(ctx context.Context, _ compress.Upload, deliver compress.DeliverFunc) (*compress.Request, error) {
		err := deliver(ctx, compress.Deliverable{
			Name:        compress.DownloadName,
			ContentType: "video/mp4",
			Size:        -1,
			Body:        io.MultiReader(strings.NewReader("partial"), errReader{}),
		})
		require.Error(t, err)
		return nil, &compress.TransferError{Err: err}
	})
	router := NewRouter(NewHandlers(svc, testLogger()), testLogger(), DefaultConfig())

	rec := postVideo(t, router, VideoField, "a.mp4", []byte("v"))

	// The success response has started; no JSON error is appended.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "partial", rec.Body.String())
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
}

func TestCompressVideo_StageFailure(t *testing.T) {
	svc := &mockCompressor{}
	svc.On("Process", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &compress.StageError{Err: errors.New("disk full")})
	router := NewRouter(NewHandlers(svc, testLogger()), testLogger(), DefaultConfig())

	rec := postVideo(t, router, VideoField, "a.mp4", []byte("v"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]string{"error": "Error receiving video upload"}, decodeError(t, rec))
}

func TestCompressVideo_PassesFilenameAndBody(t *testing.T) {
	svc := &mockCompressor{}
	var gotName, gotBody string
	svc.On("Process", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			up := args.Get(1).(compress.Upload)
			gotName = up.Filename
			b, _ := io.ReadAll(up.Body)
			gotBody = string(b)
		}).
		Return(nil, compress.ErrNoVideo)
	router := NewRouter(NewHandlers(svc, testLogger()), testLogger(), DefaultConfig())

	rec := postVideo(t, router, VideoField, "Clip.MOV", []byte("payload"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Clip.MOV", gotName)
	assert.Equal(t, "payload", gotBody)
}

func TestCompressVideo_MethodNotAllowed(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/compress-video", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("disk read failed") }
