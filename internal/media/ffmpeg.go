package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// detailLines is the number of trailing stderr lines kept in FFmpegError.Detail.
const detailLines = 5

// ErrInvalidPaths is returned when input or output paths are empty or identical.
var ErrInvalidPaths = errors.New("invalid paths: input and output must be distinct and non-empty")

// Compile-time check that FFmpegEncoder implements Encoder.
var _ Encoder = (*FFmpegEncoder)(nil)

// FFmpegEncoder implements Encoder using the ffmpeg CLI.
type FFmpegEncoder struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	profile    Profile
}

// NewFFmpegEncoder creates a new FFmpegEncoder for the given profile.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegEncoder(ffmpegPath string, profile Profile) (*FFmpegEncoder, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return &FFmpegEncoder{ffmpegPath: ffmpegPath, profile: profile}, nil
}

// Profile returns the encoding profile applied by the encoder.
func (e *FFmpegEncoder) Profile() Profile {
	return e.profile
}

// Compress re-encodes input into an MP4 at output using the configured profile.
// Progress is read from ffmpeg's machine-readable -progress stream on stdout.
func (e *FFmpegEncoder) Compress(ctx context.Context, input, output string, obs Observer) error {
	if input == "" || output == "" || input == output {
		return ErrInvalidPaths
	}
	if obs == nil {
		obs = ObserverFuncs{}
	}

	args := e.buildArgs(input, output)

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}

	obs.OnStart(e.ffmpegPath + " " + strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		return &FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}

	// All reads must finish before Wait closes the pipe.
	readProgress(stdout, obs.OnProgress)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

func (e *FFmpegEncoder) buildArgs(input, output string) []string {
	args := []string{
		"-y",           // Overwrite output file without asking
		"-hide_banner", // Keep stderr to diagnostics only
		"-nostats",     // Progress comes from -progress instead
		"-progress", "pipe:1", // key=value progress blocks on stdout
		"-i", input,
		"-c:v", e.profile.VideoCodec,
		"-crf", strconv.Itoa(e.profile.CRF),
		"-preset", e.profile.Preset,
	}
	if e.profile.Strict {
		args = append(args, "-strict", "-2")
	}
	return append(args, output)
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Detail returns a short human-readable failure description: the exit error
// followed by the last few lines ffmpeg wrote to stderr.
func (e *FFmpegError) Detail() string {
	var tail []string
	lines := strings.Split(strings.TrimSpace(e.Stderr), "\n")
	for i := len(lines) - 1; i >= 0 && len(tail) < detailLines; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			tail = append([]string{line}, tail...)
		}
	}

	msg := "ffmpeg exited"
	if e.Err != nil {
		msg = "ffmpeg exited: " + e.Err.Error()
	}
	if len(tail) == 0 {
		return msg
	}
	return msg + ": " + strings.Join(tail, "\n")
}
