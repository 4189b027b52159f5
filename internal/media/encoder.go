// Package media provides video compression backed by an external encoder.
package media

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
)

// Profile describes the fixed encoding parameters applied to every upload.
type Profile struct {
	// VideoCodec is the ffmpeg encoder name.
	VideoCodec string `validate:"required"`
	// CRF is the constant rate factor. Higher values give smaller, lower-fidelity output.
	CRF int `validate:"min=0,max=51"`
	// Preset is the x264 speed preset.
	Preset string `validate:"oneof=ultrafast superfast veryfast faster fast medium slow slower veryslow placebo"`
	// Strict relaxes standards compliance (-strict -2) so experimental codec
	// and container combinations are accepted.
	Strict bool
}

// DefaultProfile returns the compression profile favouring small output and
// encoding speed over fidelity.
func DefaultProfile() Profile {
	return Profile{
		VideoCodec: "libx264",
		CRF:        30,
		Preset:     "ultrafast",
		Strict:     true,
	}
}

// Validate checks the profile values against the ranges the encoder accepts.
func (p Profile) Validate() error {
	return validator.New().Struct(p)
}

// Progress is a periodic report from a running encode.
type Progress struct {
	// Frame is the number of frames written so far.
	Frame int64
	// FPS is the current encoding rate in frames per second.
	FPS float64
	// OutTime is the media timestamp reached in the output.
	OutTime time.Duration
	// TotalSize is the number of bytes written to the output so far.
	TotalSize int64
	// Speed is the encoding speed relative to realtime, e.g. "2.5x".
	Speed string
	// Done is true for the final report of a successful run.
	Done bool
}

// Observer receives informational events during an encode.
// Neither callback affects the outcome of the encode.
type Observer interface {
	// OnStart is called once with the full command line before the encoder runs.
	OnStart(commandLine string)
	// OnProgress is called for every progress report emitted by the encoder.
	OnProgress(p Progress)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are ignored.
type ObserverFuncs struct {
	Start    func(commandLine string)
	Progress func(p Progress)
}

// OnStart implements Observer.
func (o ObserverFuncs) OnStart(commandLine string) {
	if o.Start != nil {
		o.Start(commandLine)
	}
}

// OnProgress implements Observer.
func (o ObserverFuncs) OnProgress(p Progress) {
	if o.Progress != nil {
		o.Progress(p)
	}
}

// Encoder defines the interface for the external transcoding operation.
type Encoder interface {
	// Compress re-encodes the video at input into an MP4 container at output.
	// It blocks until the encode reaches a terminal state: a nil error means
	// output holds a complete file. On failure output may be absent or partial.
	// obs may be nil.
	Compress(ctx context.Context, input, output string, obs Observer) error
}
