package media

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// readProgress scans ffmpeg -progress output and calls emit at the end of
// every block. A block is a run of key=value lines terminated by a
// "progress=continue" or "progress=end" line. It returns when r is exhausted.
func readProgress(r io.Reader, emit func(Progress)) {
	var cur Progress
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		if applyProgressField(&cur, strings.TrimSpace(key), strings.TrimSpace(value)) {
			emit(cur)
		}
	}
	// Drain whatever remains so the process never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// applyProgressField updates p with one key=value pair and reports whether
// the pair closed a block.
func applyProgressField(p *Progress, key, value string) bool {
	switch key {
	case "frame":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.Frame = n
		}
	case "fps":
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			p.FPS = f
		}
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds; out_time_ms is a long-standing misnomer.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.OutTime = time.Duration(us) * time.Microsecond
		}
	case "total_size":
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.TotalSize = n
		}
	case "speed":
		p.Speed = value
	case "progress":
		p.Done = value == "end"
		return true
	}
	return false
}
