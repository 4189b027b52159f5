package compress

import (
	"slices"
	"strings"
)

// supportedFormats is the allow-list of upload extensions, in the order
// they are reported to clients.
var supportedFormats = []string{"mp4", "mkv", "mov", "avi", "flv", "webm", "wmv"}

// SupportedFormats returns a copy of the accepted upload extensions.
func SupportedFormats() []string {
	return slices.Clone(supportedFormats)
}

// IsSupported reports whether ext (without the dot, any case) is accepted.
func IsSupported(ext string) bool {
	return slices.Contains(supportedFormats, strings.ToLower(ext))
}

// Extension returns the lowercased text after the last "." in filename.
// A filename without a dot is returned whole, lowercased.
func Extension(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		filename = filename[i+1:]
	}
	return strings.ToLower(filename)
}
