// Package lyrics defines the boundary with the external lyric-extraction
// service and the normalization applied to the time-tagged text it returns.
package lyrics

import (
	"context"
	"regexp"
	"strings"
)

// Gateway extracts raw lyric text for a track. Implementations live outside
// this library (embedded-tag readers, sidecar .lrc files, a server endpoint).
// An empty string with a nil error means the track has no lyrics; any error
// is treated by callers identically to "no lyrics available".
type Gateway interface {
	Extract(ctx context.Context, locator string) (string, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, locator string) (string, error)

// Extract implements Gateway.
func (f GatewayFunc) Extract(ctx context.Context, locator string) (string, error) {
	return f(ctx, locator)
}

// timestampRe matches LRC timing markers of the form [mm:ss], [mm:ss.x],
// [mm:ss.xx], or [mm:ss.xxx]. A line may carry several.
var timestampRe = regexp.MustCompile(`\[\d{1,2}:\d{2}(?:\.\d{1,3})?\]`)

// StripTimestamps removes all timing markers from a lyric line.
func StripTimestamps(line string) string {
	return timestampRe.ReplaceAllString(line, "")
}

// Normalize converts raw time-tagged lyric text into the stored form:
// timing markers removed, lower-cased, surrounding whitespace trimmed.
// Line structure is preserved so search can extract display lines.
func Normalize(raw string) string {
	return strings.TrimSpace(strings.ToLower(StripTimestamps(raw)))
}

// FirstMatchingLine returns the first line of content containing query,
// with timing markers stripped and whitespace trimmed, for display.
// Both arguments are expected to be lower-cased already.
func FirstMatchingLine(content, query string) (string, bool) {
	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, query) {
			return strings.TrimSpace(StripTimestamps(line)), true
		}
	}
	return "", false
}
