package ytsave

import (
	"fmt"
	"regexp"

	"github.com/ytget/ytsave/errs"
	"github.com/ytget/ytsave/internal/logger"
)

// VideoIDLength is the fixed length of a video identifier.
const VideoIDLength = 11

// locatorRe matches the recognized locator shapes and captures the identifier.
// The host must start at a label boundary, so evilyoutube.com does not match.
// The first 11 identifier characters after a pattern are taken.
var locatorRe = regexp.MustCompile(
	`(?:^|[\s/.@])(?:youtube\.com/(?:watch\?(?:[^#\s]*?&)?v=|shorts/|embed/|live/)|youtu\.be/)([0-9A-Za-z_-]{11})`,
)

// ResolveID extracts the video identifier from a locator such as
// https://www.youtube.com/watch?v=dQw4w9WgXcQ or https://youtu.be/dQw4w9WgXcQ.
// It performs no I/O. A locator without a recognized pattern yields an
// *errs.Error of kind errs.ErrInvalidLocator.
func ResolveID(locator string) (string, error) {
	m := locatorRe.FindStringSubmatch(locator)
	if m == nil {
		logger.WithComponent(logger.ComponentResolver).Debug("No identifier in locator", map[string]interface{}{
			"locator": locator,
		})
		return "", errs.New(errs.ErrInvalidLocator, "", fmt.Errorf("no video identifier in %q", locator))
	}
	return m[1], nil
}

// CanonicalURL returns the watch URL for a video identifier.
func CanonicalURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
