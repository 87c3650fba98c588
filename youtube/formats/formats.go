package formats

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/ytget/ytsave/errs"
	"github.com/ytget/ytsave/internal/logger"
	"github.com/ytget/ytsave/internal/mimeext"
	"github.com/ytget/ytsave/types"
	"github.com/ytget/ytsave/youtube/innertube"
)

var heightRe = regexp.MustCompile(`([0-9]{3,4})p`)

func parseHeight(label string) int {
	m := heightRe.FindStringSubmatch(label)
	if len(m) >= 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v
		}
	}
	return 0
}

// ParseFormats parses the InnerTube player response and returns a list of
// available media formats (both progressive and adaptive).
func ParseFormats(data *innertube.PlayerResponse) []types.Format {
	all := make([]any, 0, len(data.StreamingData.Formats)+len(data.StreamingData.AdaptiveFormats))
	all = append(all, data.StreamingData.Formats...)
	all = append(all, data.StreamingData.AdaptiveFormats...)

	formats := make([]types.Format, 0, len(all))
	for _, formatData := range all {
		f, ok := formatData.(map[string]any)
		if !ok {
			continue
		}

		var itag int
		if v, ok := f["itag"].(float64); ok {
			itag = int(v)
		}
		var bitrate int
		if v, ok := f["bitrate"].(float64); ok {
			bitrate = int(v)
		}
		var size int64
		if v, ok := f["contentLength"].(string); ok {
			if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
				size = parsed
			}
		}

		mimeType, _ := f["mimeType"].(string)
		quality, _ := f["qualityLabel"].(string)
		_, hasAudioQuality := f["audioQuality"]
		_, hasAudioChannels := f["audioChannels"]
		base := mimeext.BaseType(mimeType)

		format := types.Format{
			Itag:     itag,
			MimeType: mimeType,
			Quality:  quality,
			Bitrate:  bitrate,
			Size:     size,
			HasVideo: strings.HasPrefix(base, "video/"),
			HasAudio: strings.HasPrefix(base, "audio/") || hasAudioQuality || hasAudioChannels,
		}

		if urlVal, ok := f["url"].(string); ok {
			format.URL = urlVal
		} else if sc, ok := f["signatureCipher"].(string); ok {
			format.SignatureCipher = sc
		} else if sc, ok := f["cipher"].(string); ok {
			format.SignatureCipher = sc
		}

		formats = append(formats, format)
	}
	return formats
}

// SelectBest picks the best playable MP4 format for kind.
//   - VideoAudio: muxed video/mp4 with an audio track, by height then bitrate.
//   - Audio: audio-only audio/mp4, by bitrate.
//
// Ties keep the earlier format. No candidate yields errs.ErrNoFormat.
func SelectBest(formats []types.Format, kind types.MediaKind) (*types.Format, error) {
	log := logger.WithComponent(logger.ComponentFormat)

	var best *types.Format
	for i := range formats {
		f := formats[i]
		if !matchesKind(f, kind) || !playable(f) {
			continue
		}
		if best == nil {
			best = &formats[i]
			continue
		}
		if kind == types.Audio {
			if f.Bitrate > best.Bitrate {
				best = &formats[i]
			}
			continue
		}
		if betterByHeightThenBitrate(f, *best) {
			best = &formats[i]
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no %s format among %d", errs.ErrNoFormat, kind, len(formats))
	}

	selected := *best
	log.Debug("Selected format", map[string]interface{}{
		"kind":    kind.String(),
		"itag":    selected.Itag,
		"mime":    selected.MimeType,
		"quality": selected.Quality,
		"bitrate": selected.Bitrate,
	})
	return &selected, nil
}

// Decipherer turns an obfuscated signature into a playable one.
type Decipherer interface {
	Decipher(ctx context.Context, playerJSURL, signature string) (string, error)
}

// NeedsDecipher reports whether f must go through a Decipherer before use.
func NeedsDecipher(f types.Format) bool {
	return !hasDirectURL(f) && strings.TrimSpace(f.SignatureCipher) != ""
}

// ResolveURL builds the final downloadable URL for a selected format.
// Direct URLs are used as is; signatureCipher formats have their 's' value
// deciphered with d. The throttling 'n' parameter is left untouched.
func ResolveURL(ctx context.Context, f types.Format, d Decipherer, playerJSURL string) (string, error) {
	if hasDirectURL(f) {
		u, err := url.Parse(f.URL)
		if err != nil {
			return "", fmt.Errorf("parse direct url failed: %w", err)
		}
		return withPlaybackParams(u), nil
	}
	if strings.TrimSpace(f.SignatureCipher) == "" {
		return "", fmt.Errorf("%w: no url or signatureCipher for format %d", errs.ErrNoFormat, f.Itag)
	}
	parsed, err := url.ParseQuery(f.SignatureCipher)
	if err != nil {
		return "", fmt.Errorf("parse signatureCipher failed: %w", err)
	}
	sig := parsed.Get("s")
	sp := parsed.Get("sp")
	if sp == "" {
		sp = "signature"
	}
	cipherURL := parsed.Get("url")
	if cipherURL == "" || sig == "" {
		return "", fmt.Errorf("%w: signatureCipher missing signature or url", errs.ErrCipherFailed)
	}
	if d == nil {
		return "", fmt.Errorf("%w: no decipherer configured", errs.ErrCipherFailed)
	}
	decodedSig, err := d.Decipher(ctx, playerJSURL, sig)
	if err != nil {
		return "", fmt.Errorf("decipher signature failed: %w", err)
	}
	u, err := url.Parse(cipherURL)
	if err != nil {
		return "", fmt.Errorf("parse cipher url failed: %w", err)
	}
	q := u.Query()
	q.Set(sp, decodedSig)
	u.RawQuery = q.Encode()
	return withPlaybackParams(u), nil
}

func withPlaybackParams(u *url.URL) string {
	q := u.Query()
	changed := false
	// Ensure ratebypass for ranged requests
	if q.Get("ratebypass") == "" {
		q.Set("ratebypass", "yes")
		changed = true
	}
	// Encourage redirect behavior to non-alt hosts
	if q.Get("alr") == "" {
		q.Set("alr", "yes")
		changed = true
	}
	if changed {
		u.RawQuery = q.Encode()
	}
	return u.String()
}
