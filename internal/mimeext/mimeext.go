// Package mimeext picks a file extension for downloaded media.
package mimeext

import (
	"mime"
	"path/filepath"
	"strings"
)

// DefaultExt is used when neither the file name nor the MIME type says more.
const DefaultExt = "mp4"

// byType maps media types seen from download endpoints and CDNs to extensions.
var byType = map[string]string{
	"video/mp4":        "mp4",
	"video/mpeg4":      "mp4",
	"audio/mp4":        "m4a",
	"video/webm":       "webm",
	"audio/webm":       "webm",
	"video/quicktime":  "mov",
	"video/x-matroska": "mkv",
	"video/x-flv":      "flv",
	"video/3gpp":       "3gp",
	"audio/mpeg":       "mp3",
	"image/jpeg":       "jpg",
	"image/png":        "png",
	"image/webp":       "webp",
}

// opaque types carry no hint; the default applies.
var opaque = map[string]bool{
	"application/octet-stream":   true,
	"binary/octet-stream":        true,
	"application/download":       true,
	"application/force-download": true,
}

// ExtFromMime returns the extension (without dot) for a Content-Type value.
func ExtFromMime(contentType string) string {
	mt, _, err := mime.ParseMediaType(strings.TrimSpace(contentType))
	if err != nil || opaque[mt] {
		return DefaultExt
	}
	if ext, ok := byType[mt]; ok {
		return ext
	}
	if i := strings.IndexByte(mt, '/'); i >= 0 && i < len(mt)-1 {
		return strings.TrimPrefix(mt[i+1:], "x-")
	}
	return DefaultExt
}

// Ext prefers the extension of a server-provided file name and falls back to
// the MIME type. Names ending in an unknown or overly long suffix are ignored.
func Ext(contentType, filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(filename)), "."))
	if ext != "" && len(ext) <= 5 && isKnown(ext) {
		return ext
	}
	return ExtFromMime(contentType)
}

func isKnown(ext string) bool {
	for _, e := range byType {
		if e == ext {
			return true
		}
	}
	return false
}
