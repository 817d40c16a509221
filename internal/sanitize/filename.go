// Package sanitize turns video titles into portable file names.
package sanitize

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxNameLength is the maximum byte length of the name before the extension.
	MaxNameLength = 120
	// DefaultName is used when both the title and the fallback are empty.
	DefaultName = "video"
)

var (
	unsafeChars = regexp.MustCompile(`[\\/:*?"<>|]+`)
	spaces      = regexp.MustCompile(`\s+`)
)

// reserved device names rejected by Windows regardless of extension.
var reserved = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "lpt1": true, "lpt2": true, "lpt3": true,
}

// Filename builds a safe file name from title and ext (with or without dot).
// An empty title uses the stem of fallback, typically the quality default
// such as "video_hd.mp4".
func Filename(title, ext, fallback string) string {
	name := clean(title)
	if name == "" {
		name = clean(strings.TrimSuffix(filepath.Base(fallback), filepath.Ext(fallback)))
	}
	if name == "" || name == "." {
		name = DefaultName
	}
	if reserved[strings.ToLower(name)] {
		name = "_" + name
	}
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		ext = strings.TrimPrefix(strings.ToLower(filepath.Ext(fallback)), ".")
	}
	if ext == "" {
		return name
	}
	return name + "." + ext
}

func clean(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = unsafeChars.ReplaceAllString(s, "_")
	s = spaces.ReplaceAllString(strings.TrimSpace(s), " ")
	s = truncate(s, MaxNameLength)
	// Trailing dots and spaces are dropped by Windows.
	return strings.TrimRight(s, ". ")
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
