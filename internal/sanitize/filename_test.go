package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name                 string
		title, ext, fallback string
		want                 string
	}{
		{"unsafe chars", "Hello:/\\*?\"<>| World", "mp4", "video_hd.mp4", "Hello_ World.mp4"},
		{"empty title uses quality name", "", "mp4", "video_low.mp4", "video_low.mp4"},
		{"ext from fallback", "Clip", "", "video_hd.mp4", "Clip.mp4"},
		{"ext with dot", "Clip", ".WEBM", "", "Clip.webm"},
		{"all empty", "", "", "", "video"},
		{"whitespace and controls", "  a\tb\n\x07c  ", "mp4", "", "a b c.mp4"},
		{"trailing dots", "Sunset...", "mp4", "", "Sunset.mp4"},
		{"reserved device", "CON", "mp4", "", "_CON.mp4"},
		{"only separators", "///", "mp4", "video_hd.mp4", "_.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Filename(tt.title, tt.ext, tt.fallback); got != tt.want {
				t.Errorf("Filename(%q, %q, %q) = %q, want %q", tt.title, tt.ext, tt.fallback, got, tt.want)
			}
		})
	}
}

func TestFilename_LongTitleKeepsRunes(t *testing.T) {
	title := strings.Repeat("видео ", 40)
	got := Filename(title, "mp4", "")
	if !utf8.ValidString(got) {
		t.Fatalf("invalid UTF-8: %q", got)
	}
	if base := strings.TrimSuffix(got, ".mp4"); len(base) > MaxNameLength {
		t.Fatalf("too long: %d", len(base))
	}
}
