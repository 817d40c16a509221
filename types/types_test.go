package types

import (
	"testing"
)

func TestQualityFilename(t *testing.T) {
	tests := []struct {
		q    Quality
		want string
	}{
		{QualityLow, "video_low.mp4"},
		{QualityHD, "video_hd.mp4"},
		{"", "video_hd.mp4"},
		{"4k", "video_hd.mp4"},
	}
	for _, tt := range tests {
		if got := tt.q.Filename(); got != tt.want {
			t.Errorf("Quality(%q).Filename() = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func TestVideoInfo(t *testing.T) {
	info := VideoInfo{
		URL:      "https://sora.com/video/abc",
		Title:    "clip",
		Hashtags: []string{"#ai"},
		Duration: 12,
	}
	if info.Title != "clip" {
		t.Errorf("Expected Title 'clip', got '%s'", info.Title)
	}
	if len(info.Hashtags) != 1 || info.Hashtags[0] != "#ai" {
		t.Errorf("Expected one hashtag, got %v", info.Hashtags)
	}
}
