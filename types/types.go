package types

// Quality names a download quality accepted by the remote API.
type Quality string

const (
	QualityHD  Quality = "hd"
	QualityLow Quality = "low"
)

// Filename returns the default file name for media of quality q.
func (q Quality) Filename() string {
	if q == QualityLow {
		return "video_low.mp4"
	}
	return "video_hd.mp4"
}

// VideoInfo describes video metadata returned by an info endpoint.
type VideoInfo struct {
	ID          string   `json:"id,omitempty"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Description string   `json:"description,omitempty"`
	Hashtags    []string `json:"hashtags"`
	Duration    int      `json:"duration,omitempty"`
}
