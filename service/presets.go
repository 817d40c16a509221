package service

import "strings"

// Preset describes one deployment of the info/download API: where it lives
// and which video URLs it accepts. Patterns are JavaScript regex literals.
type Preset struct {
	Name      string
	BaseURL   string
	Validate  string
	IDPattern string
}

const (
	pythonAnywhereAPI = "https://jsinfo.pythonanywhere.com"
	renderAPI         = "https://yt-downloader-api-1-ad1k.onrender.com"

	soraIDPattern = `/(?:sora\.com\/video\/|sora2\.com\/v\/)([a-zA-Z0-9_-]+)/`
)

var (
	// Sora accepts sora.com and sora2.* links.
	Sora = Preset{
		Name:      "sora",
		BaseURL:   pythonAnywhereAPI,
		Validate:  `/sora\.com|sora2\./i`,
		IDPattern: soraIDPattern,
	}
	// TikTok accepts tiktok.com links including the vm. and vt. short hosts.
	TikTok = Preset{
		Name:     "tiktok",
		BaseURL:  renderAPI,
		Validate: `/(?:https?:\/\/)?(?:www\.|vm\.|vt\.)?tiktok\.com\/[^\s]+/i`,
	}
	// Any forwards every URL to the API unchecked.
	Any = Preset{
		Name:    "any",
		BaseURL: pythonAnywhereAPI,
	}
)

// Presets returns the built-in presets.
func Presets() []Preset {
	return []Preset{Sora, TikTok, Any}
}

// Lookup finds a built-in preset by case-insensitive name.
func Lookup(name string) (Preset, bool) {
	for _, p := range Presets() {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return Preset{}, false
}

// WithBaseURL returns a copy of p pointing at baseURL.
func (p Preset) WithBaseURL(baseURL string) Preset {
	p.BaseURL = baseURL
	return p
}
