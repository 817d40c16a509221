package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/goccy/go-json"
	"github.com/jellydator/ttlcache/v3"

	"github.com/ytget/vidfetch/client"
	"github.com/ytget/vidfetch/errs"
	"github.com/ytget/vidfetch/types"
)

type infoRequest struct {
	URL string `json:"url"`
}

type infoResponse struct {
	Title       string          `json:"title"`
	Thumbnail   string          `json:"thumbnail"`
	Description string          `json:"description"`
	Hashtags    []string        `json:"hashtags"`
	Duration    json.RawMessage `json:"duration"`
	Error       string          `json:"error"`
}

var hashtagRe = regexp.MustCompile(`#[\p{L}\p{N}_]+`)

// Info returns metadata for videoURL. The title defaults to "untitled
// video" and hashtags to ["#video"] when the API returns none. Results are
// memoised per URL and concurrent calls for one URL share a single request.
func (s *Service) Info(ctx context.Context, videoURL string) (*types.VideoInfo, error) {
	u, err := s.Check(videoURL)
	if err != nil {
		return nil, err
	}
	if s.memo != nil {
		if item := s.memo.Get(u); item != nil {
			info := item.Value()
			s.log.Debug("info memo hit", map[string]interface{}{"url": u})
			return cloneInfo(&info), nil
		}
	}

	v, err, _ := s.group.Do(u, func() (interface{}, error) {
		return s.fetchInfo(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	info := v.(*types.VideoInfo)
	if s.memo != nil {
		s.memo.Set(u, *info, ttlcache.DefaultTTL)
	}
	return cloneInfo(info), nil
}

// Forget drops the memoised Info result for videoURL.
func (s *Service) Forget(videoURL string) {
	if s.memo != nil {
		s.memo.Delete(strings.TrimSpace(videoURL))
	}
}

func (s *Service) fetchInfo(ctx context.Context, u string) (*types.VideoInfo, error) {
	var resp infoResponse
	err := s.hc.Post(ctx, s.endpoint(infoPath), infoRequest{URL: u}, &resp)
	if err != nil {
		var httpErr *errs.HTTPError
		if errors.As(err, &httpErr) {
			if msg := remoteMessage([]byte(httpErr.Body)); msg != "" {
				return nil, &errs.RemoteError{Message: msg}
			}
		}
		s.log.Warn("info request failed", map[string]interface{}{"url": u, "err": err})
		return nil, fmt.Errorf("info %s: %w", u, err)
	}
	if resp.Error != "" {
		return nil, &errs.RemoteError{Message: resp.Error}
	}

	info := &types.VideoInfo{
		ID:          s.VideoID(u),
		URL:         u,
		Title:       strings.TrimSpace(resp.Title),
		Thumbnail:   strings.TrimSpace(resp.Thumbnail),
		Description: strings.TrimSpace(resp.Description),
		Hashtags:    cleanHashtags(resp.Hashtags),
		Duration:    parseDuration(resp.Duration),
	}
	if s.metaFallback && (info.Title == "" || info.Thumbnail == "") {
		if err := s.fillFromPage(ctx, info); err != nil {
			s.log.Debug("meta fallback failed", map[string]interface{}{"url": u, "err": err})
		}
	}
	if info.Title == "" {
		info.Title = DefaultTitle
	}
	if len(info.Hashtags) == 0 {
		info.Hashtags = []string{defaultHashtag}
	}
	s.log.Debug("info fetched", map[string]interface{}{"url": u, "title": info.Title})
	return info, nil
}

// fillFromPage reads og:title, og:image and og:description from the video
// page into the empty fields of info.
func (s *Service) fillFromPage(ctx context.Context, info *types.VideoInfo) error {
	ctx, cancel := s.hc.WithTimeout(ctx)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/html")
	resp, err := s.hc.Fetch(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := client.CheckStatus(resp); err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}

	meta := func(prop string) string {
		sel := doc.Find(fmt.Sprintf(`meta[property=%q], meta[name=%q]`, prop, prop)).First()
		v, _ := sel.Attr("content")
		return strings.TrimSpace(v)
	}
	if info.Title == "" {
		info.Title = meta("og:title")
		if info.Title == "" {
			info.Title = strings.TrimSpace(doc.Find("title").First().Text())
		}
	}
	if info.Thumbnail == "" {
		info.Thumbnail = meta("og:image")
	}
	if info.Description == "" {
		info.Description = meta("og:description")
	}
	if len(info.Hashtags) == 0 {
		info.Hashtags = hashtagRe.FindAllString(info.Description, -1)
	}
	return nil
}

// remoteMessage returns the "error" string of a JSON error body.
func remoteMessage(body []byte) string {
	var r struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return ""
	}
	return strings.TrimSpace(r.Error)
}

func cleanHashtags(in []string) []string {
	var out []string
	for _, h := range in {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}

// parseDuration accepts seconds as a number or string, or "m:ss"/"h:mm:ss".
func parseDuration(raw json.RawMessage) int {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	total := 0
	for _, part := range strings.Split(strings.TrimSpace(s), ":") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}

func cloneInfo(in *types.VideoInfo) *types.VideoInfo {
	out := *in
	out.Hashtags = append([]string(nil), in.Hashtags...)
	return &out
}
