package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ytget/vidfetch/client"
	"github.com/ytget/vidfetch/errs"
	"github.com/ytget/vidfetch/types"
)

const maxJSONReply = 64 << 10

type downloadRequest struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
}

// Stream is an open media download. The caller closes it.
type Stream struct {
	io.ReadCloser
	// Filename is the server's Content-Disposition name or the quality default.
	Filename string
	// Size is the expected byte count, 0 when unknown.
	Size int64
	// ContentType is the media MIME type as reported by the server.
	ContentType string
}

// Media opens the media stream for videoURL at quality and returns it with
// its file name.
func (s *Service) Media(ctx context.Context, videoURL string, quality types.Quality) (io.ReadCloser, string, error) {
	st, err := s.Open(ctx, videoURL, quality)
	if err != nil {
		return nil, "", err
	}
	return st, st.Filename, nil
}

// Open posts {url, quality} to the download endpoint. Media bytes are
// streamed as is. A JSON reply is read as an error, or as a link to the
// media, which is then fetched.
func (s *Service) Open(ctx context.Context, videoURL string, quality types.Quality) (*Stream, error) {
	u, err := s.Check(videoURL)
	if err != nil {
		return nil, err
	}
	if quality == "" {
		quality = types.QualityHD
	}
	payload, err := json.Marshal(downloadRequest{URL: u, Quality: string(quality)})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrSerialization, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint(downloadPath), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", u, err)
	}
	if err := client.CheckStatus(resp); err != nil {
		_ = resp.Body.Close()
		var httpErr *errs.HTTPError
		if errors.As(err, &httpErr) {
			if msg := remoteMessage([]byte(httpErr.Body)); msg != "" {
				return nil, &errs.RemoteError{Message: msg}
			}
		}
		return nil, err
	}
	if isJSON(resp.Header.Get("Content-Type")) {
		link, err := readLink(resp)
		if err != nil {
			return nil, err
		}
		s.log.Debug("following media link", map[string]interface{}{"url": u, "link": link})
		return s.fetchLink(ctx, link, quality)
	}
	return newStream(resp, quality), nil
}

func (s *Service) fetchLink(ctx context.Context, link string, quality types.Quality) (*Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: bad media link %q", errs.ErrRemote, link)
	}
	resp, err := s.hc.Fetch(req)
	if err != nil {
		return nil, err
	}
	if err := client.CheckStatus(resp); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return newStream(resp, quality), nil
}

func newStream(resp *http.Response, quality types.Quality) *Stream {
	st := &Stream{
		ReadCloser:  resp.Body,
		Filename:    quality.Filename(),
		ContentType: resp.Header.Get("Content-Type"),
	}
	if resp.ContentLength > 0 {
		st.Size = resp.ContentLength
	}
	if name := dispositionFilename(resp.Header.Get("Content-Disposition")); name != "" {
		st.Filename = name
	}
	return st
}

// readLink consumes and closes a JSON reply from the download endpoint.
func readLink(resp *http.Response) (string, error) {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONReply))
	if err != nil {
		return "", fmt.Errorf("read download reply: %w", err)
	}
	var r struct {
		Error       string `json:"error"`
		URL         string `json:"url"`
		DownloadURL string `json:"download_url"`
	}
	if err := json.Unmarshal(body, &r); err != nil {
		return "", fmt.Errorf("%w: undecodable download reply: %v", errs.ErrRemote, err)
	}
	if r.Error != "" {
		return "", &errs.RemoteError{Message: r.Error}
	}
	for _, link := range []string{r.DownloadURL, r.URL} {
		if link = strings.TrimSpace(link); link != "" {
			return link, nil
		}
	}
	return "", fmt.Errorf("%w: download reply has no media", errs.ErrRemote)
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}

func dispositionFilename(h string) string {
	if h == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(h)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["filename"])
}
