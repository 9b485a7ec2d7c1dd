// Package rutube resolves rutube.ru links into downloadable streams.
//
// The resolution chain mirrors the site's playback flow: a video link
// carries a video id, the play-options endpoint returns the title,
// thumbnail and master playlist for that id, and the master playlist
// enumerates one variant per encoded rendition.
package rutube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"time"

	"github.com/grafov/m3u8"

	"github.com/ruvid/rutube-dl-bot/pkg/logger"
)

var (
	ErrBadLink       = errors.New("rutube: not a valid video link")
	ErrMetadataFetch = errors.New("rutube: metadata fetch failed")
	ErrStreamList    = errors.New("rutube: stream listing failed")
	ErrThumbnail     = errors.New("rutube: thumbnail download failed")
	ErrDownload      = errors.New("rutube: stream download failed")
)

// Stream is one encoded rendition of a video. Resolution is the
// "WIDTHxHEIGHT" label, unique within a set.
type Stream struct {
	Resolution string
	Title      string
	URL        string
}

// Metadata is the subset of the play-options document the pipeline needs.
type Metadata struct {
	ID             string
	Title          string
	ThumbnailURL   string
	MasterPlaylist string
}

type Client struct {
	http    *http.Client
	apiBase string
	ffmpeg  string
}

type Option func(*Client)

// WithAPIBase overrides the rutube API origin. Used by tests.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = base }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		apiBase: "https://rutube.ru",
		ffmpeg:  "ffmpeg",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var videoIDPattern = regexp.MustCompile(`/video/([A-Za-z0-9]+)`)

// ResolveVideoID extracts the video id from a rutube watch link.
func ResolveVideoID(link string) (string, error) {
	m := videoIDPattern.FindStringSubmatch(link)
	if m == nil {
		return "", fmt.Errorf("%w: %s", ErrBadLink, link)
	}
	return m[1], nil
}

func (c *Client) apiURL(id string) string {
	return fmt.Sprintf("%s/api/play/options/%s/?format=json", c.apiBase, id)
}

type playOptions struct {
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
	Balancer     struct {
		M3U8 string `json:"m3u8"`
	} `json:"video_balancer"`
}

// FetchMetadata resolves link -> id -> play-options document.
func (c *Client) FetchMetadata(ctx context.Context, link string) (*Metadata, error) {
	id, err := ResolveVideoID(link)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, c.apiURL(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataFetch, err)
	}

	var doc playOptions
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataFetch, err)
	}
	if doc.Balancer.M3U8 == "" {
		return nil, fmt.Errorf("%w: no master playlist for %s", ErrMetadataFetch, id)
	}

	logger.Debug("metadata resolved", "id", id, "title", doc.Title)
	return &Metadata{
		ID:             id,
		Title:          doc.Title,
		ThumbnailURL:   doc.ThumbnailURL,
		MasterPlaylist: doc.Balancer.M3U8,
	}, nil
}

// ListStreams decodes the master playlist and returns one Stream per
// variant, in playlist order. Every stream carries the video title.
func (c *Client) ListStreams(ctx context.Context, meta *Metadata) ([]Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.MasterPlaylist, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamList, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamList, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrStreamList, resp.StatusCode)
	}

	playlist, kind, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamList, err)
	}
	if kind != m3u8.MASTER {
		return nil, fmt.Errorf("%w: expected master playlist", ErrStreamList)
	}
	master := playlist.(*m3u8.MasterPlaylist)

	base, err := url.Parse(meta.MasterPlaylist)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamList, err)
	}

	var streams []Stream
	for _, v := range master.Variants {
		if v == nil || v.Resolution == "" {
			continue
		}
		ref, err := url.Parse(v.URI)
		if err != nil {
			logger.Warn("skipping variant with bad URI", "uri", v.URI, "error", err)
			continue
		}
		streams = append(streams, Stream{
			Resolution: v.Resolution,
			Title:      meta.Title,
			URL:        base.ResolveReference(ref).String(),
		})
	}
	if len(streams) == 0 {
		return nil, fmt.Errorf("%w: no variants in master playlist", ErrStreamList)
	}
	return streams, nil
}

// DownloadThumbnail fetches the video preview image into dest.
func (c *Client) DownloadThumbnail(ctx context.Context, meta *Metadata, dest string) error {
	if meta.ThumbnailURL == "" {
		return fmt.Errorf("%w: no thumbnail url", ErrThumbnail)
	}

	body, err := c.get(ctx, meta.ThumbnailURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrThumbnail, err)
	}
	if err := os.WriteFile(dest, body, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrThumbnail, err)
	}
	return nil
}

// DownloadStream remuxes the selected HLS variant into destNoExt + ".mp4"
// and returns the produced path.
func (c *Client) DownloadStream(ctx context.Context, s Stream, destNoExt string) (string, error) {
	dest := destNoExt + ".mp4"

	cmd := exec.CommandContext(ctx, c.ffmpeg,
		"-y", "-loglevel", "error",
		"-i", s.URL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		dest,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: ffmpeg: %v: %s", ErrDownload, err, out)
	}
	return dest, nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
