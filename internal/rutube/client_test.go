package rutube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveVideoID(t *testing.T) {
	tests := []struct {
		link    string
		want    string
		wantErr bool
	}{
		{"https://rutube.ru/video/4e1db85ae675260ca419924462182261/", "4e1db85ae675260ca419924462182261", false},
		{"https://rutube.ru/video/abc123/?r=plwd", "abc123", false},
		{"rutube.ru/video/DEADbeef42", "DEADbeef42", false},
		{"https://rutube.ru/channel/123/", "", true},
		{"not a link at all", "", true},
	}

	for _, tt := range tests {
		got, err := ResolveVideoID(tt.link)
		if tt.wantErr {
			if !errors.Is(err, ErrBadLink) {
				t.Errorf("ResolveVideoID(%q): expected ErrBadLink, got %v", tt.link, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ResolveVideoID(%q): %v", tt.link, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ResolveVideoID(%q) = %q, want %q", tt.link, got, tt.want)
		}
	}
}

func TestFetchMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/play/options/abc123/" {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("missing format=json in %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{
			"title": "Котики",
			"thumbnail_url": "https://pic.example/thumb.jpg",
			"video_balancer": {"m3u8": "https://balancer.example/master.m3u8"}
		}`)
	}))
	defer srv.Close()

	c := NewClient(WithAPIBase(srv.URL))
	meta, err := c.FetchMetadata(context.Background(), "https://rutube.ru/video/abc123/")
	if err != nil {
		t.Fatalf("FetchMetadata: %v", err)
	}

	if meta.ID != "abc123" {
		t.Errorf("ID = %q", meta.ID)
	}
	if meta.Title != "Котики" {
		t.Errorf("Title = %q", meta.Title)
	}
	if meta.ThumbnailURL != "https://pic.example/thumb.jpg" {
		t.Errorf("ThumbnailURL = %q", meta.ThumbnailURL)
	}
	if meta.MasterPlaylist != "https://balancer.example/master.m3u8" {
		t.Errorf("MasterPlaylist = %q", meta.MasterPlaylist)
	}
}

func TestFetchMetadataWithoutPlaylistFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"title": "x", "video_balancer": {}}`)
	}))
	defer srv.Close()

	c := NewClient(WithAPIBase(srv.URL))
	if _, err := c.FetchMetadata(context.Background(), "https://rutube.ru/video/abc123/"); !errors.Is(err, ErrMetadataFetch) {
		t.Fatalf("expected ErrMetadataFetch, got %v", err)
	}
}

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=5000000,RESOLUTION=1920x1080
variant-1080.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=2500000,RESOLUTION=1280x720
variant-720.m3u8
#EXT-X-STREAM-INF:PROGRAM-ID=1,BANDWIDTH=1000000,RESOLUTION=854x480
variant-480.m3u8
`

func TestListStreams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, masterPlaylist)
	}))
	defer srv.Close()

	c := NewClient()
	meta := &Metadata{Title: "Котики", MasterPlaylist: srv.URL + "/video/master.m3u8"}

	streams, err := c.ListStreams(context.Background(), meta)
	if err != nil {
		t.Fatalf("ListStreams: %v", err)
	}

	want := []string{"1920x1080", "1280x720", "854x480"}
	if len(streams) != len(want) {
		t.Fatalf("expected %d streams, got %d", len(want), len(streams))
	}
	for i, res := range want {
		if streams[i].Resolution != res {
			t.Errorf("stream %d: resolution %q, want %q", i, streams[i].Resolution, res)
		}
		if streams[i].Title != "Котики" {
			t.Errorf("stream %d: title %q", i, streams[i].Title)
		}
	}
	// Relative variant URIs resolve against the playlist location.
	if streams[0].URL != srv.URL+"/video/variant-1080.m3u8" {
		t.Errorf("stream 0 URL = %q", streams[0].URL)
	}
}

func TestListStreamsRejectsMediaPlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXTINF:10,\nseg1.ts\n#EXT-X-ENDLIST\n")
	}))
	defer srv.Close()

	c := NewClient()
	meta := &Metadata{MasterPlaylist: srv.URL + "/media.m3u8"}
	if _, err := c.ListStreams(context.Background(), meta); !errors.Is(err, ErrStreamList) {
		t.Fatalf("expected ErrStreamList, got %v", err)
	}
}

func TestDownloadThumbnail(t *testing.T) {
	payload := []byte("jpeg-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	c := NewClient()
	dest := filepath.Join(t.TempDir(), "thumbnail.jpg")
	meta := &Metadata{ThumbnailURL: srv.URL + "/thumb.jpg"}

	if err := c.DownloadThumbnail(context.Background(), meta, dest); err != nil {
		t.Fatalf("DownloadThumbnail: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read thumbnail: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("thumbnail content mismatch: %q", got)
	}
}

func TestDownloadThumbnailWithoutURLFails(t *testing.T) {
	c := NewClient()
	err := c.DownloadThumbnail(context.Background(), &Metadata{}, filepath.Join(t.TempDir(), "t.jpg"))
	if !errors.Is(err, ErrThumbnail) {
		t.Fatalf("expected ErrThumbnail, got %v", err)
	}
}
