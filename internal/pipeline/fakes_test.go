package pipeline

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/ruvid/rutube-dl-bot/internal/rutube"
)

// fakeGateway records every outbound call in order.
type fakeGateway struct {
	mu       sync.Mutex
	sent     []string
	edited   []string
	deleted  []int
	choices    [][]string
	videos     []Delivery
	sendErr    error
	choicesErr error
	videoErr   error
	nextID     int
}

func (g *fakeGateway) SendMessage(user int64, text string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return 0, g.sendErr
	}
	g.sent = append(g.sent, text)
	g.nextID++
	return g.nextID, nil
}

func (g *fakeGateway) EditMessage(user int64, messageID int, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edited = append(g.edited, text)
	return nil
}

func (g *fakeGateway) DeleteMessage(user int64, messageID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, messageID)
	return nil
}

func (g *fakeGateway) SendResolutionChoices(user int64, thumbPath, caption string, labels []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.choicesErr != nil {
		return g.choicesErr
	}
	g.choices = append(g.choices, labels)
	return nil
}

func (g *fakeGateway) SendVideo(user int64, d Delivery) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.videoErr != nil {
		return g.videoErr
	}
	g.videos = append(g.videos, d)
	return nil
}

var errFakeResolver = errors.New("resolver failure")

// fakeResolver serves canned metadata and streams, writing real files
// for thumbnail and stream downloads so workspace handling is exercised.
type fakeResolver struct {
	mu          sync.Mutex
	meta        *rutube.Metadata
	streams     []rutube.Stream
	metaErr     error
	streamsErr  error
	thumbErr    error
	downloadErr error
	resolved    []string
	downloaded  []rutube.Stream
}

func (r *fakeResolver) FetchMetadata(ctx context.Context, link string) (*rutube.Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.metaErr != nil {
		return nil, r.metaErr
	}
	r.resolved = append(r.resolved, link)
	return r.meta, nil
}

func (r *fakeResolver) ListStreams(ctx context.Context, meta *rutube.Metadata) ([]rutube.Stream, error) {
	if r.streamsErr != nil {
		return nil, r.streamsErr
	}
	return r.streams, nil
}

func (r *fakeResolver) DownloadThumbnail(ctx context.Context, meta *rutube.Metadata, dest string) error {
	if r.thumbErr != nil {
		return r.thumbErr
	}
	return os.WriteFile(dest, []byte("thumb"), 0o644)
}

func (r *fakeResolver) DownloadStream(ctx context.Context, s rutube.Stream, destNoExt string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.downloadErr != nil {
		return "", r.downloadErr
	}
	r.downloaded = append(r.downloaded, s)
	dest := destNoExt + ".mp4"
	if err := os.WriteFile(dest, []byte("video"), 0o644); err != nil {
		return "", err
	}
	return dest, nil
}
