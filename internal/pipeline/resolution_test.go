package pipeline

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/ruvid/rutube-dl-bot/internal/queue"
	"github.com/ruvid/rutube-dl-bot/internal/rutube"
	"github.com/ruvid/rutube-dl-bot/internal/state"
)

func testMetadata() *rutube.Metadata {
	return &rutube.Metadata{
		ID:             "abc123",
		Title:          "Котики",
		ThumbnailURL:   "https://pic.example/thumb.jpg",
		MasterPlaylist: "https://balancer.example/master.m3u8",
	}
}

func testStreams() []rutube.Stream {
	return []rutube.Stream{
		{Resolution: "1920x1080", Title: "Котики", URL: "https://cdn.example/1080.m3u8"},
		{Resolution: "1280x720", Title: "Котики", URL: "https://cdn.example/720.m3u8"},
		{Resolution: "854x480", Title: "Котики", URL: "https://cdn.example/480.m3u8"},
	}
}

func newResolutionWorker(t *testing.T, gw *fakeGateway, rs *fakeResolver) (*ResolutionWorker, *state.Store) {
	t.Helper()
	store := state.NewStore()
	return &ResolutionWorker{
		Queue:    queue.New[ResolutionJob](),
		Store:    store,
		Gateway:  gw,
		Resolver: rs,
		BaseDir:  t.TempDir(),
		Interval: time.Millisecond,
	}, store
}

func TestResolutionHappyPath(t *testing.T) {
	gw := &fakeGateway{}
	rs := &fakeResolver{meta: testMetadata(), streams: testStreams()}
	w, store := newResolutionWorker(t, gw, rs)

	w.process(context.Background(), ResolutionJob{User: 1, Link: "https://rutube.ru/video/abc123/"})

	if len(gw.sent) != 1 || gw.sent[0] != textFetchingInfo {
		t.Fatalf("expected one status message, got %v", gw.sent)
	}
	if len(gw.deleted) != 1 {
		t.Fatalf("status message not deleted: %v", gw.deleted)
	}
	if len(gw.choices) != 1 {
		t.Fatalf("expected one choice keyboard, got %d", len(gw.choices))
	}
	want := []string{"1920x1080", "1280x720", "854x480"}
	for i, label := range want {
		if gw.choices[0][i] != label {
			t.Errorf("choice %d = %q, want %q", i, gw.choices[0][i], label)
		}
	}

	streams := store.Streams(1)
	if len(streams) != 3 {
		t.Fatalf("expected streams stored, got %d", len(streams))
	}

	// The thumbnail workspace is gone once the keyboard is out.
	entries, err := os.ReadDir(w.BaseDir)
	if err != nil {
		t.Fatalf("read base dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("workspace not cleaned up: %v", entries)
	}
}

func TestResolutionFailureEditsStatusMessage(t *testing.T) {
	gw := &fakeGateway{}
	rs := &fakeResolver{metaErr: errFakeResolver}
	w, store := newResolutionWorker(t, gw, rs)

	w.process(context.Background(), ResolutionJob{User: 1, Link: "https://rutube.ru/video/abc123/"})

	if len(gw.edited) != 1 || gw.edited[0] != textResolveFailed {
		t.Fatalf("expected failure edit, got %v", gw.edited)
	}
	if len(gw.choices) != 0 {
		t.Fatal("no keyboard expected on failure")
	}
	if len(store.Streams(1)) != 0 {
		t.Fatal("no streams should be stored on failure")
	}
}

func TestResolutionThumbnailFailureCleansWorkspace(t *testing.T) {
	gw := &fakeGateway{}
	rs := &fakeResolver{meta: testMetadata(), streams: testStreams(), thumbErr: errFakeResolver}
	w, _ := newResolutionWorker(t, gw, rs)

	w.process(context.Background(), ResolutionJob{User: 1, Link: "https://rutube.ru/video/abc123/"})

	if len(gw.edited) != 1 || gw.edited[0] != textResolveFailed {
		t.Fatalf("expected failure edit, got %v", gw.edited)
	}
	entries, _ := os.ReadDir(w.BaseDir)
	if len(entries) != 0 {
		t.Fatalf("workspace not cleaned up on failure: %v", entries)
	}
}

func TestResolutionPresentingFailureNotifiesUser(t *testing.T) {
	// The status message is deleted right before the keyboard goes out;
	// a failure there must still reach the user as a fresh message.
	gw := &fakeGateway{choicesErr: errFakeResolver}
	rs := &fakeResolver{meta: testMetadata(), streams: testStreams()}
	w, _ := newResolutionWorker(t, gw, rs)

	w.process(context.Background(), ResolutionJob{User: 1, Link: "https://rutube.ru/video/abc123/"})

	if len(gw.deleted) != 1 {
		t.Fatalf("status message should be deleted before presenting, got %v", gw.deleted)
	}
	if len(gw.edited) != 0 {
		t.Fatalf("nothing left to edit at presenting stage, got %v", gw.edited)
	}
	if len(gw.sent) != 2 || gw.sent[1] != textResolveFailed {
		t.Fatalf("expected failure notice after status deletion, got %v", gw.sent)
	}
}

func TestResolutionRunDrainsQueueInOrder(t *testing.T) {
	gw := &fakeGateway{}
	rs := &fakeResolver{meta: testMetadata(), streams: testStreams()}
	w, _ := newResolutionWorker(t, gw, rs)

	w.Queue.Push(ResolutionJob{User: 1, Link: "link-1"})
	w.Queue.Push(ResolutionJob{User: 2, Link: "link-2"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		rs.mu.Lock()
		n := len(rs.resolved)
		rs.mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker did not drain the queue in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.resolved[0] != "link-1" || rs.resolved[1] != "link-2" {
		t.Fatalf("jobs processed out of order: %v", rs.resolved)
	}
}

func TestLabels(t *testing.T) {
	labels := Labels(testStreams())
	want := []string{"1920x1080", "1280x720", "854x480"}
	for i, l := range want {
		if labels[i] != l {
			t.Errorf("label %d = %q, want %q", i, labels[i], l)
		}
	}
}

func TestParseResolution(t *testing.T) {
	w, h, err := ParseResolution("1920x1080")
	if err != nil || w != 1920 || h != 1080 {
		t.Fatalf("ParseResolution(1920x1080) = %d, %d, %v", w, h, err)
	}
	if _, _, err := ParseResolution("1080p"); err == nil {
		t.Fatal("expected error for non WxH label")
	}
	if _, _, err := ParseResolution(""); err == nil {
		t.Fatal("expected error for empty label")
	}
}
