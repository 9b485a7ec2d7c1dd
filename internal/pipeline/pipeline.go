// Package pipeline runs the two background job queues: link resolution
// and stream download. Each queue has one long-lived worker draining it
// strictly in FIFO order; the workers run concurrently with each other
// and with the inbound update loop, but jobs within one queue never
// overlap.
package pipeline

import (
	"context"
	"time"

	"github.com/ruvid/rutube-dl-bot/internal/rutube"
)

// DefaultPollInterval is the idle pause between queue checks.
const DefaultPollInterval = 250 * time.Millisecond

// ResolutionJob asks the resolution worker to turn a submitted link into
// a set of selectable streams.
type ResolutionJob struct {
	User int64
	Link string
}

// DownloadJob asks the download worker to fetch and deliver the stream
// the user selected. The stream is carried in the job itself, so the
// download does not depend on the shared stream map staying fresh.
type DownloadJob struct {
	User   int64
	Stream rutube.Stream
}

// State is the per-job progress marker, used for logging and tests. A job
// either walks its happy path to StateDone or jumps to StateAborted from
// any non-terminal state.
type State int

const (
	StateQueued State = iota
	StateInfoFetching
	StateStreamListing
	StateThumbnailFetching
	StatePresenting
	StatePreparing
	StateDownloading
	StateProbing
	StateDelivering
	StateDone
	StateAborted
)

var stateNames = map[State]string{
	StateQueued:            "queued",
	StateInfoFetching:      "info_fetching",
	StateStreamListing:     "stream_listing",
	StateThumbnailFetching: "thumbnail_fetching",
	StatePresenting:        "presenting",
	StatePreparing:         "preparing",
	StateDownloading:       "downloading",
	StateProbing:           "probing",
	StateDelivering:        "delivering",
	StateDone:              "done",
	StateAborted:           "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Delivery describes one video hand-off to the user. Width and Height
// come from the selected resolution label; transports whose send API
// cannot carry dimensions may ignore them.
type Delivery struct {
	Path      string
	Caption   string
	Duration  time.Duration
	Width     int
	Height    int
	ThumbPath string
}

// Gateway is the messaging surface the workers talk to. The concrete
// implementation lives in the bot package; tests supply fakes.
type Gateway interface {
	SendMessage(user int64, text string) (int, error)
	EditMessage(user int64, messageID int, text string) error
	DeleteMessage(user int64, messageID int) error
	// SendResolutionChoices replaces the status message with the
	// thumbnail, caption and one button per resolution label.
	SendResolutionChoices(user int64, thumbPath, caption string, labels []string) error
	SendVideo(user int64, d Delivery) error
}

// Resolver is the video-hosting side of the pipeline.
type Resolver interface {
	FetchMetadata(ctx context.Context, link string) (*rutube.Metadata, error)
	ListStreams(ctx context.Context, meta *rutube.Metadata) ([]rutube.Stream, error)
	DownloadThumbnail(ctx context.Context, meta *rutube.Metadata, dest string) error
	DownloadStream(ctx context.Context, s rutube.Stream, destNoExt string) (string, error)
}
