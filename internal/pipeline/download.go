package pipeline

import (
	"context"
	"time"

	"github.com/ruvid/rutube-dl-bot/internal/media"
	"github.com/ruvid/rutube-dl-bot/internal/queue"
	"github.com/ruvid/rutube-dl-bot/internal/state"
	"github.com/ruvid/rutube-dl-bot/internal/workspace"
	"github.com/ruvid/rutube-dl-bot/pkg/logger"
)

const (
	textDownloadFailed = "Не удалось скачать видео! Попробуйте позже или запросите другое видео..."
	textSomethingWrong = "Что-то пошло не так..."
)

// DownloadWorker drains the download queue: thumbnail for the caption,
// stream download, probe, delivery. Runs concurrently with the resolution
// worker on its own queue. No job is ever retried.
type DownloadWorker struct {
	Queue    *queue.Queue[DownloadJob]
	Store    *state.Store
	Gateway  Gateway
	Resolver Resolver
	BaseDir  string
	Interval time.Duration

	// Probe is swappable in tests; defaults to media.Probe.
	Probe func(ctx context.Context, path string) (media.Properties, error)
}

func (w *DownloadWorker) Run(ctx context.Context) error {
	interval := w.Interval
	if interval == 0 {
		interval = DefaultPollInterval
	}

	logger.Info("download worker started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("download worker stopped")
			return ctx.Err()
		case <-ticker.C:
			for {
				job, ok := w.Queue.Pop()
				if !ok {
					break
				}
				w.process(ctx, job)
			}
		}
	}
}

func (w *DownloadWorker) process(ctx context.Context, job DownloadJob) {
	st := StateQueued
	start := time.Now()
	logger.Info("downloading stream", "user", job.User, "resolution", job.Stream.Resolution)

	// Release the pending-download slot on every exit path, so the user
	// can submit again no matter how this job ends.
	defer w.Store.DonePending(job.User)

	abort := func(text string, err error) {
		logger.Error("download job aborted", "user", job.User, "stage", st.String(), "error", err)
		st = StateAborted
		if _, sendErr := w.Gateway.SendMessage(job.User, text); sendErr != nil {
			logger.Warn("failed to notify user", "user", job.User, "error", sendErr)
		}
	}

	st = StatePreparing
	ws, err := workspace.New(w.BaseDir, job.User)
	if err != nil {
		abort(textDownloadFailed, err)
		return
	}
	defer ws.Remove()

	// The thumbnail is only a delivery preview; losing it is not worth
	// failing the whole job over.
	thumb := ""
	if meta, err := w.Resolver.FetchMetadata(ctx, w.Store.Request(job.User)); err != nil {
		logger.Warn("could not re-resolve metadata for thumbnail", "user", job.User, "error", err)
	} else {
		thumb = ws.Path("thumbnail.jpg")
		if err := w.Resolver.DownloadThumbnail(ctx, meta, thumb); err != nil {
			logger.Warn("thumbnail fetch failed", "user", job.User, "error", err)
			thumb = ""
		}
	}

	st = StateDownloading
	videoPath, err := w.Resolver.DownloadStream(ctx, job.Stream, ws.Path("video"))
	if err != nil {
		abort(textDownloadFailed, err)
		return
	}

	st = StateProbing
	probe := w.Probe
	if probe == nil {
		probe = media.Probe
	}
	props, err := probe(ctx, videoPath)
	if err != nil {
		abort(textSomethingWrong, err)
		return
	}

	st = StateDelivering
	width, height, err := ParseResolution(job.Stream.Resolution)
	if err != nil {
		abort(textSomethingWrong, err)
		return
	}
	err = w.Gateway.SendVideo(job.User, Delivery{
		Path:      videoPath,
		Caption:   job.Stream.Title,
		Duration:  props.Duration,
		Width:     width,
		Height:    height,
		ThumbPath: thumb,
	})
	if err != nil {
		abort(textDownloadFailed, err)
		return
	}

	st = StateDone
	logger.InfoWithDuration("video delivered", start,
		"user", job.User, "resolution", job.Stream.Resolution, "state", st.String())
}
