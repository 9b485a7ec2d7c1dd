package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ruvid/rutube-dl-bot/internal/queue"
	"github.com/ruvid/rutube-dl-bot/internal/rutube"
	"github.com/ruvid/rutube-dl-bot/internal/state"
	"github.com/ruvid/rutube-dl-bot/internal/workspace"
	"github.com/ruvid/rutube-dl-bot/pkg/logger"
)

const (
	textFetchingInfo  = "Получение информации о видео..."
	textResolveFailed = "Не удалось получить информацию о видео! Попробуйте другую ссылку..."
	captionSuffix     = "\n\nВыберите качество для скачивания:"
)

// ResolutionWorker drains the resolution queue: metadata, stream list,
// thumbnail, then the selection keyboard. Failures are terminal for the
// job; the user has to submit the link again.
type ResolutionWorker struct {
	Queue    *queue.Queue[ResolutionJob]
	Store    *state.Store
	Gateway  Gateway
	Resolver Resolver
	BaseDir  string
	Interval time.Duration
}

// Run polls the queue until ctx is cancelled. Jobs are processed one at a
// time, strictly in submission order.
func (w *ResolutionWorker) Run(ctx context.Context) error {
	interval := w.Interval
	if interval == 0 {
		interval = DefaultPollInterval
	}

	logger.Info("resolution worker started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("resolution worker stopped")
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

func (w *ResolutionWorker) process(ctx context.Context, job ResolutionJob) {
	st := StateQueued
	start := time.Now()
	logger.Info("resolving link", "user", job.User, "link", job.Link)

	msgID, err := w.Gateway.SendMessage(job.User, textFetchingInfo)
	if err != nil {
		logger.Warn("failed to send status message", "user", job.User, "error", err)
	}

	abort := func(err error) {
		logger.Error("resolution job aborted", "user", job.User, "stage", st.String(), "error", err)
		st = StateAborted
		if msgID != 0 {
			if editErr := w.Gateway.EditMessage(job.User, msgID, textResolveFailed); editErr != nil {
				logger.Warn("failed to edit status message", "user", job.User, "error", editErr)
			}
			return
		}
		// The status message is already gone (deleted before presenting,
		// or never sent); the failure still has to reach the user.
		if _, sendErr := w.Gateway.SendMessage(job.User, textResolveFailed); sendErr != nil {
			logger.Warn("failed to notify user", "user", job.User, "error", sendErr)
		}
	}

	st = StateInfoFetching
	meta, err := w.Resolver.FetchMetadata(ctx, job.Link)
	if err != nil {
		abort(err)
		return
	}

	st = StateStreamListing
	streams, err := w.Resolver.ListStreams(ctx, meta)
	if err != nil {
		abort(err)
		return
	}

	st = StateThumbnailFetching
	ws, err := workspace.New(w.BaseDir, job.User)
	if err != nil {
		abort(err)
		return
	}
	defer ws.Remove()

	thumb := ws.Path("thumbnail.jpg")
	if err := w.Resolver.DownloadThumbnail(ctx, meta, thumb); err != nil {
		abort(err)
		return
	}

	st = StatePresenting
	w.Store.SetStreams(job.User, streams)
	if msgID != 0 {
		if err := w.Gateway.DeleteMessage(job.User, msgID); err != nil {
			logger.Warn("failed to delete status message", "user", job.User, "error", err)
		}
		msgID = 0
	}
	if err := w.Gateway.SendResolutionChoices(job.User, thumb, meta.Title+captionSuffix, Labels(streams)); err != nil {
		abort(err)
		return
	}

	st = StateDone
	logger.InfoWithDuration("resolution done", start,
		"user", job.User, "title", meta.Title, "streams", len(streams), "state", st.String())
}

// Labels returns the resolution label of every stream, order preserved.
func Labels(streams []rutube.Stream) []string {
	labels := make([]string, 0, len(streams))
	for _, s := range streams {
		labels = append(labels, s.Resolution)
	}
	return labels
}

// ParseResolution splits a "WIDTHxHEIGHT" label into its dimensions.
func ParseResolution(label string) (width, height int, err error) {
	parts := strings.SplitN(label, "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad resolution label %q", label)
	}
	if _, err := fmt.Sscanf(label, "%dx%d", &width, &height); err != nil {
		return 0, 0, fmt.Errorf("bad resolution label %q", label)
	}
	return width, height, nil
}
