package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ruvid/rutube-dl-bot/config"
	"github.com/ruvid/rutube-dl-bot/internal/bot"
	"github.com/ruvid/rutube-dl-bot/internal/pipeline"
	"github.com/ruvid/rutube-dl-bot/internal/queue"
	"github.com/ruvid/rutube-dl-bot/internal/rutube"
	"github.com/ruvid/rutube-dl-bot/internal/session"
	"github.com/ruvid/rutube-dl-bot/internal/state"
	"github.com/ruvid/rutube-dl-bot/pkg/logger"
)

const (
	exitNoToken     = 1
	exitBotLaunch   = 2
	exitSessionInit = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return exitNoToken
	}
	logger.Setup(cfg.Colored)

	if cfg.Token == "" {
		logger.Error("bot token is not set; pass -t or set TOKEN")
		return exitNoToken
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess := session.New(session.Config{})
	if err := sess.Init(ctx); err != nil {
		logger.Error("session initialization failed", "error", err)
		return exitSessionInit
	}

	store := state.NewStore()
	resolutions := queue.New[pipeline.ResolutionJob]()
	downloads := queue.New[pipeline.DownloadJob]()

	b, err := bot.New(cfg, sess, store, resolutions, downloads)
	if err != nil {
		logger.Error("bot launch failed", "error", err)
		return exitBotLaunch
	}

	resolver := rutube.NewClient(rutube.WithHTTPClient(sess.HTTPClient()))
	resolutionWorker := &pipeline.ResolutionWorker{
		Queue:    resolutions,
		Store:    store,
		Gateway:  b.Gateway(),
		Resolver: resolver,
		BaseDir:  cfg.WorkDir,
	}
	downloadWorker := &pipeline.DownloadWorker{
		Queue:    downloads,
		Store:    store,
		Gateway:  b.Gateway(),
		Resolver: resolver,
		BaseDir:  cfg.WorkDir,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return resolutionWorker.Run(gctx) })
	g.Go(func() error { return downloadWorker.Run(gctx) })
	g.Go(func() error { return b.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot terminated", "error", err)
		return exitBotLaunch
	}
	logger.Info("shutdown complete")
	return 0
}
