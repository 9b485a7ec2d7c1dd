// Package bot wires the Telegram transport to the job pipeline: the
// long-poll update loop, the inbound handlers and the gateway the
// workers deliver through.
package bot

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ruvid/rutube-dl-bot/config"
	"github.com/ruvid/rutube-dl-bot/internal/middleware"
	"github.com/ruvid/rutube-dl-bot/internal/pipeline"
	"github.com/ruvid/rutube-dl-bot/internal/queue"
	"github.com/ruvid/rutube-dl-bot/internal/session"
	"github.com/ruvid/rutube-dl-bot/internal/state"
	"github.com/ruvid/rutube-dl-bot/pkg/logger"
)

// linkValidator is the session-manager side the inbound handlers need.
type linkValidator interface {
	Validate(ctx context.Context, link string) bool
}

// messenger is the outbound surface the inbound handlers use. *Gateway
// implements it; handler tests supply fakes.
type messenger interface {
	SendMessage(user int64, text string) (int, error)
	DeleteMessage(user int64, messageID int) error
	AnswerCallback(callbackID string)
}

type Bot struct {
	api     *tgbotapi.BotAPI
	gateway *Gateway
	msgr    messenger
	links   linkValidator
	store   *state.Store

	resolutions *queue.Queue[pipeline.ResolutionJob]
	downloads   *queue.Queue[pipeline.DownloadJob]

	ownerID int64
}

func New(
	cfg *config.Config,
	sess *session.Manager,
	store *state.Store,
	resolutions *queue.Queue[pipeline.ResolutionJob],
	downloads *queue.Queue[pipeline.DownloadJob],
) (*Bot, error) {
	endpoint := tgbotapi.APIEndpoint
	if cfg.LocalPort != "" {
		endpoint = fmt.Sprintf("http://localhost:%s/bot%%s/%%s", cfg.LocalPort)
	}

	// No client-level timeout: sendVideo uploads of large files must not
	// be cut off. Per-call deadlines live with the callers that need them.
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	logger.Info("bot authorized", "username", api.Self.UserName)

	gateway := &Gateway{api: api, errs: NewErrorSink(cfg.Token)}
	return &Bot{
		api:         api,
		gateway:     gateway,
		msgr:        gateway,
		links:       sess,
		store:       store,
		resolutions: resolutions,
		downloads:   downloads,
		ownerID:     cfg.OwnerID,
	}, nil
}

// Gateway returns the messaging surface the workers deliver through.
func (b *Bot) Gateway() *Gateway {
	return b.gateway
}

// Run consumes updates until ctx is cancelled. Updates are handled
// sequentially; the heavy lifting happens on the worker loops, so a
// handler only validates, mutates state and enqueues.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 20
	updates := b.api.GetUpdatesChan(u)

	logger.Info("bot launched successfully")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			logger.Info("bot stopped")
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			handle := func() { b.handleUpdate(ctx, update) }
			middleware.Chain(handle,
				middleware.Recover,
				func(next func()) func() { return middleware.Logger("update", next) },
			)()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.handleLink(ctx, update.Message)
	}
}
