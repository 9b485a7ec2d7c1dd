package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ruvid/rutube-dl-bot/internal/pipeline"
	"github.com/ruvid/rutube-dl-bot/internal/rutube"
	"github.com/ruvid/rutube-dl-bot/pkg/logger"
)

const (
	textWelcome = "Привет, я бот для скачивания видео с рутуба (rutube.ru)!\n\n" +
		"Чтобы скачать видео, отправь мне ссылку на него и я предложу варианты для скачивания!"
	textInvalidLink     = "Неправильная ссылка!"
	textWaitCurrent     = "Дождитесь загрузки текущего видео!"
	textSelectionFailed = "Не удалось скачать видео! Попробуйте другую ссылку"
	textQueuedPosition  = "Ваше видео %d в очереди, ожидайте загрузки..."
)

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		if _, err := b.msgr.SendMessage(msg.Chat.ID, textWelcome); err != nil {
			logger.Warn("failed to send welcome", "user", msg.Chat.ID, "error", err)
		}
	case "stats":
		b.handleStats(msg)
	default:
		logger.Debug("unknown command ignored", "command", msg.Command())
	}
}

// handleLink treats any plain text message as a candidate video link.
func (b *Bot) handleLink(ctx context.Context, msg *tgbotapi.Message) {
	user := msg.Chat.ID
	link := strings.TrimSpace(msg.Text)

	if !b.links.Validate(ctx, link) {
		b.msgr.SendMessage(user, textInvalidLink)
		return
	}
	if b.store.HasPendingDownload(user) {
		logger.Warn("user already has a download in flight", "user", user)
		b.msgr.SendMessage(user, textWaitCurrent)
		return
	}

	logger.Info("link accepted", "user", user, "link", link)
	b.store.SetRequest(user, link)
	b.resolutions.Push(pipeline.ResolutionJob{User: user, Link: link})
}

// handleCallback matches the selected resolution label against the
// user's resolved stream set and enqueues the download.
func (b *Bot) handleCallback(cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	user := cb.Message.Chat.ID
	label := cb.Data
	logger.Info("resolution selected", "user", user, "label", label)

	b.msgr.AnswerCallback(cb.ID)
	b.msgr.DeleteMessage(user, cb.Message.MessageID)

	stream, ok := findStream(b.store.Streams(user), label)
	if !ok {
		// Stale or unknown selection: the stream set has been replaced
		// since the keyboard was sent.
		logger.Error("no stream matches selected resolution", "user", user, "label", label)
		b.msgr.SendMessage(user, textSelectionFailed)
		return
	}

	b.store.AddPending(user)
	// Position is taken before the push; the worker may pop the job at
	// any moment after it, which would make a post-push Len read zero.
	position := b.downloads.Len() + 1
	b.downloads.Push(pipeline.DownloadJob{User: user, Stream: stream})
	b.msgr.SendMessage(user, fmt.Sprintf(textQueuedPosition, position))
}

func findStream(streams []rutube.Stream, label string) (rutube.Stream, bool) {
	for _, s := range streams {
		if s.Resolution == label {
			return s, true
		}
	}
	return rutube.Stream{}, false
}
