package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ruvid/rutube-dl-bot/internal/pipeline"
	"github.com/ruvid/rutube-dl-bot/pkg/logger"
)

const keyboardRowWidth = 3

// Gateway adapts the Bot API client to the pipeline.Gateway interface.
// Every send error is also routed through the error sink, which owns
// classification and alert throttling.
type Gateway struct {
	api  *tgbotapi.BotAPI
	errs *ErrorSink
}

func (g *Gateway) SendMessage(user int64, text string) (int, error) {
	msg, err := g.api.Send(tgbotapi.NewMessage(user, text))
	if err != nil {
		g.errs.Handle("sendMessage", err)
		return 0, err
	}
	return msg.MessageID, nil
}

func (g *Gateway) EditMessage(user int64, messageID int, text string) error {
	if _, err := g.api.Request(tgbotapi.NewEditMessageText(user, messageID, text)); err != nil {
		g.errs.Handle("editMessageText", err)
		return err
	}
	return nil
}

func (g *Gateway) DeleteMessage(user int64, messageID int) error {
	if _, err := g.api.Request(tgbotapi.NewDeleteMessage(user, messageID)); err != nil {
		g.errs.Handle("deleteMessage", err)
		return err
	}
	return nil
}

func (g *Gateway) AnswerCallback(callbackID string) {
	if _, err := g.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		g.errs.Handle("answerCallbackQuery", err)
	}
}

// SendResolutionChoices posts the thumbnail with the caption and one
// inline button per resolution label.
func (g *Gateway) SendResolutionChoices(user int64, thumbPath, caption string, labels []string) error {
	photo := tgbotapi.NewPhoto(user, tgbotapi.FilePath(thumbPath))
	photo.Caption = caption
	photo.ReplyMarkup = buildResolutionKeyboard(labels)

	if _, err := g.api.Send(photo); err != nil {
		g.errs.Handle("sendPhoto", err)
		return err
	}
	return nil
}

func (g *Gateway) SendVideo(user int64, d pipeline.Delivery) error {
	video := tgbotapi.NewVideo(user, tgbotapi.FilePath(d.Path))
	video.Caption = d.Caption
	video.Duration = int(d.Duration.Seconds())
	video.SupportsStreaming = true
	if d.ThumbPath != "" {
		video.Thumb = tgbotapi.FilePath(d.ThumbPath)
	}

	if _, err := g.api.Send(video); err != nil {
		g.errs.Handle("sendVideo", err)
		return err
	}
	logger.Debug("video sent", "user", user, "path", d.Path)
	return nil
}

// buildResolutionKeyboard lays the labels out in rows of three. Button
// text shows the height only ("720p"); the callback data carries the full
// label the stream lookup needs.
func buildResolutionKeyboard(labels []string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for _, label := range labels {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(heightLabel(label), label))
		if len(row) == keyboardRowWidth {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func heightLabel(label string) string {
	_, height, err := pipeline.ParseResolution(label)
	if err != nil {
		return label
	}
	return fmt.Sprintf("%dp", height)
}
