package services

import (
	"context"

	"github.com/ad/go-telegram-funnel/internal/models"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// MessageManager is the Telegram side of the Channel interface: it
// converts the channel-agnostic keyboard to inline markup and retries
// sends a bounded number of times before giving up and telling the admin.
type MessageManager struct {
	bot      *bot.Bot
	errMgr   *ErrorManager
	maxRetry int
}

func NewMessageManager(b *bot.Bot, errMgr *ErrorManager) *MessageManager {
	return &MessageManager{
		bot:      b,
		errMgr:   errMgr,
		maxRetry: 2,
	}
}

func (m *MessageManager) SendText(ctx context.Context, chatID int64, text string, keyboard models.Keyboard) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if markup := toMarkup(keyboard); markup != nil {
		params.ReplyMarkup = markup
	}

	var lastErr error
	for attempt := 0; attempt < m.maxRetry; attempt++ {
		if _, lastErr = m.bot.SendMessage(ctx, params); lastErr == nil {
			return nil
		}
	}
	m.errMgr.NotifyAdminWithCurl(ctx, chatID, params, lastErr)
	return lastErr
}

func (m *MessageManager) SendDocument(ctx context.Context, chatID int64, fileID, caption string, keyboard models.Keyboard) error {
	params := &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &tgmodels.InputFileString{Data: fileID},
		Caption:  caption,
	}
	if markup := toMarkup(keyboard); markup != nil {
		params.ReplyMarkup = markup
	}

	var lastErr error
	for attempt := 0; attempt < m.maxRetry; attempt++ {
		if _, lastErr = m.bot.SendDocument(ctx, params); lastErr == nil {
			return nil
		}
	}
	m.errMgr.NotifyAdminWithCurl(ctx, chatID, params, lastErr)
	return lastErr
}

func (m *MessageManager) SendVideo(ctx context.Context, chatID int64, fileID, caption string, keyboard models.Keyboard) error {
	params := &bot.SendVideoParams{
		ChatID:  chatID,
		Video:   &tgmodels.InputFileString{Data: fileID},
		Caption: caption,
	}
	if markup := toMarkup(keyboard); markup != nil {
		params.ReplyMarkup = markup
	}

	var lastErr error
	for attempt := 0; attempt < m.maxRetry; attempt++ {
		if _, lastErr = m.bot.SendVideo(ctx, params); lastErr == nil {
			return nil
		}
	}
	m.errMgr.NotifyAdminWithCurl(ctx, chatID, params, lastErr)
	return lastErr
}

func (m *MessageManager) SendAudio(ctx context.Context, chatID int64, fileID, caption string, keyboard models.Keyboard) error {
	params := &bot.SendAudioParams{
		ChatID:  chatID,
		Audio:   &tgmodels.InputFileString{Data: fileID},
		Caption: caption,
	}
	if markup := toMarkup(keyboard); markup != nil {
		params.ReplyMarkup = markup
	}

	var lastErr error
	for attempt := 0; attempt < m.maxRetry; attempt++ {
		if _, lastErr = m.bot.SendAudio(ctx, params); lastErr == nil {
			return nil
		}
	}
	m.errMgr.NotifyAdminWithCurl(ctx, chatID, params, lastErr)
	return lastErr
}

func toMarkup(keyboard models.Keyboard) *tgmodels.InlineKeyboardMarkup {
	if len(keyboard) == 0 {
		return nil
	}

	rows := make([][]tgmodels.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]tgmodels.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			button := tgmodels.InlineKeyboardButton{Text: b.Label}
			if b.URL != "" {
				button.URL = b.URL
			} else {
				button.CallbackData = b.Token
			}
			buttons = append(buttons, button)
		}
		rows = append(rows, buttons)
	}
	return &tgmodels.InlineKeyboardMarkup{InlineKeyboard: rows}
}
