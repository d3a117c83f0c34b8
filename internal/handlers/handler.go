package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/ad/go-telegram-funnel/internal/db"
	"github.com/ad/go-telegram-funnel/internal/models"
	"github.com/ad/go-telegram-funnel/internal/services"
	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

type BotHandler struct {
	bot          *bot.Bot
	adminID      int64
	errorManager *services.ErrorManager
	engine       *services.Engine
	userRepo     *db.UserRepository
}

func NewBotHandler(
	b *bot.Bot,
	adminID int64,
	errorManager *services.ErrorManager,
	engine *services.Engine,
	userRepo *db.UserRepository,
) *BotHandler {
	return &BotHandler{
		bot:          b,
		adminID:      adminID,
		errorManager: errorManager,
		engine:       engine,
		userRepo:     userRepo,
	}
}

func (h *BotHandler) HandleUpdate(ctx context.Context, b *bot.Bot, update *tgmodels.Update) {
	defer h.recoverPanic(ctx, update)

	if update.Message != nil {
		h.handleMessage(ctx, update.Message)
	} else if update.CallbackQuery != nil {
		h.handleCallback(ctx, update.CallbackQuery)
	} else if update.ChannelPost != nil {
		h.handleChannelPost(ctx, update.ChannelPost)
	}
}

func (h *BotHandler) recoverPanic(ctx context.Context, update *tgmodels.Update) {
	if r := recover(); r != nil {
		h.errorManager.NotifyAdmin(ctx, r, update)
	}
}

func (h *BotHandler) handleMessage(ctx context.Context, msg *tgmodels.Message) {
	if msg.From == nil {
		return
	}

	if ref, ok := ParseStartCommand(msg.Text); ok {
		h.handleStart(ctx, msg, ref)
	}
}

func (h *BotHandler) handleStart(ctx context.Context, msg *tgmodels.Message, ref string) {
	user := models.User{
		ID:        msg.From.ID,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
		Username:  msg.From.Username,
		Ref:       ref,
	}
	if user.Ref == "" {
		user.Ref = services.NoRef
	}

	if err := h.userRepo.CreateOrUpdate(&user); err != nil {
		h.errorManager.NotifyAdminWithCurl(ctx, user.ID, msg, err)
	}

	h.engine.Start(ctx, user, ref)
}

func (h *BotHandler) handleCallback(ctx context.Context, callback *tgmodels.CallbackQuery) {
	h.engine.Advance(ctx, callback.From.ID, callback.Data)

	h.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
	})
}

// handleChannelPost is an operator convenience outside the funnel: posting
// media to a channel the bot is in reports the media's file id back to the
// admin chat, ready to paste into the step catalog.
func (h *BotHandler) handleChannelPost(ctx context.Context, msg *tgmodels.Message) {
	if h.adminID == 0 {
		return
	}

	h.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: h.adminID,
		Text:   DescribeMedia(msg),
	})
}

// ParseStartCommand reports whether text is a /start command and returns
// its ref argument (deep-link payload or trailing words).
func ParseStartCommand(text string) (string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}

	command := fields[0]
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}
	if command != "/start" {
		return "", false
	}

	return strings.Join(fields[1:], " "), true
}

// DescribeMedia formats a channel post's transport file id for the
// operator. The largest photo size is reported, matching what sendPhoto
// would accept back.
func DescribeMedia(msg *tgmodels.Message) string {
	switch {
	case msg.Video != nil:
		return fmt.Sprintf("🎥 Видео file_id:\n%s", msg.Video.FileID)
	case msg.Document != nil:
		return fmt.Sprintf("📄 Документ file_id:\n%s", msg.Document.FileID)
	case msg.Audio != nil:
		return fmt.Sprintf("🎵 Аудио file_id:\n%s", msg.Audio.FileID)
	case msg.Voice != nil:
		return fmt.Sprintf("🎙 Голосовое сообщение file_id:\n%s", msg.Voice.FileID)
	case len(msg.Photo) > 0:
		return fmt.Sprintf("🖼 Фото file_id:\n%s", msg.Photo[len(msg.Photo)-1].FileID)
	}
	return "🤷 Канал получил что-то, что бот не обрабатывает."
}
