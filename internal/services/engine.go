package services

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/ad/go-telegram-funnel/internal/catalog"
	"github.com/ad/go-telegram-funnel/internal/fsm"
	"github.com/ad/go-telegram-funnel/internal/models"
)

// NoRef is recorded when /start carries no usable ref argument.
const NoRef = "no_ref"

const (
	defaultCompletionMessage    = "🎉 Ты прошёл все шаги! Спасибо, что был с нами."
	defaultRetryMessage         = "⚠️ Не удалось отправить сообщение, попробуйте ещё раз."
	defaultUnknownActionMessage = "⏳ Эта кнопка пока не реализована"
	defaultInvalidGotoMessage   = "⚠️ Некорректный номер шага"
)

// Channel is the outbound messaging boundary. The Telegram implementation
// lives in MessageManager; tests use a recording fake.
type Channel interface {
	SendText(ctx context.Context, chatID int64, text string, keyboard models.Keyboard) error
	SendDocument(ctx context.Context, chatID int64, fileID, caption string, keyboard models.Keyboard) error
	SendVideo(ctx context.Context, chatID int64, fileID, caption string, keyboard models.Keyboard) error
	SendAudio(ctx context.Context, chatID int64, fileID, caption string, keyboard models.Keyboard) error
}

// EventEmitter is the analytics boundary as the engine sees it: emission
// cannot fail and cannot block.
type EventEmitter interface {
	Emit(event models.AnalyticsEvent)
}

// Progress is the engine's view of the progress store: an in-memory map
// backed by durable storage, Set durable before returning.
type Progress interface {
	Get(userID int64) (int, bool)
	Set(userID int64, index int) error
}

// Engine owns the funnel state machine. Per user the state is the last
// rendered step index; any resolved index at or past the catalog end is
// the terminal completion state. No method ever returns an error: every
// failure is handled where it happens, so one user's bad delivery can
// never take the process down.
type Engine struct {
	catalog  *catalog.Catalog
	progress Progress
	channel  Channel
	emitter  EventEmitter
	texts    models.Texts
}

func NewEngine(cat *catalog.Catalog, progress Progress, channel Channel, emitter EventEmitter, texts *models.Texts) *Engine {
	e := &Engine{
		catalog:  cat,
		progress: progress,
		channel:  channel,
		emitter:  emitter,
		texts: models.Texts{
			CompletionMessage:    defaultCompletionMessage,
			RetryMessage:         defaultRetryMessage,
			UnknownActionMessage: defaultUnknownActionMessage,
			InvalidGotoMessage:   defaultInvalidGotoMessage,
		},
	}
	if texts != nil {
		if texts.CompletionMessage != "" {
			e.texts.CompletionMessage = texts.CompletionMessage
		}
		if texts.RetryMessage != "" {
			e.texts.RetryMessage = texts.RetryMessage
		}
		if texts.UnknownActionMessage != "" {
			e.texts.UnknownActionMessage = texts.UnknownActionMessage
		}
		if texts.InvalidGotoMessage != "" {
			e.texts.InvalidGotoMessage = texts.InvalidGotoMessage
		}
	}
	return e
}

// Start restarts the funnel from step 0, unconditionally. Re-running
// /start is a restart, not an error and not a confirmation dialog.
func (e *Engine) Start(ctx context.Context, user models.User, ref string) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = NoRef
	}

	e.emitter.Emit(models.UserStarted{TS: time.Now(), User: user, Ref: ref})
	e.Render(ctx, user.ID, 0)
}

// Render shows the step at index to the user. Progress is persisted before
// the step is emitted to analytics and before delivery is attempted: a
// crash mid-delivery must still reflect forward progress. The accepted
// trade-off is that a failed delivery can skip a step's content; the
// keyboard always offers a way forward.
func (e *Engine) Render(ctx context.Context, userID int64, index int) {
	step := e.catalog.Get(index)
	if step == nil {
		e.finish(ctx, userID)
		return
	}

	if err := e.progress.Set(userID, index); err != nil {
		log.Printf("[ENGINE] persist progress user=%d index=%d: %v", userID, index, err)
	}

	e.emitter.Emit(models.StepViewed{TS: time.Now(), UserID: userID, StepIndex: index, StepKind: step.Kind})

	keyboard := BuildKeyboard(step)
	if err := e.deliver(ctx, userID, step, keyboard); err != nil {
		log.Printf("[ENGINE] deliver step %d to user %d: %v", index, userID, err)
		e.notify(ctx, userID, e.texts.RetryMessage)
	}
}

// Advance processes a pressed navigation button. The raw token is recorded
// first so the audit trail includes presses that resolve to nothing.
func (e *Engine) Advance(ctx context.Context, userID int64, rawToken string) {
	e.emitter.Emit(models.ButtonClicked{TS: time.Now(), UserID: userID, Token: rawToken})

	current, ok := e.progress.Get(userID)
	if !ok {
		current = 0
	}

	action := fsm.Resolve(rawToken)
	switch action.Kind {
	case fsm.ActionNext:
		e.Render(ctx, userID, current+1)
	case fsm.ActionNoop:
		// Placeholder button: the callback is acknowledged by the
		// handler, nothing else happens.
	case fsm.ActionGoto:
		e.Render(ctx, userID, action.Index)
	case fsm.ActionGotoInvalid:
		e.notify(ctx, userID, e.texts.InvalidGotoMessage)
	case fsm.ActionStep:
		if e.catalog.Get(action.Index) != nil {
			e.Render(ctx, userID, action.Index)
		} else {
			e.notify(ctx, userID, e.texts.UnknownActionMessage+": "+rawToken)
		}
	default:
		e.notify(ctx, userID, e.texts.UnknownActionMessage+": "+rawToken)
	}
}

// finish is the terminal state. It never persists an index past the
// catalog: the store keeps the last valid rendered index, and every visit
// here re-sends the completion message and emits one FunnelFinished.
func (e *Engine) finish(ctx context.Context, userID int64) {
	if err := e.channel.SendText(ctx, userID, e.texts.CompletionMessage, nil); err != nil {
		log.Printf("[ENGINE] deliver completion to user %d: %v", userID, err)
	}
	e.emitter.Emit(models.FunnelFinished{TS: time.Now(), UserID: userID})
}

func (e *Engine) deliver(ctx context.Context, userID int64, step *models.Step, keyboard models.Keyboard) error {
	switch step.Kind {
	case models.KindDocument:
		return e.channel.SendDocument(ctx, userID, step.Body, step.Caption, keyboard)
	case models.KindVideo:
		return e.channel.SendVideo(ctx, userID, step.Body, step.Caption, keyboard)
	case models.KindAudio:
		return e.channel.SendAudio(ctx, userID, step.Body, step.Caption, keyboard)
	default:
		return e.channel.SendText(ctx, userID, step.Body, keyboard)
	}
}

func (e *Engine) notify(ctx context.Context, userID int64, text string) {
	if err := e.channel.SendText(ctx, userID, text, nil); err != nil {
		log.Printf("[ENGINE] notify user %d: %v", userID, err)
	}
}
