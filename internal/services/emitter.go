package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/ad/go-telegram-funnel/internal/models"
)

// Sink is the append-only analytics backend. Rows for different users may
// interleave; the emitter only promises per-process emission order on its
// own queue.
type Sink interface {
	AppendUser(ts time.Time, user models.User, ref string) error
	AppendStep(ts time.Time, userID int64, stepIndex int, stepKind models.StepKind) error
	AppendEvent(ts time.Time, userID int64, eventType models.EventType, data string) error
}

// NoopSink swallows everything. Used when the sink cannot be initialized
// at startup; the engine never notices the difference.
type NoopSink struct{}

func (NoopSink) AppendUser(time.Time, models.User, string) error { return nil }
func (NoopSink) AppendStep(time.Time, int64, int, models.StepKind) error {
	return nil
}
func (NoopSink) AppendEvent(time.Time, int64, models.EventType, string) error {
	return nil
}

// Emitter decouples analytics from the funnel-critical path: Emit never
// blocks and never fails from the caller's point of view. Events flow
// through a bounded queue to one worker; a full queue drops the event with
// a warning, a sink failure is logged and swallowed.
type Emitter struct {
	sink   Sink
	events chan models.AnalyticsEvent
	done   chan struct{}
}

func NewEmitter(sink Sink) *Emitter {
	if sink == nil {
		sink = NoopSink{}
	}
	e := &Emitter{
		sink:   sink,
		events: make(chan models.AnalyticsEvent, 256),
		done:   make(chan struct{}),
	}
	go e.worker()
	return e
}

func (e *Emitter) Emit(event models.AnalyticsEvent) {
	select {
	case e.events <- event:
	default:
		log.Printf("[EMITTER] queue full, dropping %T", event)
	}
}

// Close stops accepting events and drains the queue for at most grace.
func (e *Emitter) Close(grace time.Duration) {
	close(e.events)
	select {
	case <-e.done:
	case <-time.After(grace):
		log.Printf("[EMITTER] drain timed out after %s, %d events lost", grace, len(e.events))
	}
}

func (e *Emitter) worker() {
	for event := range e.events {
		if err := e.append(event); err != nil {
			log.Printf("[EMITTER] append %T: %v", event, err)
		}
	}
	close(e.done)
}

func (e *Emitter) append(event models.AnalyticsEvent) error {
	switch ev := event.(type) {
	case models.UserStarted:
		if err := e.sink.AppendUser(ev.TS, ev.User, ev.Ref); err != nil {
			return err
		}
		return e.sink.AppendEvent(ev.TS, ev.User.ID, models.EventStart, mustJSON(map[string]string{"ref": ev.Ref}))
	case models.StepViewed:
		return e.sink.AppendStep(ev.TS, ev.UserID, ev.StepIndex, ev.StepKind)
	case models.ButtonClicked:
		return e.sink.AppendEvent(ev.TS, ev.UserID, models.EventClick, mustJSON(map[string]string{"token": ev.Token}))
	case models.FunnelFinished:
		return e.sink.AppendEvent(ev.TS, ev.UserID, models.EventFinish, "{}")
	}
	return nil
}

func mustJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
