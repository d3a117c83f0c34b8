package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ad/go-telegram-funnel/internal/catalog"
	"github.com/ad/go-telegram-funnel/internal/fsm"
	"github.com/ad/go-telegram-funnel/internal/models"
	"pgregory.net/rapid"
)

type sentMessage struct {
	method   string
	chatID   int64
	body     string
	caption  string
	keyboard models.Keyboard
	failed   bool
}

// fakeChannel records every outbound attempt. With failStepSends set it
// rejects deliveries that carry a keyboard (step content) while letting
// plain notifications through, mimicking a transport that chokes on the
// payload itself.
type fakeChannel struct {
	mu            sync.Mutex
	sends         []sentMessage
	failStepSends bool
}

func (c *fakeChannel) record(method string, chatID int64, body, caption string, keyboard models.Keyboard) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	failed := c.failStepSends && keyboard != nil
	c.sends = append(c.sends, sentMessage{method, chatID, body, caption, keyboard, failed})
	if failed {
		return errors.New("delivery failed")
	}
	return nil
}

func (c *fakeChannel) SendText(_ context.Context, chatID int64, text string, kb models.Keyboard) error {
	return c.record("text", chatID, text, "", kb)
}

func (c *fakeChannel) SendDocument(_ context.Context, chatID int64, fileID, caption string, kb models.Keyboard) error {
	return c.record("document", chatID, fileID, caption, kb)
}

func (c *fakeChannel) SendVideo(_ context.Context, chatID int64, fileID, caption string, kb models.Keyboard) error {
	return c.record("video", chatID, fileID, caption, kb)
}

func (c *fakeChannel) SendAudio(_ context.Context, chatID int64, fileID, caption string, kb models.Keyboard) error {
	return c.record("audio", chatID, fileID, caption, kb)
}

func (c *fakeChannel) sent() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sends...)
}

type memProgress struct {
	mu      sync.Mutex
	entries map[int64]int
}

func newMemProgress() *memProgress {
	return &memProgress{entries: make(map[int64]int)}
}

func (p *memProgress) Get(userID int64) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	index, ok := p.entries[userID]
	return index, ok
}

func (p *memProgress) Set(userID int64, index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[userID] = index
	return nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []models.AnalyticsEvent
}

func (r *recordingEmitter) Emit(event models.AnalyticsEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) all() []models.AnalyticsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.AnalyticsEvent(nil), r.events...)
}

func (r *recordingEmitter) count(match func(models.AnalyticsEvent) bool) int {
	n := 0
	for _, e := range r.all() {
		if match(e) {
			n++
		}
	}
	return n
}

func isFinished(e models.AnalyticsEvent) bool {
	_, ok := e.(models.FunnelFinished)
	return ok
}

func isViewed(e models.AnalyticsEvent) bool {
	_, ok := e.(models.StepViewed)
	return ok
}

func isClicked(e models.AnalyticsEvent) bool {
	_, ok := e.(models.ButtonClicked)
	return ok
}

func twoStepCatalog() *catalog.Catalog {
	return catalog.New([]*models.Step{
		{Kind: models.KindText, Body: "welcome"},
		{Kind: models.KindVideo, Body: "VID1", Caption: "watch"},
	})
}

func fourStepCatalog() *catalog.Catalog {
	return catalog.New([]*models.Step{
		{Kind: models.KindText, Body: "s0"},
		{Kind: models.KindText, Body: "s1"},
		{Kind: models.KindText, Body: "s2"},
		{Kind: models.KindText, Body: "s3"},
	})
}

func newTestEngine(cat *catalog.Catalog) (*Engine, *fakeChannel, *memProgress, *recordingEmitter) {
	channel := &fakeChannel{}
	progress := newMemProgress()
	emitter := &recordingEmitter{}
	engine := NewEngine(cat, progress, channel, emitter, nil)
	return engine, channel, progress, emitter
}

func TestStartNewUser(t *testing.T) {
	engine, channel, progress, emitter := newTestEngine(twoStepCatalog())

	engine.Start(context.Background(), models.User{ID: 42, FirstName: "Ann"}, "  ")

	if index, ok := progress.Get(42); !ok || index != 0 {
		t.Errorf("progress = %d, %v; want 0", index, ok)
	}

	sends := channel.sent()
	if len(sends) != 1 || sends[0].method != "text" || sends[0].body != "welcome" {
		t.Fatalf("unexpected sends: %+v", sends)
	}

	events := emitter.all()
	if len(events) < 2 {
		t.Fatalf("expected UserStarted and StepViewed, got %d events", len(events))
	}
	started, ok := events[0].(models.UserStarted)
	if !ok {
		t.Fatalf("first event = %T, want UserStarted", events[0])
	}
	if started.Ref != NoRef {
		t.Errorf("blank ref = %q, want %q", started.Ref, NoRef)
	}
	if _, ok := events[1].(models.StepViewed); !ok {
		t.Errorf("second event = %T, want StepViewed", events[1])
	}
}

func TestStartResetsProgress(t *testing.T) {
	engine, _, progress, _ := newTestEngine(fourStepCatalog())
	progress.Set(42, 3)

	engine.Start(context.Background(), models.User{ID: 42}, "promo")

	if index, _ := progress.Get(42); index != 0 {
		t.Errorf("restart left progress at %d, want 0", index)
	}
}

func TestRenderPersistsBeforeDelivery(t *testing.T) {
	engine, channel, progress, _ := newTestEngine(twoStepCatalog())
	channel.failStepSends = true

	engine.Render(context.Background(), 42, 1)

	if index, ok := progress.Get(42); !ok || index != 1 {
		t.Fatalf("progress = %d, %v; must be persisted before delivery", index, ok)
	}

	sends := channel.sent()
	if len(sends) != 2 {
		t.Fatalf("expected failed delivery plus retry prompt, got %+v", sends)
	}
	if !sends[0].failed {
		t.Error("step delivery should have failed")
	}
	if sends[1].keyboard != nil || sends[1].method != "text" {
		t.Errorf("retry prompt malformed: %+v", sends[1])
	}
}

// The walk from spec'd behavior: start, advance twice through a two-step
// catalog, finish.
func TestFullWalkThroughTwoSteps(t *testing.T) {
	engine, channel, progress, emitter := newTestEngine(twoStepCatalog())
	ctx := context.Background()

	engine.Start(ctx, models.User{ID: 42}, "promo")
	if index, _ := progress.Get(42); index != 0 {
		t.Fatalf("after start: progress %d", index)
	}

	engine.Advance(ctx, 42, "next")
	if index, _ := progress.Get(42); index != 1 {
		t.Fatalf("after first next: progress %d", index)
	}
	sends := channel.sent()
	if sends[len(sends)-1].method != "video" || sends[len(sends)-1].body != "VID1" {
		t.Fatalf("expected video step, got %+v", sends[len(sends)-1])
	}

	engine.Advance(ctx, 42, "next")
	if index, _ := progress.Get(42); index != 1 {
		t.Errorf("completion must not persist index past catalog, got %d", index)
	}
	if n := emitter.count(isFinished); n != 1 {
		t.Errorf("FunnelFinished count = %d, want 1", n)
	}
	last := channel.sent()[len(channel.sent())-1]
	if last.method != "text" || last.keyboard != nil {
		t.Errorf("expected completion text, got %+v", last)
	}
}

func TestAdvanceGotoBackward(t *testing.T) {
	engine, channel, progress, _ := newTestEngine(fourStepCatalog())
	progress.Set(42, 3)

	engine.Advance(context.Background(), 42, "goto:1")

	if index, _ := progress.Get(42); index != 1 {
		t.Errorf("progress = %d, want 1", index)
	}
	last := channel.sent()[len(channel.sent())-1]
	if last.body != "s1" {
		t.Errorf("rendered %q, want s1", last.body)
	}
}

func TestAdvanceGotoBeyondLength(t *testing.T) {
	engine, channel, progress, emitter := newTestEngine(fourStepCatalog())
	progress.Set(42, 2)

	engine.Advance(context.Background(), 42, "goto:99")

	if index, _ := progress.Get(42); index != 2 {
		t.Errorf("out-of-range goto changed progress to %d", index)
	}
	if n := emitter.count(isFinished); n != 1 {
		t.Errorf("FunnelFinished count = %d, want 1 (index past end is completion)", n)
	}
	if n := emitter.count(isViewed); n != 0 {
		t.Errorf("StepViewed count = %d, want 0", n)
	}
	last := channel.sent()[len(channel.sent())-1]
	if last.keyboard != nil {
		t.Errorf("completion message should carry no keyboard: %+v", last)
	}
}

func TestAdvanceInvalidGoto(t *testing.T) {
	engine, channel, progress, emitter := newTestEngine(fourStepCatalog())
	progress.Set(42, 2)

	engine.Advance(context.Background(), 42, "goto:abc")

	if index, _ := progress.Get(42); index != 2 {
		t.Errorf("invalid goto changed progress to %d", index)
	}
	if n := emitter.count(isViewed); n != 0 {
		t.Errorf("StepViewed count = %d, want 0", n)
	}
	if n := emitter.count(isFinished); n != 0 {
		t.Errorf("FunnelFinished count = %d, want 0", n)
	}
	sends := channel.sent()
	if len(sends) != 1 || sends[0].method != "text" {
		t.Fatalf("expected one notice, got %+v", sends)
	}
}

func TestAdvanceNoop(t *testing.T) {
	engine, channel, progress, emitter := newTestEngine(fourStepCatalog())
	progress.Set(42, 2)

	engine.Advance(context.Background(), 42, "noop")

	if index, _ := progress.Get(42); index != 2 {
		t.Errorf("noop changed progress to %d", index)
	}
	if len(channel.sent()) != 0 {
		t.Errorf("noop should send nothing, got %+v", channel.sent())
	}
	if n := emitter.count(isClicked); n != 1 {
		t.Errorf("ButtonClicked count = %d, want 1", n)
	}
}

func TestAdvanceStepToken(t *testing.T) {
	engine, channel, progress, _ := newTestEngine(fourStepCatalog())

	engine.Advance(context.Background(), 42, "STEP2")

	if index, _ := progress.Get(42); index != 2 {
		t.Errorf("progress = %d, want 2 (step tokens are case-insensitive)", index)
	}
	last := channel.sent()[len(channel.sent())-1]
	if last.body != "s2" {
		t.Errorf("rendered %q, want s2", last.body)
	}
}

func TestAdvanceStepTokenOutsideCatalog(t *testing.T) {
	engine, channel, progress, emitter := newTestEngine(fourStepCatalog())
	progress.Set(42, 1)

	engine.Advance(context.Background(), 42, "step99")

	if index, _ := progress.Get(42); index != 1 {
		t.Errorf("progress = %d, want unchanged", index)
	}
	if n := emitter.count(isViewed); n != 0 {
		t.Errorf("StepViewed count = %d, want 0", n)
	}
	sends := channel.sent()
	if len(sends) != 1 {
		t.Fatalf("expected one notice, got %+v", sends)
	}
}

func TestAdvanceUnknownToken(t *testing.T) {
	engine, channel, progress, emitter := newTestEngine(fourStepCatalog())
	progress.Set(42, 1)

	engine.Advance(context.Background(), 42, "foo")

	if index, _ := progress.Get(42); index != 1 {
		t.Errorf("progress = %d, want unchanged", index)
	}
	if n := emitter.count(isClicked); n != 1 {
		t.Errorf("ButtonClicked count = %d, want exactly 1", n)
	}
	if n := emitter.count(isViewed); n != 0 {
		t.Errorf("StepViewed count = %d, want 0", n)
	}
	sends := channel.sent()
	if len(sends) != 1 || sends[0].method != "text" {
		t.Fatalf("expected one unknown-action notice, got %+v", sends)
	}
}

func TestAdvanceNextWithoutPriorProgress(t *testing.T) {
	engine, channel, progress, _ := newTestEngine(fourStepCatalog())

	engine.Advance(context.Background(), 42, "next")

	if index, _ := progress.Get(42); index != 1 {
		t.Errorf("progress = %d, want 1 (current defaults to 0)", index)
	}
	last := channel.sent()[len(channel.sent())-1]
	if last.body != "s1" {
		t.Errorf("rendered %q, want s1", last.body)
	}
}

func TestPlaceholderButtonRoundTrip(t *testing.T) {
	cat := catalog.New([]*models.Step{
		{Kind: models.KindText, Body: "s0", Rows: [][]models.Button{
			{{Label: "Broken"}},
		}},
	})
	engine, channel, progress, _ := newTestEngine(cat)
	ctx := context.Background()

	engine.Render(ctx, 42, 0)

	sends := channel.sent()
	kb := sends[0].keyboard
	if len(kb) != 1 || len(kb[0]) != 1 {
		t.Fatalf("keyboard shape: %+v", kb)
	}
	if kb[0][0].Token != fsm.TokenNoop || kb[0][0].Label != PlaceholderLabel {
		t.Fatalf("expected disabled placeholder, got %+v", kb[0][0])
	}

	engine.Advance(ctx, 42, kb[0][0].Token)
	if index, _ := progress.Get(42); index != 0 {
		t.Errorf("placeholder press changed progress to %d", index)
	}
	if len(channel.sent()) != 1 {
		t.Errorf("placeholder press should send nothing new")
	}
}

func TestConcurrentAdvanceNext(t *testing.T) {
	engine, _, progress, _ := newTestEngine(fourStepCatalog())
	progress.Set(42, 0)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.Advance(context.Background(), 42, "next")
		}()
	}
	wg.Wait()

	// Last write wins: both presses may read the same current index, so
	// the result is 1 or 2, never anything else.
	index, ok := progress.Get(42)
	if !ok || index < 1 || index > 2 {
		t.Errorf("progress = %d, %v; want 1 or 2", index, ok)
	}
}

func TestEventTimestampsNonDecreasing(t *testing.T) {
	engine, _, _, emitter := newTestEngine(twoStepCatalog())
	ctx := context.Background()

	engine.Start(ctx, models.User{ID: 42}, "promo")
	engine.Advance(ctx, 42, "next")
	engine.Advance(ctx, 42, "next")

	events := emitter.all()
	for i := 1; i < len(events); i++ {
		if events[i].EventTime().Before(events[i-1].EventTime()) {
			t.Fatalf("event %d emitted before event %d", i, i-1)
		}
	}
}

func TestProperty_ArbitraryTokenKeepsProgressValid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		engine, _, progress, emitter := newTestEngine(fourStepCatalog())

		start := rapid.IntRange(0, 3).Draw(rt, "start")
		progress.Set(42, start)
		token := rapid.String().Draw(rt, "token")

		engine.Advance(context.Background(), 42, token)

		if n := emitter.count(isClicked); n != 1 {
			rt.Fatalf("ButtonClicked count = %d, want exactly 1", n)
		}

		index, ok := progress.Get(42)
		if !ok {
			rt.Fatal("progress row disappeared")
		}
		if index < 0 || index > 3 {
			rt.Fatalf("progress %d escaped the catalog range", index)
		}
	})
}
