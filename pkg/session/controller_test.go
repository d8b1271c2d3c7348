package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cafevoz/cafevoz/pkg/audiodev"
	"github.com/cafevoz/cafevoz/pkg/menu"
	"github.com/cafevoz/cafevoz/pkg/order"
	"github.com/cafevoz/cafevoz/pkg/speech"
)

// fakeStream is a controllable Stream. Tests fire the callbacks directly
// to drive the controller through its transitions.
type fakeStream struct {
	mu      sync.Mutex
	onOpen  func()
	onDelta func(string)
	onTurn  func()
	onErr   func(error)

	connectErr    error
	openOnConnect bool

	connected bool
	closed    bool
	sent      int
}

func (f *fakeStream) OnOpen(fn func())                  { f.onOpen = fn }
func (f *fakeStream) OnTranscriptDelta(fn func(string)) { f.onDelta = fn }
func (f *fakeStream) OnTurnComplete(fn func())          { f.onTurn = fn }
func (f *fakeStream) OnError(fn func(error))            { f.onErr = fn }

func (f *fakeStream) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	if f.openOnConnect && f.onOpen != nil {
		f.onOpen()
	}
	return nil
}

func (f *fakeStream) SendAudio(pcm16 []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("stream closed")
	}
	f.sent++
	return nil
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeStream) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// stubParser records calls and returns a fixed result.
type stubParser struct {
	lines []order.Line

	calls      atomic.Int32
	mu         sync.Mutex
	transcript string
}

func (p *stubParser) Parse(ctx context.Context, transcript string, cat *menu.Catalog) []order.Line {
	p.calls.Add(1)
	p.mu.Lock()
	p.transcript = transcript
	p.mu.Unlock()
	return p.lines
}

func (p *stubParser) lastTranscript() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transcript
}

type fixture struct {
	ctrl    *Controller
	stream  *fakeStream
	parser  *stubParser
	synth   *speech.Mock
	sink    *audiodev.MockSink
	sources []*audiodev.MockSource
	streams int

	frames     atomic.Int32
	synthMu    sync.Mutex
	synthCalls []error
}

func (f *fixture) synthResults() []error {
	f.synthMu.Lock()
	defer f.synthMu.Unlock()
	return append([]error(nil), f.synthCalls...)
}

func testCatalog(t *testing.T) *menu.Catalog {
	t.Helper()
	cat, err := menu.New([]menu.Item{
		{ID: 1, Category: "Bebidas", Name: "Café con leche", Price: 500, Available: true},
		{ID: 2, Category: "Panadería", Name: "Medialuna", Price: 1200, Available: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func newFixture(t *testing.T, lines []order.Line) *fixture {
	t.Helper()

	f := &fixture{
		stream: &fakeStream{openOnConnect: true},
		parser: &stubParser{lines: lines},
		synth:  speech.NewMock(),
	}

	audioCfg := audiodev.DefaultConfig()
	audioCfg.Backend = audiodev.BackendMock
	audioCfg.FrameDuration = 5 * time.Millisecond
	f.sink = audiodev.NewMockSink(audioCfg, nil)

	ctrl, err := NewController(Config{
		Catalog: testCatalog(t),
		Parser:  f.parser,
		Synth:   f.synth,
		Sink:    f.sink,
		NewStream: func() (Stream, error) {
			f.streams++
			return f.stream, nil
		},
		NewSource: func() (audiodev.Source, error) {
			src := audiodev.NewMockSource(audioCfg, nil)
			f.sources = append(f.sources, src)
			return src, nil
		},
		Hooks: Hooks{
			FrameForwarded: func() { f.frames.Add(1) },
			SynthesisResult: func(err error) {
				f.synthMu.Lock()
				f.synthCalls = append(f.synthCalls, err)
				f.synthMu.Unlock()
			},
		},
		Logger: slog.Default(),
	})
	if err != nil {
		t.Fatal(err)
	}
	f.ctrl = ctrl
	return f
}

func waitIdle(t *testing.T, ctrl *Controller) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for ctrl.State() != StateIdle {
		select {
		case <-deadline:
			t.Fatalf("controller stuck in state %s", ctrl.State())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestFullTurn(t *testing.T) {
	f := newFixture(t, []order.Line{
		{ID: 1, Name: "Café con leche", Quantity: 2, UnitPrice: 500},
	})

	sess, err := f.ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if sess.State() != StateListening {
		t.Errorf("state after open = %s, want %s", sess.State(), StateListening)
	}

	f.stream.onDelta("dos cafés ")
	f.stream.onDelta("con leche")
	if got := f.ctrl.Transcript(); got != "dos cafés con leche" {
		t.Errorf("live transcript = %q", got)
	}

	f.stream.onTurn()
	waitIdle(t, f.ctrl)

	if got := f.parser.lastTranscript(); got != "dos cafés con leche" {
		t.Errorf("parser transcript = %q", got)
	}

	lines, total := f.ctrl.Order()
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("unexpected order: %+v", lines)
	}
	if total != 1000 {
		t.Errorf("total = %v, want 1000", total)
	}
	if got := f.ctrl.Status(); got != StatusConfirmed {
		t.Errorf("status = %q, want %q", got, StatusConfirmed)
	}

	if f.synth.CallCount("Synthesize") != 1 {
		t.Errorf("Synthesize calls = %d, want 1", f.synth.CallCount("Synthesize"))
	}
	if !f.stream.isClosed() {
		t.Error("expected stream closed after turn")
	}
	if f.sources[0].Stats().Running {
		t.Error("expected microphone stopped after turn")
	}
}

func TestBlankTranscriptSkipsParser(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.stream.onDelta("   ")
	f.stream.onTurn()
	waitIdle(t, f.ctrl)

	if n := f.parser.calls.Load(); n != 0 {
		t.Errorf("parser calls = %d, want 0", n)
	}
	if lines, _ := f.ctrl.Order(); len(lines) != 0 {
		t.Errorf("expected empty order, got %+v", lines)
	}
	if got := f.ctrl.Status(); got != StatusNoOrder {
		t.Errorf("status = %q, want %q", got, StatusNoOrder)
	}
	if f.synth.CallCount("Synthesize") != 0 {
		t.Error("expected no synthesis for blank transcript")
	}
}

func TestStartWhileActiveIsNoOp(t *testing.T) {
	f := newFixture(t, nil)

	first, err := f.ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	second, err := f.ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	if first.ID() != second.ID() {
		t.Error("expected second start to return the active session")
	}
	if f.streams != 1 {
		t.Errorf("streams opened = %d, want 1", f.streams)
	}
	if len(f.sources) != 1 {
		t.Errorf("microphones opened = %d, want 1", len(f.sources))
	}
}

func TestStopReleasesEverything(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.ctrl.Stop()

	if got := f.ctrl.State(); got != StateIdle {
		t.Errorf("state after Stop = %s, want %s", got, StateIdle)
	}
	if !f.stream.isClosed() {
		t.Error("expected stream closed")
	}
	if f.sources[0].Stats().Running {
		t.Error("expected microphone stopped")
	}

	// A new session can start after teardown.
	if _, err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if f.streams != 2 {
		t.Errorf("streams opened = %d, want 2", f.streams)
	}
}

func TestLateOpenAfterStopStaysIdle(t *testing.T) {
	f := newFixture(t, nil)
	f.stream.openOnConnect = false

	first, err := f.ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if first.State() != StateConnecting {
		t.Fatalf("state before open = %s, want %s", first.State(), StateConnecting)
	}

	// Stop while still connecting, then the server's open signal arrives.
	f.ctrl.Stop()
	f.stream.onOpen()

	if got := f.ctrl.State(); got != StateIdle {
		t.Errorf("state after late open = %s, want %s", got, StateIdle)
	}

	// The controller must accept a fresh session afterwards.
	second, err := f.ctrl.Start(context.Background())
	if err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if second.ID() == first.ID() {
		t.Error("expected a new session, got the stopped one")
	}
	if f.streams != 2 {
		t.Errorf("streams opened = %d, want 2", f.streams)
	}
}

func TestLateDeltaAfterStopIsDropped(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.ctrl.Stop()
	f.stream.onDelta("una medialuna")

	if got := f.ctrl.Transcript(); got != "" {
		t.Errorf("transcript after stop = %q, want empty", got)
	}
	if n := f.parser.calls.Load(); n != 0 {
		t.Errorf("parser calls = %d, want 0", n)
	}
}

func TestStopWhenIdleIsNoOp(t *testing.T) {
	f := newFixture(t, nil)
	f.ctrl.Stop()
	if got := f.ctrl.Status(); got != StatusReady {
		t.Errorf("status = %q, want %q", got, StatusReady)
	}
}

func TestStreamErrorProcessesPartialTranscript(t *testing.T) {
	f := newFixture(t, []order.Line{
		{ID: 2, Name: "Medialuna", Quantity: 1, UnitPrice: 1200},
	})

	if _, err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.stream.onDelta("una medialuna")
	f.stream.onErr(errors.New("connection reset"))
	waitIdle(t, f.ctrl)

	if got := f.parser.lastTranscript(); got != "una medialuna" {
		t.Errorf("parser transcript = %q, want partial transcript", got)
	}
	if lines, _ := f.ctrl.Order(); len(lines) != 1 {
		t.Errorf("expected order from partial transcript, got %+v", lines)
	}
}

func TestStreamErrorWithoutTranscript(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.stream.onErr(errors.New("connection reset"))
	waitIdle(t, f.ctrl)

	if n := f.parser.calls.Load(); n != 0 {
		t.Errorf("parser calls = %d, want 0", n)
	}
	if got := f.ctrl.Status(); got != StatusStreamError {
		t.Errorf("status = %q, want %q", got, StatusStreamError)
	}
}

func TestNoMenuMatch(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.stream.onDelta("una pizza grande")
	f.stream.onTurn()
	waitIdle(t, f.ctrl)

	if got := f.ctrl.Status(); got != StatusNotUnderstood {
		t.Errorf("status = %q, want %q", got, StatusNotUnderstood)
	}
	if f.synth.CallCount("Synthesize") != 0 {
		t.Error("expected no synthesis when nothing matched")
	}
}

func TestMicrophoneFailure(t *testing.T) {
	f := newFixture(t, nil)

	micErr := errors.New("device busy")
	ctrl, err := NewController(Config{
		Catalog:   testCatalog(t),
		Parser:    f.parser,
		NewStream: func() (Stream, error) { return f.stream, nil },
		NewSource: func() (audiodev.Source, error) { return nil, micErr },
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ctrl.Start(context.Background()); !errors.Is(err, micErr) {
		t.Errorf("Start() error = %v, want wrapped %v", err, micErr)
	}
	if got := ctrl.State(); got != StateIdle {
		t.Errorf("state = %s, want %s", got, StateIdle)
	}
	if got := ctrl.Status(); got != StatusMicError {
		t.Errorf("status = %q, want %q", got, StatusMicError)
	}
}

func TestConnectFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.stream.connectErr = errors.New("dial refused")

	if _, err := f.ctrl.Start(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if got := f.ctrl.Status(); got != StatusStreamError {
		t.Errorf("status = %q, want %q", got, StatusStreamError)
	}
	if f.sources[0].Stats().Running {
		t.Error("expected microphone released after connect failure")
	}
}

func TestSynthesisFailureStillConfirms(t *testing.T) {
	f := newFixture(t, []order.Line{
		{ID: 1, Name: "Café con leche", Quantity: 1, UnitPrice: 500},
	})
	f.synth.SynthesizeFunc = func(ctx context.Context, text string) (*speech.AudioResult, error) {
		return nil, speech.ErrNoAudio
	}

	if _, err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	f.stream.onDelta("un café con leche")
	f.stream.onTurn()
	waitIdle(t, f.ctrl)

	if lines, _ := f.ctrl.Order(); len(lines) != 1 {
		t.Errorf("expected order despite synthesis failure, got %+v", lines)
	}
	if got := f.ctrl.Status(); got != StatusConfirmed {
		t.Errorf("status = %q, want %q", got, StatusConfirmed)
	}
}

func TestSynthesisHookObservesOutcome(t *testing.T) {
	f := newFixture(t, []order.Line{
		{ID: 1, Name: "Café con leche", Quantity: 1, UnitPrice: 500},
	})
	f.synth.SynthesizeFunc = func(ctx context.Context, text string) (*speech.AudioResult, error) {
		return nil, speech.ErrNoAudio
	}

	if _, err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.stream.onDelta("un café con leche")
	f.stream.onTurn()
	waitIdle(t, f.ctrl)

	results := f.synthResults()
	if len(results) != 1 {
		t.Fatalf("synthesis hook calls = %d, want 1", len(results))
	}
	if !errors.Is(results[0], speech.ErrNoAudio) {
		t.Errorf("synthesis hook error = %v, want %v", results[0], speech.ErrNoAudio)
	}
}

func TestFrameHookCountsForwardedFrames(t *testing.T) {
	f := newFixture(t, nil)

	if _, err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for f.frames.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("no frames forwarded")
		case <-time.After(5 * time.Millisecond):
		}
	}

	f.ctrl.Stop()
}

func TestClearOrder(t *testing.T) {
	f := newFixture(t, []order.Line{
		{ID: 1, Name: "Café con leche", Quantity: 1, UnitPrice: 500},
	})

	if _, err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.stream.onDelta("un café")
	f.stream.onTurn()
	waitIdle(t, f.ctrl)

	if lines, _ := f.ctrl.Order(); len(lines) == 0 {
		t.Fatal("expected an order")
	}
	f.ctrl.ClearOrder()
	if lines, total := f.ctrl.Order(); len(lines) != 0 || total != 0 {
		t.Errorf("expected cleared order, got %+v total %v", lines, total)
	}
}

func TestEventsObserved(t *testing.T) {
	f := newFixture(t, []order.Line{
		{ID: 1, Name: "Café con leche", Quantity: 1, UnitPrice: 500},
	})

	var mu sync.Mutex
	var types []EventType
	f.ctrl.OnEvent(func(ev Event) {
		mu.Lock()
		types = append(types, ev.Type)
		mu.Unlock()
	})

	if _, err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	f.stream.onDelta("un café")
	f.stream.onTurn()
	waitIdle(t, f.ctrl)

	mu.Lock()
	defer mu.Unlock()

	joined := ""
	for _, tp := range types {
		joined += string(tp) + " "
	}
	if !strings.Contains(joined, string(EventTranscript)) {
		t.Errorf("missing transcript event in %q", joined)
	}
	if !strings.Contains(joined, string(EventOrder)) {
		t.Errorf("missing order event in %q", joined)
	}
	if !strings.Contains(joined, string(EventState)) {
		t.Errorf("missing state events in %q", joined)
	}
}
