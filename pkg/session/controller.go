package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cafevoz/cafevoz/pkg/audio"
	"github.com/cafevoz/cafevoz/pkg/audiodev"
	"github.com/cafevoz/cafevoz/pkg/menu"
	"github.com/cafevoz/cafevoz/pkg/order"
	"github.com/cafevoz/cafevoz/pkg/speech"
)

const defaultProcessTimeout = 30 * time.Second

// Parser turns a final transcript into order lines. *order.Parser
// satisfies this.
type Parser interface {
	Parse(ctx context.Context, transcript string, cat *menu.Catalog) []order.Line
}

// Config wires a Controller.
type Config struct {
	// Catalog is the menu the parser matches against. Required.
	Catalog *menu.Catalog

	// Parser converts transcripts to order lines. Required.
	Parser Parser

	// NewStream opens the transcription stream for each session. Required.
	NewStream StreamFactory

	// NewSource opens the microphone for each session. Required.
	NewSource SourceFactory

	// Synth speaks the order confirmation. Optional; nil skips the
	// spoken confirmation.
	Synth speech.Synthesizer

	// Sink plays the confirmation audio. Optional; nil skips playback
	// even when Synth is set.
	Sink audiodev.Sink

	// ProcessTimeout bounds the parse and synthesis calls after a turn
	// ends. Default 30s.
	ProcessTimeout time.Duration

	// Hooks observes pipeline measurements the event stream does not
	// carry. All fields optional.
	Hooks Hooks

	Logger *slog.Logger
}

// Hooks receive per-operation measurements from inside the pipeline.
// Nil fields are skipped. Hooks run on controller goroutines and must
// not block.
type Hooks struct {
	// FrameForwarded fires after each audio frame sent upstream.
	FrameForwarded func()

	// SynthesisResult fires after each confirmation synthesis attempt,
	// with nil on success.
	SynthesisResult func(err error)
}

// Controller owns the single active voice session. Starting a session while
// one is active is a no-op; there is never more than one microphone or
// stream open at a time.
type Controller struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	current   *Session
	lastLines []order.Line

	subMu sync.Mutex
	subs  []func(Event)
}

// NewController validates the wiring and returns a Controller in the idle
// state.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("session: catalog is required")
	}
	if cfg.Parser == nil {
		return nil, fmt.Errorf("session: parser is required")
	}
	if cfg.NewStream == nil {
		return nil, fmt.Errorf("session: stream factory is required")
	}
	if cfg.NewSource == nil {
		return nil, fmt.Errorf("session: source factory is required")
	}
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = defaultProcessTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Controller{cfg: cfg, logger: cfg.Logger}, nil
}

// OnEvent registers an observer for state, transcript, and order events.
// Observers run on controller goroutines and must not block.
func (c *Controller) OnEvent(fn func(Event)) {
	c.subMu.Lock()
	c.subs = append(c.subs, fn)
	c.subMu.Unlock()
}

func (c *Controller) emit(ev Event) {
	c.subMu.Lock()
	subs := c.subs
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// Start begins a new session: microphone first, then the transcription
// stream. If a session is already active it is returned unchanged and no
// new resources are acquired. ctx bounds only the connection handshake;
// the session itself runs until the server ends the turn or Stop is
// called.
func (c *Controller) Start(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if c.current != nil && c.current.Active() {
		sess := c.current
		c.mu.Unlock()
		c.logger.Debug("session already active, ignoring start", "session_id", sess.ID())
		return sess, nil
	}

	sess := newSession()
	c.current = sess
	c.lastLines = nil
	c.mu.Unlock()

	c.logger.Info("session starting", "session_id", sess.ID())
	c.emitState(sess)

	source, err := c.cfg.NewSource()
	if err != nil {
		c.logger.Error("microphone unavailable", "session_id", sess.ID(), "error", err)
		c.setIdle(sess, StatusMicError)
		return nil, fmt.Errorf("session: open microphone: %w", err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	if err := source.Start(sctx); err != nil {
		cancel()
		source.Close()
		c.logger.Error("microphone start failed", "session_id", sess.ID(), "error", err)
		c.setIdle(sess, StatusMicError)
		return nil, fmt.Errorf("session: start microphone: %w", err)
	}

	stream, err := c.cfg.NewStream()
	if err != nil {
		cancel()
		source.Close()
		c.logger.Error("stream setup failed", "session_id", sess.ID(), "error", err)
		c.setIdle(sess, StatusStreamError)
		return nil, fmt.Errorf("session: open stream: %w", err)
	}

	sess.mu.Lock()
	sess.source = source
	sess.stream = stream
	sess.cancel = cancel
	sess.mu.Unlock()

	// The server callbacks can fire after the session has been torn down.
	// A setupComplete racing a manual stop must not resurrect the state.
	stream.OnOpen(func() {
		if !sess.setStateIfLive(StateListening, StatusListening) {
			return
		}
		c.logger.Info("stream open, forwarding audio", "session_id", sess.ID())
		c.emitState(sess)
		go c.pump(sess)
	})
	stream.OnTranscriptDelta(func(text string) {
		if sess.finalized.Load() {
			return
		}
		full := sess.appendTranscript(text)
		c.emit(Event{
			Type:       EventTranscript,
			SessionID:  sess.ID(),
			State:      sess.State(),
			Status:     sess.Status(),
			Transcript: full,
		})
	})
	stream.OnTurnComplete(func() {
		c.logger.Info("turn complete", "session_id", sess.ID())
		go c.finalize(sess, "")
	})
	stream.OnError(func(err error) {
		c.logger.Error("stream error", "session_id", sess.ID(), "error", err)
		go c.finalize(sess, StatusStreamError)
	})

	if err := stream.Connect(ctx); err != nil {
		cancel()
		source.Close()
		c.logger.Error("stream connect failed", "session_id", sess.ID(), "error", err)
		c.setIdle(sess, StatusStreamError)
		return nil, fmt.Errorf("session: connect stream: %w", err)
	}

	return sess, nil
}

// Stop ends the active session early, processing whatever transcript has
// accumulated. It is a no-op when no session is active. It returns once
// processing has finished.
func (c *Controller) Stop() {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()

	if sess == nil || !sess.Active() {
		return
	}

	c.logger.Info("session stopped by caller", "session_id", sess.ID())
	c.finalize(sess, "")
}

// ClearOrder discards the last parsed order.
func (c *Controller) ClearOrder() {
	c.mu.Lock()
	c.lastLines = nil
	c.mu.Unlock()
}

// Order returns the last parsed order and its total.
func (c *Controller) Order() ([]order.Line, float64) {
	c.mu.Lock()
	lines := c.lastLines
	c.mu.Unlock()
	return lines, order.Total(lines)
}

// State returns the active session's state, or idle.
func (c *Controller) State() State {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()

	if sess == nil {
		return StateIdle
	}
	return sess.State()
}

// Status returns the current customer-facing status line.
func (c *Controller) Status() string {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()

	if sess == nil {
		return StatusReady
	}
	return sess.Status()
}

// Transcript returns the active or most recent session transcript.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	sess := c.current
	c.mu.Unlock()

	if sess == nil {
		return ""
	}
	return sess.Transcript()
}

// pump forwards mic frames to the stream until the source stops. Sends are
// fire and forget; a failed send drops the frame rather than ending the
// session, the stream's own error callback handles real faults.
func (c *Controller) pump(sess *Session) {
	for f := range sess.source.Stream() {
		if sess.finalized.Load() {
			return
		}
		if err := sess.stream.SendAudio(f.Bytes()); err != nil {
			if !sess.finalized.Load() {
				c.logger.Debug("frame send failed, dropping", "session_id", sess.ID(), "error", err)
			}
			continue
		}
		if c.cfg.Hooks.FrameForwarded != nil {
			c.cfg.Hooks.FrameForwarded()
		}
	}
}

// finalize is the single teardown and processing path. It runs at most once
// per session regardless of what triggered it: server turn completion,
// manual stop, or a stream error (errStatus carries the error status line
// in that case).
func (c *Controller) finalize(sess *Session, errStatus string) {
	if !sess.finalized.CompareAndSwap(false, true) {
		return
	}

	sess.setState(StateProcessing, StatusProcessing)
	if errStatus != "" {
		sess.setStatus(errStatus)
	}
	c.emitState(sess)

	c.teardown(sess)

	transcript := strings.TrimSpace(sess.Transcript())
	if transcript == "" {
		status := StatusNoOrder
		if errStatus != "" {
			status = errStatus
		}
		c.logger.Info("session ended without transcript", "session_id", sess.ID())
		c.setIdle(sess, status)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ProcessTimeout)
	defer cancel()

	lines := c.cfg.Parser.Parse(ctx, transcript, c.cfg.Catalog)
	if len(lines) == 0 {
		c.logger.Info("transcript matched nothing on the menu",
			"session_id", sess.ID(),
			"transcript", transcript,
		)
		c.setIdle(sess, StatusNotUnderstood)
		return
	}

	sess.setLines(lines)
	c.mu.Lock()
	c.lastLines = lines
	c.mu.Unlock()

	total := order.Total(lines)
	c.logger.Info("order parsed",
		"session_id", sess.ID(),
		"items", len(lines),
		"total", total,
	)
	c.emit(Event{
		Type:      EventOrder,
		SessionID: sess.ID(),
		State:     sess.State(),
		Status:    sess.Status(),
		Lines:     lines,
		Total:     total,
	})

	sess.setStatus(StatusConfirming)
	c.emitState(sess)
	c.confirm(ctx, sess, lines)

	c.setIdle(sess, StatusConfirmed)
}

// confirm speaks the order back. Every failure here is logged and
// swallowed; the order stands whether or not the customer hears it.
func (c *Controller) confirm(ctx context.Context, sess *Session, lines []order.Line) {
	if c.cfg.Synth == nil {
		return
	}

	res, err := c.cfg.Synth.Synthesize(ctx, order.Summary(lines))
	if c.cfg.Hooks.SynthesisResult != nil {
		c.cfg.Hooks.SynthesisResult(err)
	}
	if err != nil {
		c.logger.Warn("confirmation synthesis failed", "session_id", sess.ID(), "error", err)
		return
	}

	if c.cfg.Sink == nil {
		return
	}

	if err := c.cfg.Sink.Start(ctx); err != nil {
		c.logger.Warn("confirmation playback unavailable", "session_id", sess.ID(), "error", err)
		return
	}
	defer c.cfg.Sink.Stop()

	// The synthesizer speaks at its own rate; match the output device.
	pcm := res.Audio
	rate := res.Format.SampleRate
	if sinkRate := c.cfg.Sink.Config().SampleRate; sinkRate != rate {
		pcm = audio.ResampleBytes(pcm, rate, sinkRate)
		rate = sinkRate
	}

	f := audiodev.FrameFromBytes(pcm, rate, res.Format.Channels)
	if err := c.cfg.Sink.Write(ctx, f); err != nil {
		c.logger.Warn("confirmation playback failed", "session_id", sess.ID(), "error", err)
		return
	}
	if err := c.cfg.Sink.Flush(ctx); err != nil {
		c.logger.Warn("confirmation playback interrupted", "session_id", sess.ID(), "error", err)
	}
}

// teardown releases everything the session acquired. Best effort: each
// release failure is logged, never propagated.
func (c *Controller) teardown(sess *Session) {
	sess.mu.Lock()
	cancel := sess.cancel
	source := sess.source
	stream := sess.stream
	sess.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if source != nil {
		if err := source.Stop(); err != nil {
			c.logger.Warn("microphone stop failed", "session_id", sess.ID(), "error", err)
		}
		if err := source.Close(); err != nil {
			c.logger.Warn("microphone close failed", "session_id", sess.ID(), "error", err)
		}
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			c.logger.Warn("stream close failed", "session_id", sess.ID(), "error", err)
		}
	}
}

func (c *Controller) setIdle(sess *Session, status string) {
	sess.finalized.Store(true)
	sess.setState(StateIdle, status)
	c.emitState(sess)
}

func (c *Controller) emitState(sess *Session) {
	c.emit(Event{
		Type:      EventState,
		SessionID: sess.ID(),
		State:     sess.State(),
		Status:    sess.Status(),
	})
}
