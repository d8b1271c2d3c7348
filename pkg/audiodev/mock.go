package audiodev

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cafevoz/cafevoz/pkg/audio"
)

// MockSource generates synthetic audio, silence by default or a sine tone.
// It stands in for the microphone in CI and tests.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	frames  chan Frame
	stop    chan struct{}

	framesRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64

	phase     float64
	frequency float64
	amplitude float64
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithTone makes the mock generate a sine tone instead of silence.
func WithTone(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// NewMockSource creates a synthetic audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		frames:    make(chan Frame, 10),
		stop:      make(chan struct{}),
		amplitude: 0.5,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins generating frames at real-time pace.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stop = make(chan struct{})
	m.frames = make(chan Frame, 10)

	go m.generateLoop(ctx, m.frames, m.stop)

	m.logger.Info("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"frequency", m.frequency,
	)

	return nil
}

// generateLoop owns the frames channel and closes it on exit, so Stop never
// races a send on a closed channel.
func (m *MockSource) generateLoop(ctx context.Context, frames chan Frame, stop chan struct{}) {
	defer close(frames)

	ticker := time.NewTicker(m.cfg.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-stop:
			return
		case <-ticker.C:
			f := m.generateFrame()
			select {
			case frames <- f:
				m.framesRead.Add(1)
				m.samplesRead.Add(int64(len(f.Samples)))
			default:
				m.overruns.Add(1)
				m.logger.Debug("mock source: consumer behind, dropping frame")
			}
		}
	}
}

// generateFrame synthesizes float samples and runs them through the same
// PCM16 conversion the hardware path uses.
func (m *MockSource) generateFrame() Frame {
	n := m.cfg.FrameSize()
	floats := make([]float32, n*m.cfg.Channels)

	if m.frequency > 0 {
		for i := 0; i < n; i++ {
			v := float32(m.amplitude * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate)))
			for ch := 0; ch < m.cfg.Channels; ch++ {
				floats[i*m.cfg.Channels+ch] = v
			}
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}

	return FrameFromBytes(audio.FloatsToPCM16(floats), m.cfg.SampleRate, m.cfg.Channels)
}

// Stop halts generation; the generator goroutine closes the frame channel
// on its way out.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false
	close(m.stop)

	m.logger.Info("mock audio source stopped")

	return nil
}

// Stream returns the frame channel.
func (m *MockSource) Stream() <-chan Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

// Config returns the source configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close releases the source.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	return nil
}

// Stats returns capture counters.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		FramesRead:  m.framesRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Overruns:    m.overruns.Load(),
		Running:     running,
		Backend:     "mock",
	}
}

var _ SourceWithStats = (*MockSource)(nil)

// MockSink discards audio while recording what was written. Tests use
// Buffered to inspect the frames a confirmation produced.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	buffer  []Frame

	framesWritten  atomic.Int64
	samplesWritten atomic.Int64
}

// NewMockSink creates a synthetic audio sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &MockSink{
		cfg:    cfg,
		logger: logger,
		buffer: make([]Frame, 0, 16),
	}
}

// Start begins accepting frames.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}

	m.running = true
	m.logger.Info("mock audio sink started")

	return nil
}

// Stop halts playback.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.running = false
	m.logger.Info("mock audio sink stopped")

	return nil
}

// Write records a frame.
func (m *MockSink) Write(ctx context.Context, f Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.running {
		return io.ErrClosedPipe
	}

	m.buffer = append(m.buffer, f)
	m.framesWritten.Add(1)
	m.samplesWritten.Add(int64(len(f.Samples)))

	return nil
}

// Flush simulates draining the output buffer with a token wait.
func (m *MockSink) Flush(ctx context.Context) error {
	m.mu.Lock()
	total := 0
	for _, f := range m.buffer {
		total += len(f.Samples)
	}
	m.mu.Unlock()

	if total > 0 && m.cfg.SampleRate > 0 {
		wait := time.Duration(float64(total)/float64(m.cfg.SampleRate)*float64(time.Second)) / 100
		if wait > 10*time.Millisecond {
			wait = 10 * time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil
}

// Clear drops recorded frames.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buffer = m.buffer[:0]
	return nil
}

// Buffered returns a copy of the frames written since the last Clear.
func (m *MockSink) Buffered() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Frame, len(m.buffer))
	copy(out, m.buffer)
	return out
}

// Config returns the sink configuration.
func (m *MockSink) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return "mock"
}

// Close releases the sink.
func (m *MockSink) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	return nil
}

// Stats returns playback counters.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SinkStats{
		FramesWritten:  m.framesWritten.Load(),
		SamplesWritten: m.samplesWritten.Load(),
		Running:        running,
		Backend:        "mock",
	}
}

var _ SinkWithStats = (*MockSink)(nil)
