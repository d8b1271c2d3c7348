//go:build portaudio
// +build portaudio

package audiodev

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	"github.com/cafevoz/cafevoz/pkg/audio"
)

const portaudioAvailable = true

// paSource captures from the default input device via PortAudio. The device
// is read as float32 and converted to PCM16, resampling to the pipeline rate
// when the device cannot be opened at it directly.
type paSource struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	frames  chan Frame
	stop    chan struct{}
	stream  *portaudio.Stream
	buf     []float32

	framesRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

func newPortAudioSource(cfg Config, logger *slog.Logger) (Source, error) {
	return &paSource{
		cfg:    cfg,
		logger: logger,
		frames: make(chan Frame, 10),
		stop:   make(chan struct{}),
	}, nil
}

func (s *paSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	deviceRate := s.cfg.deviceRate()
	// Frame size at the device rate, so one device read maps to one
	// pipeline frame after resampling.
	deviceFrames := s.cfg.FrameSize() * deviceRate / s.cfg.SampleRate

	s.buf = make([]float32, deviceFrames*s.cfg.Channels)

	stream, err := portaudio.OpenDefaultStream(
		s.cfg.Channels, 0,
		float64(deviceRate),
		deviceFrames,
		s.buf,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting input stream: %w", err)
	}

	s.stream = stream
	s.running = true
	s.stop = make(chan struct{})
	s.frames = make(chan Frame, 10)

	go s.captureLoop(ctx, stream, s.frames, s.stop)

	s.logger.Info("portaudio source started",
		"device_rate", deviceRate,
		"sample_rate", s.cfg.SampleRate,
		"frame_samples", deviceFrames,
	)

	return nil
}

// captureLoop owns the frames channel and closes it on exit. A read error
// after Stop is the expected teardown path and is not reported.
func (s *paSource) captureLoop(ctx context.Context, stream *portaudio.Stream, frames chan Frame, stop chan struct{}) {
	defer close(frames)

	for {
		select {
		case <-ctx.Done():
			go s.Stop()
			return
		case <-stop:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if err == portaudio.InputOverflowed {
				s.overruns.Add(1)
				continue
			}
			select {
			case <-stop:
			default:
				s.logger.Error("portaudio read failed", "error", err)
				go s.Stop()
			}
			return
		}

		samples := audio.BytesToSamples(audio.FloatsToPCM16(s.buf))
		if rate := s.cfg.deviceRate(); rate != s.cfg.SampleRate {
			samples = audio.Resample(samples, rate, s.cfg.SampleRate)
		}

		f := Frame{Samples: samples, SampleRate: s.cfg.SampleRate, Channels: s.cfg.Channels}
		select {
		case frames <- f:
			s.framesRead.Add(1)
			s.samplesRead.Add(int64(len(f.Samples)))
		default:
			s.overruns.Add(1)
		}
	}
}

func (s *paSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stop)
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	portaudio.Terminate()

	s.logger.Info("portaudio source stopped")

	return nil
}

func (s *paSource) Stream() <-chan Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *paSource) Config() Config { return s.cfg }

func (s *paSource) Name() string { return "portaudio" }

func (s *paSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

func (s *paSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		FramesRead:  s.framesRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     "portaudio",
	}
}

var _ SourceWithStats = (*paSource)(nil)

// paSink plays PCM16 through the default output device.
type paSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	stream  *portaudio.Stream
	buf     []int16

	framesWritten  atomic.Int64
	samplesWritten atomic.Int64
	underruns      atomic.Int64
}

func newPortAudioSink(cfg Config, logger *slog.Logger) (Sink, error) {
	return &paSink{cfg: cfg, logger: logger}, nil
}

func (s *paSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initializing portaudio: %w", err)
	}

	s.buf = make([]int16, s.cfg.FrameSize()*s.cfg.Channels)

	stream, err := portaudio.OpenDefaultStream(
		0, s.cfg.Channels,
		float64(s.cfg.SampleRate),
		s.cfg.FrameSize(),
		s.buf,
	)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("opening output stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("starting output stream: %w", err)
	}

	s.stream = stream
	s.running = true

	s.logger.Info("portaudio sink started", "sample_rate", s.cfg.SampleRate)

	return nil
}

func (s *paSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
		s.stream = nil
	}
	portaudio.Terminate()

	s.logger.Info("portaudio sink stopped")

	return nil
}

// Write plays one frame. Frames longer than the device buffer are written
// in device-buffer pieces; the tail is zero padded.
func (s *paSink) Write(ctx context.Context, f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.running {
		return io.ErrClosedPipe
	}

	samples := f.Samples
	for len(samples) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		n := copy(s.buf, samples)
		samples = samples[n:]
		for i := n; i < len(s.buf); i++ {
			s.buf[i] = 0
		}

		if err := s.stream.Write(); err != nil {
			if err == portaudio.OutputUnderflowed {
				s.underruns.Add(1)
				continue
			}
			return fmt.Errorf("writing output stream: %w", err)
		}
	}

	s.framesWritten.Add(1)
	s.samplesWritten.Add(int64(len(f.Samples)))

	return nil
}

func (s *paSink) Flush(ctx context.Context) error {
	// stream.Write blocks until the device accepts the buffer, so there
	// is at most one device buffer in flight when Write returns.
	return nil
}

func (s *paSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil && s.running {
		s.stream.Abort()
		s.stream.Start()
	}
	return nil
}

func (s *paSink) Config() Config { return s.cfg }

func (s *paSink) Name() string { return "portaudio" }

func (s *paSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

func (s *paSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SinkStats{
		FramesWritten:  s.framesWritten.Load(),
		SamplesWritten: s.samplesWritten.Load(),
		Underruns:      s.underruns.Load(),
		Running:        running,
		Backend:        "portaudio",
	}
}

var _ SinkWithStats = (*paSink)(nil)
