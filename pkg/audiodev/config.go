// Package audiodev provides microphone capture and speaker playback for the
// ordering kiosk.
//
// Two backends are supported:
//   - PortAudio - real hardware, compiled in with the "portaudio" build tag
//   - Mock - synthetic audio for CI and tests, always available
//
// The backend is selected automatically, or explicitly via configuration.
package audiodev

import (
	"fmt"
	"time"
)

// Backend identifies an audio backend.
type Backend string

const (
	// BackendAuto selects PortAudio when compiled in, mock otherwise.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for hardware capture and playback.
	BackendPortAudio Backend = "portaudio"
	// BackendMock generates and discards synthetic audio.
	BackendMock Backend = "mock"
)

// Config holds capture and playback settings.
type Config struct {
	// Backend selects the audio backend. Default: auto.
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the pipeline sample rate in Hz. Frames delivered by a
	// Source and accepted by a Sink are at this rate. Default: 16000,
	// which is what the transcription endpoint expects.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	// Channels is the channel count. Default: 1 (mono).
	Channels int `yaml:"channels" json:"channels"`

	// FrameDuration is how much audio each frame carries.
	// Default: 256ms (4096 samples at 16kHz).
	FrameDuration time.Duration `yaml:"frame_duration" json:"frame_duration"`

	// DeviceSampleRate is the rate the hardware device is opened at.
	// When it differs from SampleRate the backend resamples. Zero means
	// open the device at SampleRate directly.
	DeviceSampleRate int `yaml:"device_sample_rate" json:"device_sample_rate"`

	// Device names a specific input/output device. Empty means the
	// system default.
	Device string `yaml:"device" json:"device"`
}

// DefaultConfig returns the kiosk capture defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendAuto,
		SampleRate:    16000,
		Channels:      1,
		FrameDuration: 256 * time.Millisecond,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.FrameDuration <= 0 {
		return fmt.Errorf("frame_duration must be positive, got %v", c.FrameDuration)
	}
	if c.DeviceSampleRate < 0 {
		return fmt.Errorf("device_sample_rate must not be negative, got %d", c.DeviceSampleRate)
	}
	return nil
}

// FrameSize returns the number of samples per frame per channel.
func (c *Config) FrameSize() int {
	return int(float64(c.SampleRate) * c.FrameDuration.Seconds())
}

// FrameBytes returns the size of one PCM16 frame in bytes.
func (c *Config) FrameBytes() int {
	return c.FrameSize() * c.Channels * 2
}

// deviceRate returns the rate to open the hardware at.
func (c *Config) deviceRate() int {
	if c.DeviceSampleRate > 0 {
		return c.DeviceSampleRate
	}
	return c.SampleRate
}
