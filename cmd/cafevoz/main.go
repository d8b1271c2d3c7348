// cafevoz: voice ordering service for the café kiosk.
// Captures microphone audio, streams it to Gemini Live for transcription,
// parses the transcript into an order against the menu, and speaks back a
// confirmation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cafevoz/cafevoz/internal/config"
	"github.com/cafevoz/cafevoz/internal/log"
	"github.com/cafevoz/cafevoz/internal/metrics"
	"github.com/cafevoz/cafevoz/internal/web"
	"github.com/cafevoz/cafevoz/pkg/audiodev"
	"github.com/cafevoz/cafevoz/pkg/live"
	"github.com/cafevoz/cafevoz/pkg/menu"
	"github.com/cafevoz/cafevoz/pkg/order"
	"github.com/cafevoz/cafevoz/pkg/session"
	"github.com/cafevoz/cafevoz/pkg/speech"
)

var (
	configPath   = flag.String("config", "", "path to YAML config file")
	port         = flag.Int("port", 0, "override HTTP port")
	audioBackend = flag.String("audio-backend", "", "override audio backend (auto, portaudio, mock)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *audioBackend != "" {
		cfg.Audio.Backend = audiodev.Backend(*audioBackend)
	}

	log.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger := log.L()

	if cfg.Gemini.APIKey == "" {
		fmt.Fprintln(os.Stderr, "Error: GEMINI_API_KEY environment variable is required")
		os.Exit(1)
	}

	catalog := menu.Default()
	if cfg.Menu.Path != "" {
		catalog, err = menu.LoadFile(cfg.Menu.Path)
		if err != nil {
			logger.Error("loading menu failed", "path", cfg.Menu.Path, "error", err)
			os.Exit(1)
		}
	}
	logger.Info("menu loaded", "items", catalog.Len())

	genOpts := []order.GeminiOption{order.WithLogger(logger)}
	if cfg.Gemini.ParserModel != "" {
		genOpts = append(genOpts, order.WithModel(cfg.Gemini.ParserModel))
	}
	gen, err := order.NewGemini(cfg.Gemini.APIKey, genOpts...)
	if err != nil {
		logger.Error("parser setup failed", "error", err)
		os.Exit(1)
	}
	parser := order.NewParser(gen, logger)

	synthOpts := []speech.GeminiOption{speech.WithLogger(logger)}
	if cfg.Gemini.TTSModel != "" {
		synthOpts = append(synthOpts, speech.WithModel(cfg.Gemini.TTSModel))
	}
	if cfg.Gemini.Voice != "" {
		synthOpts = append(synthOpts, speech.WithVoice(cfg.Gemini.Voice))
	}
	synth, err := speech.NewGemini(cfg.Gemini.APIKey, synthOpts...)
	if err != nil {
		logger.Error("synthesizer setup failed", "error", err)
		os.Exit(1)
	}
	defer synth.Close()

	sink, err := audiodev.NewSink(cfg.Audio, logger)
	if err != nil {
		logger.Error("audio output setup failed", "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	m := metrics.New()

	ctrl, err := session.NewController(session.Config{
		Catalog: catalog,
		Parser:  parser,
		Synth:   synth,
		Sink:    sink,
		NewStream: func() (session.Stream, error) {
			return live.NewClient(live.Config{
				APIKey:     cfg.Gemini.APIKey,
				Model:      cfg.Gemini.LiveModel,
				SampleRate: cfg.Audio.SampleRate,
			})
		},
		NewSource: func() (audiodev.Source, error) {
			return audiodev.NewSource(cfg.Audio, logger)
		},
		Hooks:  m.Hooks(),
		Logger: logger,
	})
	if err != nil {
		logger.Error("controller setup failed", "error", err)
		os.Exit(1)
	}

	ctrl.OnEvent(m.Observer())

	srv := web.NewServer(ctrl, catalog, m, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Server.MetricsEnabled {
		go func() {
			if err := m.Serve(ctx, cfg.Server.MetricsAddr(), logger); err != nil {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx, cfg.Server.ListenAddr())
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		// End any in-flight session so the mic and stream are released.
		ctrl.Stop()
		if err := <-errCh; err != nil {
			logger.Error("api server shutdown failed", "error", err)
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("api server failed", "error", err)
			os.Exit(1)
		}
	}
}
