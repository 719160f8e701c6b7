// Command voicepilot runs the voice co-pilot: a hands-free assistant that
// holds a live audio conversation, records content ideas into the plan, and
// drafts images on request. A dashboard server exposes session control, the
// transcript, and metrics.
//
// Usage:
//
//	GOOGLE_API_KEY=... go run ./cmd/voicepilot
//	go run ./cmd/voicepilot --mock          # offline, no API key needed
//
// Environment variables:
//
//	GOOGLE_API_KEY - Gemini Live API key (required unless --mock)
//	OPENAI_API_KEY - enables the image generation tool
//	WEB_PORT       - dashboard port (default 8090)
//	LOG_LEVEL      - debug, info, warn, error
//	AUDIO_BACKEND  - auto or mock; only the mock backend is implemented
//	                 today, so both values select the in-memory devices
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/pulsedeck/voicepilot/internal/config"
	"github.com/pulsedeck/voicepilot/internal/log"
	"github.com/pulsedeck/voicepilot/internal/observability"
	"github.com/pulsedeck/voicepilot/pkg/audioio"
	"github.com/pulsedeck/voicepilot/pkg/inference"
	"github.com/pulsedeck/voicepilot/pkg/live"
	"github.com/pulsedeck/voicepilot/pkg/plan"
	"github.com/pulsedeck/voicepilot/pkg/session"
	"github.com/pulsedeck/voicepilot/pkg/web"
)

const defaultSystemPrompt = "You are a voice co-pilot for a social media manager. " +
	"Help brainstorm posts, record content ideas with the record_content_idea tool, " +
	"and draft visuals with the generate_image tool when asked. Keep replies brief."

func main() {
	model := flag.String("model", "", "Remote model identifier (empty for the transport default)")
	voice := flag.String("voice", "", "Synthesized voice name")
	prompt := flag.String("prompt", defaultSystemPrompt, "System prompt for the assistant")
	port := flag.String("port", config.WebPort(), "Dashboard port")
	autostart := flag.Bool("autostart", true, "Start the voice session immediately")
	mock := flag.Bool("mock", false, "Use a mock transport instead of Gemini Live")
	flag.Parse()

	log.Init(config.LogLevel())
	logger := log.L()

	obs := observability.NewMetrics("voicepilot")

	var transport live.Transport
	if *mock {
		transport = live.NewMockTransport()
		logger.Info("using mock transport")
	} else {
		gemini, err := live.NewGemini(config.GoogleAPIKey(), live.WithLogger(logger))
		if err != nil {
			logger.Error("failed to create transport", "error", err)
			os.Exit(1)
		}
		transport = gemini
	}

	cfg := session.DefaultConfig().
		WithModel(*model).
		WithVoice(*voice).
		WithSystemPrompt(*prompt)

	backend := audioio.Backend(config.AudioBackend())
	controller, err := session.NewController(cfg, transport,
		session.WithControllerLogger(logger),
		session.WithObservability(obs),
		session.WithSourceFactory(func() (audioio.Source, error) {
			devCfg := audioio.DefaultCaptureConfig()
			devCfg.Backend = backend
			devCfg.SampleRate = cfg.InputSampleRate
			return audioio.NewSource(devCfg, logger)
		}),
		session.WithSinkFactory(func() (audioio.Sink, error) {
			devCfg := audioio.DefaultPlaybackConfig()
			devCfg.Backend = backend
			devCfg.SampleRate = cfg.OutputSampleRate
			return audioio.NewSink(devCfg, logger)
		}),
	)
	if err != nil {
		logger.Error("failed to create session controller", "error", err)
		os.Exit(1)
	}
	defer controller.Dispose()

	planner := plan.NewMemoryPlanner()
	if err := controller.RegisterTool(session.RecordIdeaTool(planner)); err != nil {
		logger.Error("failed to register tool", "error", err)
		os.Exit(1)
	}
	if key := config.OpenAIKey(); key != "" {
		provider, err := inference.NewClient(
			inference.WithAPIKey(key),
			inference.WithClientLogger(logger),
		)
		if err != nil {
			logger.Error("failed to create image provider", "error", err)
			os.Exit(1)
		}
		if err := controller.RegisterTool(session.GenerateImageTool(provider)); err != nil {
			logger.Error("failed to register tool", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("OPENAI_API_KEY not set, image generation tool disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	server := web.NewServer(*port, controller,
		web.WithIdeaLister(planner),
		web.WithServerLogger(logger),
	)

	if *autostart {
		if err := controller.Start(ctx); err != nil {
			logger.Error("failed to start voice session", "error", err)
			os.Exit(1)
		}
	}

	if err := server.Start(ctx); err != nil {
		logger.Error("dashboard server failed", "error", err)
		os.Exit(1)
	}

	if err := controller.Stop(); err != nil {
		logger.Error("session stop failed", "error", err)
	}
}
