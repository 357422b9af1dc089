package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	banknoteassistant "github.com/menta2k/banknote-assistant"
	"github.com/menta2k/banknote-assistant/internal/config"
	"github.com/menta2k/banknote-assistant/internal/logging"
	"github.com/menta2k/banknote-assistant/internal/server"
	"github.com/menta2k/banknote-assistant/pkg/client"
	"github.com/menta2k/banknote-assistant/pkg/denomination"
	"github.com/menta2k/banknote-assistant/pkg/detection"
	"github.com/menta2k/banknote-assistant/pkg/interpreter"
	"github.com/menta2k/banknote-assistant/pkg/llamacpp"
	"github.com/menta2k/banknote-assistant/pkg/ollama"
	"github.com/menta2k/banknote-assistant/pkg/processing"
	"github.com/menta2k/banknote-assistant/pkg/roboflow"
	"github.com/menta2k/banknote-assistant/pkg/speech"
)

func main() {
	var configPath, addr string
	flag.StringVar(&configPath, "config", "", "JSON config file, defaults to "+config.GetConfigPath()+" when present")
	flag.StringVar(&addr, "addr", "", "listen address, overrides PORT")
	flag.Parse()

	cfg, err := config.Load(config.ResolvePath(configPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if addr == "" {
		addr = cfg.Addr()
	}

	logger := logging.New(cfg.Log, os.Stdout)
	if err := run(cfg, addr, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, addr string, logger *slog.Logger) error {
	detectionClient, err := newDetectionClient(cfg, logger)
	if err != nil {
		return err
	}

	resolver, err := denomination.NewResolver(cfg.Detection.Aliases)
	if err != nil {
		return err
	}

	audio, err := speech.NewService(
		speech.NewGoogleTTS(cfg.Speech.Endpoint, 0),
		speech.Options{
			Dir:       cfg.Speech.AudioDir,
			BaseURL:   cfg.Server.HostURL,
			Language:  cfg.Speech.Language,
			TTL:       time.Duration(cfg.Speech.TTLMinutes) * time.Minute,
			CacheSize: cfg.Speech.CacheSize,
		},
		logger.With("component", "speech"),
	)
	if err != nil {
		return err
	}

	assistant := banknoteassistant.New(
		detection.NewDetector(detectionClient, logger.With("component", "detection")),
		interpreter.New(cfg.Detection.ConfidenceThreshold, resolver,
			interpreter.WithLogger(logger.With("component", "interpreter"))),
		audio,
		processing.NewProcessor(),
		logger,
	)

	apiKey := ""
	if cfg.AuthEnabled() {
		apiKey = cfg.Server.APIKey
	}
	handler := server.New(assistant, server.Options{
		APIKey:             apiKey,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
		MaxUploadBytes:     int64(cfg.Server.MaxUploadMB) << 20,
		RoboflowConfigured: cfg.RoboflowConfigured(),
		AudioDir:           cfg.Speech.AudioDir,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := time.Duration(cfg.Speech.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go audio.Run(ctx, interval)

	srv := &http.Server{
		Handler:      handler,
		Addr:         addr,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", addr,
			"version", banknoteassistant.Version,
			"backend", detectionClient.Name(),
			"roboflow_configured", cfg.RoboflowConfigured(),
			"auth", cfg.AuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newDetectionClient(cfg *config.Config, logger *slog.Logger) (client.DetectionClient, error) {
	switch cfg.Detection.Backend {
	case config.BackendOllama:
		return ollama.NewClient(cfg.Detection.Ollama.URL, cfg.Detection.Ollama.Model)
	case config.BackendLlamaCPP:
		return llamacpp.NewClient(cfg.Detection.LlamaCPP.URL, cfg.Detection.LlamaCPP.Model)
	default:
		if !cfg.RoboflowConfigured() {
			logger.Warn("roboflow endpoint or API key not set, predictions will fail")
		}
		rf := cfg.Detection.Roboflow
		return roboflow.NewClient(roboflow.Config{
			Endpoint:   rf.Endpoint,
			APIKey:     rf.APIKey,
			Timeout:    time.Duration(rf.TimeoutSeconds) * time.Second,
			MaxRetries: rf.MaxRetries,
		}, logger.With("component", "roboflow"))
	}
}
