package main

import (
	"context"
	"embed"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/sjawhar/dictaite/internal/audio"
	"github.com/sjawhar/dictaite/internal/config"
	"github.com/sjawhar/dictaite/internal/dictation"
	"github.com/sjawhar/dictaite/internal/gdrive"
	"github.com/sjawhar/dictaite/internal/server"
	"github.com/sjawhar/dictaite/internal/storage"
	"github.com/sjawhar/dictaite/internal/synth"
	"github.com/sjawhar/dictaite/internal/transcribe"
	"github.com/sjawhar/dictaite/internal/translate"
)

//go:embed static/*
var staticFiles embed.FS

func main() {
	configPath := flag.String("config", envOrDefault("DICTAITE_CONFIG", "config.yaml"), "path to YAML config file")
	flag.Parse()

	log.Println("dictaite: starting")

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	store, err := storage.NewSQLiteStore(cfg.CachePath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()
	store.SetMaxEntries(cfg.CacheMaxEntries)

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("static assets init failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := dictation.Options{
		Player:         audio.NewPlayer(audio.NewSpeakerOutput(cfg.PlaybackSampleRate)),
		Saver:          storage.NewWriter(cfg.TranscriptDir),
		Preferences:    cfg.Preferences,
		RequestTimeout: cfg.ParsedRequestTimeout(),
	}

	backend, err := audio.NewPortAudioBackend(cfg.ProbeRateCandidates())
	if err != nil {
		log.Printf("warning: audio input unavailable, recording disabled: %v", err)
	} else {
		defer func() { _ = backend.Close() }()
		opts.Recorder = audio.NewCapture(backend, cfg.CaptureSampleRate)
	}

	if cfg.TranscriptionProvider == "deepgram" {
		client.Init(client.InitLib{LogLevel: client.LogLevelDefault})
	}
	if t, err := transcribe.New(cfg.TranscriptionProvider, cfg.TranscriptionAPIKey(), cfg.TranscriptionModel,
		transcribe.WithBaseURL(cfg.OpenAIBaseURL)); err != nil {
		log.Printf("warning: transcription disabled: %v", err)
	} else {
		opts.Transcriber = t
	}

	if tr, err := buildTranslator(cfg); err != nil {
		log.Printf("warning: translation disabled: %v", err)
	} else {
		opts.Translator = tr
	}

	if s, err := synth.NewOpenAI(cfg.OpenAIAPIKey,
		synth.WithCache(store),
		synth.WithModel(cfg.TTSModel),
		synth.WithResponseFormat(cfg.TTSResponseFormat),
		synth.WithBaseURL(cfg.OpenAIBaseURL),
	); err != nil {
		log.Printf("warning: speech synthesis disabled: %v", err)
	} else {
		opts.Synthesizer = s
	}

	if cfg.GDriveFolderID != "" {
		exporter, err := gdrive.NewExporter(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if err != nil {
			log.Printf("warning: gdrive export disabled: %v", err)
		} else {
			opts.Exporter = exporter
		}
	}

	ctrl := dictation.New(opts)
	hub := server.NewHub()
	go hub.Run(ctx, ctrl, server.DefaultTickInterval)

	handler, err := server.Handler(assets, hub, ctrl, server.Options{
		Warnings: warnings,
		Cache:    store,
		SavePreferences: func(p config.Preferences) error {
			return config.SavePreferences(cfg.PreferencesFile, p)
		},
	})
	if err != nil {
		log.Fatalf("build http handler failed: %v", err)
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()

	log.Printf("dictaite: web UI on http://%s", cfg.ListenAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("dictaite: shutting down")
	cancel()
	ctrl.StopPlayback()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
}

// buildTranslator returns a nil interface, not a typed nil, when the backend
// cannot be built.
func buildTranslator(cfg config.Config) (dictation.Translator, error) {
	provider, model, err := translate.ParseModel(cfg.TranslationModel)
	if err != nil {
		return nil, err
	}
	var opts []translate.Option
	if provider == "openai" && cfg.OpenAIBaseURL != "" {
		opts = append(opts, translate.WithBaseURL(cfg.OpenAIBaseURL))
	}
	completer, err := translate.NewCompleter(provider, cfg.TranslationAPIKey(), model, opts...)
	if err != nil {
		return nil, err
	}
	return translate.New(completer), nil
}

func envOrDefault(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
