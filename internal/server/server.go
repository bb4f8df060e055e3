package server

import (
	"context"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/sjawhar/dictaite/internal/config"
	"github.com/sjawhar/dictaite/internal/dictation"
	"github.com/sjawhar/dictaite/internal/storage"
)

// Controller is the dictation surface the HTTP API drives.
type Controller interface {
	StartRecording() error
	StopRecording() error
	TranscribeUpload(data []byte) error
	PlayTranscript(gender config.Gender) error
	PreviewVoice(voiceID string) error
	StopPlayback()
	SaveTranscript(ctx context.Context) (string, error)
	ClipWAV(kind dictation.ClipKind) ([]byte, error)
	SetLanguage(code string)
	SetTranslation(enabled bool, target string)
	Preferences() config.Preferences
	SetPreferences(p config.Preferences) config.Preferences
	Poll()
	Snapshot() dictation.Snapshot
}

// SpeechCache is the synthesised-speech cache; *storage.SQLiteStore satisfies it.
type SpeechCache interface {
	ListSpeech(ctx context.Context) ([]storage.SpeechEntry, error)
	ClearSpeech(ctx context.Context) error
}

type Options struct {
	Warnings        []string
	SavePreferences func(config.Preferences) error
	Cache           SpeechCache
}

func Handler(staticFS fs.FS, hub *Hub, ctrl Controller, opts Options) (http.Handler, error) {
	mux := http.NewServeMux()

	registerWSRoute(mux, hub, ctrl)
	registerAPIRoutes(mux, hub, ctrl, opts)

	fileServer := http.FileServer(http.FS(staticFS))
	mux.HandleFunc("/", serveSPA(fileServer))

	return mux, nil
}

func serveSPA(fileServer http.Handler) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/ws" {
			http.NotFound(w, r)
			return
		}

		cleanPath := path.Clean(strings.TrimPrefix(r.URL.Path, "/"))
		if cleanPath == "." || cleanPath == "" {
			r.URL.Path = "/"
		} else if !strings.Contains(cleanPath, ".") {
			r.URL.Path = "/index.html"
		} else {
			r.URL.Path = "/" + cleanPath
		}

		fileServer.ServeHTTP(w, r)
	}
}
