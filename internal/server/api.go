package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/sjawhar/dictaite/internal/apperr"
	"github.com/sjawhar/dictaite/internal/config"
	"github.com/sjawhar/dictaite/internal/dictation"
	"github.com/sjawhar/dictaite/internal/storage"
)

// maxUploadBytes bounds uploaded audio files.
const maxUploadBytes = 64 << 20

type speakRequest struct {
	Gender string `json:"gender"`
}

type previewRequest struct {
	Voice string `json:"voice"`
}

type languageRequest struct {
	Language  *string `json:"language"`
	Translate *bool   `json:"translate"`
	Target    string  `json:"target"`
}

func registerAPIRoutes(mux *http.ServeMux, hub *Hub, ctrl Controller, opts Options) {
	notify := func() { hub.BroadcastState(ctrl.Snapshot()) }

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		warnings := opts.Warnings
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"state": ctrl.Snapshot(), "warnings": warnings})
	})

	mux.HandleFunc("GET /api/catalog", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"languages":     config.Languages,
			"female_voices": config.FemaleVoices,
			"male_voices":   config.MaleVoices,
			"sample_text":   config.VoiceSampleText,
		})
	})

	mux.HandleFunc("POST /api/record/start", func(w http.ResponseWriter, r *http.Request) {
		err := ctrl.StartRecording()
		notify()
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/record/stop", func(w http.ResponseWriter, r *http.Request) {
		err := ctrl.StopRecording()
		notify()
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/transcribe", func(w http.ResponseWriter, r *http.Request) {
		data, err := readUpload(w, r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		err = ctrl.TranscribeUpload(data)
		notify()
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /api/speak", func(w http.ResponseWriter, r *http.Request) {
		var req speakRequest
		if err := decodeOptionalJSON(r, &req); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		gender := config.Female
		if req.Gender != "" {
			g, ok := config.ParseGender(req.Gender)
			if !ok {
				writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown gender %q", req.Gender))
				return
			}
			gender = g
		}

		err := ctrl.PlayTranscript(gender)
		notify()
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /api/preview", func(w http.ResponseWriter, r *http.Request) {
		var req previewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Voice) == "" {
			writeJSONError(w, http.StatusBadRequest, "voice is required")
			return
		}
		err := ctrl.PreviewVoice(req.Voice)
		notify()
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /api/playback/stop", func(w http.ResponseWriter, r *http.Request) {
		ctrl.StopPlayback()
		notify()
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/language", func(w http.ResponseWriter, r *http.Request) {
		var req languageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode request: %v", err))
			return
		}
		if req.Language != nil {
			ctrl.SetLanguage(*req.Language)
		}
		if req.Translate != nil || req.Target != "" {
			enabled := ctrl.Snapshot().TranslateEnabled
			if req.Translate != nil {
				enabled = *req.Translate
			}
			ctrl.SetTranslation(enabled, req.Target)
		}
		notify()
		writeJSON(w, http.StatusOK, ctrl.Snapshot())
	})

	mux.HandleFunc("POST /api/transcript/save", func(w http.ResponseWriter, r *http.Request) {
		path, err := ctrl.SaveTranscript(r.Context())
		notify()
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"path": path})
	})

	mux.HandleFunc("GET /api/clip/{kind}", func(w http.ResponseWriter, r *http.Request) {
		kind := dictation.ClipKind(r.PathValue("kind"))
		if kind != dictation.ClipRecorded && kind != dictation.ClipSpeech {
			writeJSONError(w, http.StatusNotFound, "unknown clip")
			return
		}
		wav, err := ctrl.ClipWAV(kind)
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", string(kind)+".wav"))
		_, _ = w.Write(wav)
	})

	mux.HandleFunc("GET /api/cache", func(w http.ResponseWriter, r *http.Request) {
		if opts.Cache == nil {
			writeJSONError(w, http.StatusNotFound, "speech cache is not configured")
			return
		}
		entries, err := opts.Cache.ListSpeech(r.Context())
		if err != nil {
			log.Printf("list speech cache error: %v", err)
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if entries == nil {
			entries = []storage.SpeechEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
	})

	mux.HandleFunc("DELETE /api/cache", func(w http.ResponseWriter, r *http.Request) {
		if opts.Cache == nil {
			writeJSONError(w, http.StatusNotFound, "speech cache is not configured")
			return
		}
		if err := opts.Cache.ClearSpeech(r.Context()); err != nil {
			log.Printf("clear speech cache error: %v", err)
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/preferences", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ctrl.Preferences())
	})

	mux.HandleFunc("PUT /api/preferences", func(w http.ResponseWriter, r *http.Request) {
		prefs := ctrl.Preferences()
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode preferences: %v", err))
			return
		}
		prefs = prefs.Normalize()
		// A failed write leaves the running preferences untouched.
		if opts.SavePreferences != nil {
			if err := opts.SavePreferences(prefs); err != nil {
				log.Printf("save preferences error: %v", err)
				writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("save preferences: %v", err))
				return
			}
		}
		applied := ctrl.SetPreferences(prefs)
		hub.BroadcastPreferencesChanged(applied)
		notify()
		writeJSON(w, http.StatusOK, applied)
	})
}

func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		defer func() { _ = file.Close() }()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, fmt.Errorf("read upload: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("upload is empty")
	}
	return data, nil
}

// decodeOptionalJSON accepts an empty body as the zero value.
func decodeOptionalJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request: %w", err)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, dictation.ErrEmptyTranscript):
		return http.StatusConflict
	case errors.Is(err, dictation.ErrNoClip):
		return http.StatusNotFound
	case apperr.Is(err, apperr.KindAudio):
		return http.StatusUnprocessableEntity
	case apperr.Is(err, apperr.KindMissingAPIKey):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
