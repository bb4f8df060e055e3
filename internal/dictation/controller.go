// Package dictation owns the record → transcribe → translate → speak cycle.
//
// A Controller is driven from two sides: control calls (start, stop, play,
// save) and a periodic Poll that collects finished background work. Every
// method takes the controller lock, so the polling goroutine and request
// handlers observe one consistent state.
package dictation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sjawhar/dictaite/internal/apperr"
	"github.com/sjawhar/dictaite/internal/audio"
	"github.com/sjawhar/dictaite/internal/config"
	"github.com/sjawhar/dictaite/internal/storage"
	"github.com/sjawhar/dictaite/internal/synth"
	"github.com/sjawhar/dictaite/internal/task"
	"github.com/sjawhar/dictaite/internal/transcribe"
)

const (
	StatusIdle                = "Press to start recording"
	StatusRecording           = "Recording..."
	StatusTranscribing        = "Transcribing..."
	StatusNoAudio             = "No audio captured"
	StatusTranscribed         = "Transcription complete"
	StatusTranslated          = "Translation complete"
	StatusTranscriptionFailed = "Transcription failed"
	StatusGeneratingSpeech    = "Generating speech..."
	StatusSynthesisFailed     = "Speech synthesis failed"
	StatusPlaybackStopped     = "Playback stopped"

	MissingKeyText        = "OPENAI_API_KEY not configured"
	clientUnavailableText = "OpenAI client unavailable"
	outputUnavailableText = "Audio output unavailable"
	emptyTranscriptText   = "Transcript is empty"
)

const defaultRequestTimeout = 120 * time.Second

// ErrEmptyTranscript is returned by operations that need transcript text.
var ErrEmptyTranscript = errors.New("transcript is empty")

// Recorder is the capture side; *audio.Capture satisfies it.
type Recorder interface {
	Start() error
	Stop() (*audio.Clip, error)
	IsRecording() bool
	CurrentLevel() float32
	Elapsed() time.Duration
}

// Player is the playback side; *audio.Player satisfies it.
type Player interface {
	Play(clip *audio.Clip) error
	Stop()
	Refresh()
	IsPlaying() bool
	Elapsed() time.Duration
	Duration() time.Duration
	Level() float32
}

type Translator interface {
	Translate(ctx context.Context, text, target string) (string, error)
}

// Saver persists a transcript and returns where it went; *storage.Writer satisfies it.
type Saver interface {
	Save(t storage.Transcript) (string, error)
}

// Exporter publishes a saved transcript; *gdrive.Exporter satisfies it.
type Exporter interface {
	Export(ctx context.Context, localPath string) (string, error)
}

// Options wires a Controller. Nil collaborators disable the features that
// need them; the controller stays usable and reports why.
type Options struct {
	Recorder       Recorder
	Player         Player
	Transcriber    transcribe.Transcriber
	Translator     Translator
	Synthesizer    synth.Synthesizer
	Saver          Saver
	Exporter       Exporter
	Preferences    config.Preferences
	RequestTimeout time.Duration
}

type transcriptionOutcome struct {
	transcript       string
	translated       string
	translationLang  string
	translationError string
}

type speechIntent struct {
	voiceID    string
	voiceLabel string
	preview    bool
}

type speechOutcome struct {
	clip   *audio.Clip
	intent speechIntent
}

type Controller struct {
	mu sync.Mutex

	recorder    Recorder
	player      Player
	transcriber transcribe.Transcriber
	translator  Translator
	synthesizer synth.Synthesizer
	saver       Saver
	exporter    Exporter
	timeout     time.Duration

	prefs            config.Preferences
	originLanguage   string
	translateEnabled bool
	targetLanguage   string
	gender           config.Gender

	transcript      string
	rawTranscript   string
	translationLang string

	recordedClip *audio.Clip
	speechClip   *audio.Clip
	speechVoice  string

	transcription *task.Task[transcriptionOutcome]
	speech        *task.Task[speechOutcome]

	status    string
	errText   string
	savedPath string
	exportID  string
}

func New(opts Options) *Controller {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	c := &Controller{
		recorder:    opts.Recorder,
		player:      opts.Player,
		transcriber: opts.Transcriber,
		translator:  opts.Translator,
		synthesizer: opts.Synthesizer,
		saver:       opts.Saver,
		exporter:    opts.Exporter,
		timeout:     timeout,
		gender:      config.Female,
		status:      StatusIdle,
	}
	c.applyPreferences(opts.Preferences.Normalize())

	switch {
	case c.transcriber == nil || c.synthesizer == nil:
		c.errText = MissingKeyText
	case c.player == nil:
		c.errText = outputUnavailableText
	}
	return c
}

func (c *Controller) applyPreferences(p config.Preferences) {
	c.prefs = p
	c.originLanguage = p.DefaultLanguage
	c.translateEnabled = p.TranslateByDefault
	c.targetLanguage = p.TargetLanguage
}

// Preferences returns the defaults currently in effect.
func (c *Controller) Preferences() config.Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefs
}

// SetPreferences replaces the defaults and resets the per-session language
// choices to them.
func (c *Controller) SetPreferences(p config.Preferences) config.Preferences {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyPreferences(p.Normalize())
	return c.prefs
}

// SetLanguage selects the spoken language; unknown codes mean auto-detect.
func (c *Controller) SetLanguage(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.originLanguage = config.Languages[config.LanguageIndex(code)].Code
}

// SetTranslation toggles translation and, when target is known, picks it.
func (c *Controller) SetTranslation(enabled bool, target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.translateEnabled = enabled
	if idx := config.LanguageIndex(target); idx > 0 {
		c.targetLanguage = config.Languages[idx].Code
	}
}

func (c *Controller) SetGender(g config.Gender) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gender = g
}

// StartRecording abandons any pending work and opens the input device.
func (c *Controller) StartRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.transcription = nil
	c.speech = nil
	c.errText = ""

	if c.recorder == nil {
		err := apperr.Audiof("no input device available")
		c.status = StatusIdle
		c.errText = err.Error()
		return err
	}

	if err := c.recorder.Start(); err != nil {
		slog.Warn("dictation: start recording failed", "error", err)
		c.status = StatusIdle
		c.errText = err.Error()
		return err
	}

	c.recordedClip = nil
	c.speechClip = nil
	c.speechVoice = ""
	c.rawTranscript = ""
	c.transcript = ""
	c.translationLang = ""
	c.savedPath = ""
	c.exportID = ""
	c.status = StatusRecording
	return nil
}

// StopRecording closes the input and, when audio was captured, starts transcription.
func (c *Controller) StopRecording() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recorder == nil {
		return nil
	}

	clip, err := c.recorder.Stop()
	if err != nil {
		slog.Warn("dictation: stop recording failed", "error", err)
		c.errText = err.Error()
		return err
	}
	if clip == nil {
		c.status = StatusNoAudio
		return nil
	}

	slog.Info("dictation: recording captured", "duration", clip.Duration(), "rate", clip.SampleRate())
	c.status = StatusTranscribing
	c.beginTranscription(clip)
	return nil
}

// TranscribeUpload decodes an uploaded audio file and runs it through the
// same pipeline as a recording.
func (c *Controller) TranscribeUpload(data []byte) error {
	clip, err := audio.DecodeClip(data)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.errText = err.Error()
		return err
	}
	if c.recorder != nil && c.recorder.IsRecording() {
		return errors.New("cannot transcribe an upload while recording")
	}

	c.speech = nil
	c.rawTranscript = ""
	c.transcript = ""
	c.translationLang = ""
	c.savedPath = ""
	c.exportID = ""
	c.errText = ""
	c.status = StatusTranscribing
	c.beginTranscription(clip)
	return nil
}

func (c *Controller) beginTranscription(clip *audio.Clip) {
	if c.transcriber == nil {
		c.errText = clientUnavailableText
		return
	}
	wav, err := clip.Encode()
	if err != nil {
		slog.Warn("dictation: encode clip failed", "error", err)
		c.errText = "Failed to prepare audio clip"
		return
	}

	language := ""
	if c.originLanguage != config.AutoDetectLanguage {
		language = c.originLanguage
	}
	target := ""
	if idx := config.LanguageIndex(c.targetLanguage); c.translateEnabled && idx > 0 {
		target = config.Languages[idx].Name
	}

	c.recordedClip = clip
	c.speechClip = nil
	c.speechVoice = ""

	transcriber, translator, timeout := c.transcriber, c.translator, c.timeout
	c.transcription = task.Spawn(func() (transcriptionOutcome, error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return runTranscription(ctx, transcriber, translator, wav, language, target)
	})
}

func runTranscription(ctx context.Context, tr transcribe.Transcriber, tl Translator, wav []byte, language, target string) (transcriptionOutcome, error) {
	text, err := tr.Transcribe(ctx, wav, language)
	if err != nil {
		return transcriptionOutcome{}, err
	}
	out := transcriptionOutcome{transcript: text}
	if target == "" {
		return out, nil
	}

	if tl == nil {
		out.translationError = "translation backend is not configured"
		return out, nil
	}
	translated, err := tl.Translate(ctx, text, target)
	if err != nil {
		out.translationError = err.Error()
		return out, nil
	}
	out.translated = translated
	out.translationLang = target
	return out, nil
}

// PlayTranscript speaks the transcript in the preferred voice for gender,
// reusing the last rendition when the voice has not changed.
func (c *Controller) PlayTranscript(gender config.Gender) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gender = gender
	text := strings.TrimSpace(c.transcript)
	if text == "" {
		c.errText = emptyTranscriptText
		return ErrEmptyTranscript
	}

	voice := c.prefs.Voice(gender)
	label := config.VoiceLabel(voice)

	if c.speechClip != nil && c.speechClip.Frames() > 0 && strings.EqualFold(c.speechVoice, voice) && c.player != nil {
		if err := c.player.Play(c.speechClip); err != nil {
			c.errText = err.Error()
			return err
		}
		c.status = fmt.Sprintf("Playing transcript (%s)", label)
		return nil
	}

	c.speechVoice = ""
	return c.requestSpeech(speechIntent{voiceID: voice, voiceLabel: label}, text)
}

// PreviewVoice speaks a fixed sample sentence in voiceID.
func (c *Controller) PreviewVoice(voiceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	voiceID = strings.ToLower(strings.TrimSpace(voiceID))
	if voiceID == "" {
		return errors.New("voice is required")
	}
	return c.requestSpeech(speechIntent{voiceID: voiceID, voiceLabel: config.VoiceLabel(voiceID), preview: true}, config.VoiceSampleText)
}

func (c *Controller) requestSpeech(intent speechIntent, text string) error {
	if c.synthesizer == nil {
		c.errText = clientUnavailableText
		return errors.New(clientUnavailableText)
	}

	c.status = StatusGeneratingSpeech
	synthesizer, timeout := c.synthesizer, c.timeout
	c.speech = task.Spawn(func() (speechOutcome, error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		clip, err := synthesizer.Synthesize(ctx, text, intent.voiceID)
		if err != nil {
			return speechOutcome{}, err
		}
		return speechOutcome{clip: clip, intent: intent}, nil
	})
	return nil
}

// StopPlayback silences any active playback.
func (c *Controller) StopPlayback() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.player == nil {
		return
	}
	if c.player.IsPlaying() {
		c.status = StatusPlaybackStopped
	}
	c.player.Stop()
}

// Poll collects finished background work and refreshes playback state.
// Call it once per tick.
func (c *Controller) Poll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pollTranscription()
	c.pollSpeech()
	if c.player != nil {
		c.player.Refresh()
	}
}

func (c *Controller) pollTranscription() {
	res, ok := c.transcription.TryTake()
	if !ok {
		return
	}
	c.transcription = nil

	if res.Err != nil {
		slog.Warn("dictation: transcription failed", "error", res.Err)
		c.errText = res.Err.Error()
		c.status = StatusTranscriptionFailed
		return
	}

	out := res.Value
	c.rawTranscript = out.transcript
	if out.translated != "" || out.translationLang != "" {
		c.transcript = out.translated
		c.translationLang = out.translationLang
		if out.translationLang != "" {
			c.status = "Translated to " + out.translationLang
		} else {
			c.status = StatusTranslated
		}
	} else {
		c.transcript = out.transcript
		c.translationLang = ""
		c.status = StatusTranscribed
	}

	if out.translationError != "" {
		slog.Warn("dictation: translation failed", "error", out.translationError)
		c.errText = "Translation failed: " + out.translationError
	} else {
		c.errText = ""
	}
}

func (c *Controller) pollSpeech() {
	res, ok := c.speech.TryTake()
	if !ok {
		return
	}
	c.speech = nil

	if res.Err != nil {
		slog.Warn("dictation: speech synthesis failed", "error", res.Err)
		c.errText = res.Err.Error()
		c.status = StatusSynthesisFailed
		return
	}

	c.errText = ""
	if c.player == nil {
		c.errText = outputUnavailableText
		return
	}

	out := res.Value
	status := fmt.Sprintf("Previewing %s", out.intent.voiceLabel)
	if !out.intent.preview {
		c.speechVoice = out.intent.voiceID
		c.speechClip = out.clip
		status = fmt.Sprintf("Playing transcript (%s)", out.intent.voiceLabel)
	}
	if err := c.player.Play(out.clip); err != nil {
		c.errText = err.Error()
		return
	}
	c.status = status
}

// SaveTranscript writes the current transcript and, when an exporter is
// configured, uploads it. The returned path is the local file.
func (c *Controller) SaveTranscript(ctx context.Context) (string, error) {
	c.mu.Lock()
	if strings.TrimSpace(c.transcript) == "" {
		c.mu.Unlock()
		return "", ErrEmptyTranscript
	}
	if c.saver == nil {
		c.mu.Unlock()
		return "", errors.New("transcript storage is not configured")
	}

	record := storage.Transcript{
		Text:      c.transcript,
		Language:  config.Languages[config.LanguageIndex(c.originLanguage)].Name,
		CreatedAt: time.Now(),
	}
	if c.translationLang != "" && c.rawTranscript != "" {
		record.Text = c.rawTranscript
		record.Translation = c.transcript
		record.TargetLanguage = c.translationLang
	}

	path, err := c.saver.Save(record)
	if err != nil {
		c.errText = fmt.Sprintf("Failed to save file: %v", err)
		c.mu.Unlock()
		return "", err
	}
	c.savedPath = path
	c.exportID = ""
	c.status = "Transcript saved to " + path
	c.errText = ""
	exporter := c.exporter
	c.mu.Unlock()

	if exporter == nil {
		return path, nil
	}

	id, err := exporter.Export(ctx, path)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		slog.Warn("dictation: drive export failed", "path", path, "error", err)
		c.errText = fmt.Sprintf("Drive export failed: %v", err)
		return path, nil
	}
	if c.savedPath == path {
		c.exportID = id
		c.status = "Transcript saved to " + path + " and exported to Google Drive"
	}
	return path, nil
}

// ClipKind names a clip held by the controller.
type ClipKind string

const (
	ClipRecorded ClipKind = "recorded"
	ClipSpeech   ClipKind = "speech"
)

// ErrNoClip is returned by ClipWAV when the requested clip does not exist.
var ErrNoClip = errors.New("no clip available")

// ClipWAV returns the canonical WAV encoding of the requested clip.
func (c *Controller) ClipWAV(kind ClipKind) ([]byte, error) {
	c.mu.Lock()
	var clip *audio.Clip
	switch kind {
	case ClipRecorded:
		clip = c.recordedClip
	case ClipSpeech:
		clip = c.speechClip
	default:
		c.mu.Unlock()
		return nil, fmt.Errorf("unknown clip kind %q", kind)
	}
	c.mu.Unlock()

	if clip == nil {
		return nil, ErrNoClip
	}
	return clip.Encode()
}
