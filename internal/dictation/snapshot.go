package dictation

import (
	"github.com/sjawhar/dictaite/internal/config"
)

// Snapshot is a point-in-time view of the controller for rendering.
type Snapshot struct {
	Recording        bool    `json:"recording"`
	RecordingMS      int64   `json:"recording_ms"`
	InputLevel       float32 `json:"input_level"`
	Playing          bool    `json:"playing"`
	PlaybackMS       int64   `json:"playback_ms"`
	PlaybackTotalMS  int64   `json:"playback_total_ms"`
	OutputLevel      float32 `json:"output_level"`
	Clock            string  `json:"clock"`
	Status           string  `json:"status"`
	Error            string  `json:"error,omitempty"`
	Transcript       string  `json:"transcript"`
	RawTranscript    string  `json:"raw_transcript,omitempty"`
	TranslatedTo     string  `json:"translated_to,omitempty"`
	Transcribing     bool    `json:"transcribing"`
	Synthesizing     bool    `json:"synthesizing"`
	Language         string  `json:"language"`
	TranslateEnabled bool    `json:"translate_enabled"`
	TargetLanguage   string  `json:"target_language"`
	Gender           string  `json:"gender"`
	HasRecording     bool    `json:"has_recording"`
	HasSpeech        bool    `json:"has_speech"`
	SavedPath        string  `json:"saved_path,omitempty"`
	DriveFileID      string  `json:"drive_file_id,omitempty"`
}

// Snapshot reads the current state without advancing it.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Status:           c.status,
		Error:            c.errText,
		Transcript:       c.transcript,
		RawTranscript:    c.rawTranscript,
		TranslatedTo:     c.translationLang,
		Transcribing:     c.transcription != nil,
		Synthesizing:     c.speech != nil,
		Language:         c.originLanguage,
		TranslateEnabled: c.translateEnabled,
		TargetLanguage:   c.targetLanguage,
		Gender:           string(c.gender),
		HasRecording:     c.recordedClip != nil,
		HasSpeech:        c.speechClip != nil,
		SavedPath:        c.savedPath,
		DriveFileID:      c.exportID,
	}

	if c.recorder != nil && c.recorder.IsRecording() {
		elapsed := c.recorder.Elapsed()
		s.Recording = true
		s.RecordingMS = elapsed.Milliseconds()
		s.InputLevel = c.recorder.CurrentLevel()
		s.Clock = config.FormatClock(elapsed)
		return s
	}

	if c.player != nil && c.player.IsPlaying() {
		elapsed, total := c.player.Elapsed(), c.player.Duration()
		s.Playing = true
		s.PlaybackMS = elapsed.Milliseconds()
		s.PlaybackTotalMS = total.Milliseconds()
		s.OutputLevel = c.player.Level()
		s.Clock = config.FormatClock(elapsed) + " / " + config.FormatClock(total)
	}
	return s
}
