package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LISTEN_ADDR", "CAPTURE_SAMPLE_RATE", "CAPTURE_PROBE_RATES", "PLAYBACK_SAMPLE_RATE",
		"OPENAI_BASE_URL", "TRANSCRIPTION_PROVIDER", "TRANSCRIPTION_MODEL",
		"TRANSLATION_MODEL", "TTS_MODEL", "TTS_RESPONSE_FORMAT", "REQUEST_TIMEOUT",
		"CACHE_PATH", "CACHE_MAX_ENTRIES", "TRANSCRIPT_DIR", "PREFERENCES_FILE",
		"GDRIVE_FOLDER_ID", "GOOGLE_CREDENTIALS_FILE",
		"OPENAI_API_KEY", "DEEPGRAM_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY",
	} {
		t.Setenv(EnvPrefix+key, "")
	}
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv(EnvPrefix+"PREFERENCES_FILE", filepath.Join(t.TempDir(), "absent.yaml"))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.CachePath != "data/dictaite.db" {
		t.Fatalf("expected default cache_path, got %q", cfg.CachePath)
	}
	if cfg.CaptureSampleRate != 16000 {
		t.Fatalf("expected default capture_sample_rate 16000, got %d", cfg.CaptureSampleRate)
	}
	if cfg.TranslationModel != "openai/gpt-5-mini-2025-08-07" {
		t.Fatalf("expected default translation_model, got %q", cfg.TranslationModel)
	}
	if cfg.TTSModel != "tts-1" || cfg.TTSResponseFormat != "mp3" {
		t.Fatalf("unexpected tts defaults %q/%q", cfg.TTSModel, cfg.TTSResponseFormat)
	}
	want := Preferences{DefaultLanguage: "default", TargetLanguage: "en", FemaleVoice: "nova", MaleVoice: "onyx"}
	if cfg.Preferences != want {
		t.Fatalf("unexpected default preferences %#v", cfg.Preferences)
	}
}

func TestYAMLLoading(t *testing.T) {
	clearEnv(t)

	configPath := writeFile(t, "config.yaml", `
listen_addr: 0.0.0.0:9000
capture_sample_rate: 48000
capture_probe_rates: [44100, 32000]
transcription_provider: deepgram
transcription_model: nova-3
translation_model: gemini/gemini-2.5-flash
request_timeout: 45s
cache_path: /custom/cache.db
transcript_dir: /custom/transcripts
gdrive_folder_id: my-folder
preferences:
  default_language: fr
  translate_by_default: true
  target_language: de
  female_voice: Alloy
  male_voice: echo
`)

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ListenAddr != "0.0.0.0:9000" {
		t.Fatalf("expected yaml listen_addr, got %q", cfg.ListenAddr)
	}
	if cfg.CaptureSampleRate != 48000 {
		t.Fatalf("expected yaml capture_sample_rate, got %d", cfg.CaptureSampleRate)
	}
	if !reflect.DeepEqual(cfg.CaptureProbeRates, []int{44100, 32000}) {
		t.Fatalf("expected yaml capture_probe_rates, got %v", cfg.CaptureProbeRates)
	}
	if cfg.TranscriptionProvider != "deepgram" || cfg.TranscriptionModel != "nova-3" {
		t.Fatalf("unexpected transcription config %q/%q", cfg.TranscriptionProvider, cfg.TranscriptionModel)
	}
	if cfg.TranslationProvider() != "gemini" {
		t.Fatalf("expected gemini translation provider, got %q", cfg.TranslationProvider())
	}
	if cfg.ParsedRequestTimeout() != 45*time.Second {
		t.Fatalf("expected 45s timeout, got %v", cfg.ParsedRequestTimeout())
	}
	if cfg.CachePath != "/custom/cache.db" || cfg.TranscriptDir != "/custom/transcripts" {
		t.Fatalf("unexpected paths %q %q", cfg.CachePath, cfg.TranscriptDir)
	}
	if cfg.GDriveFolderID != "my-folder" {
		t.Fatalf("expected yaml gdrive_folder_id, got %q", cfg.GDriveFolderID)
	}
	want := Preferences{DefaultLanguage: "fr", TranslateByDefault: true, TargetLanguage: "de", FemaleVoice: "alloy", MaleVoice: "echo"}
	if cfg.Preferences != want {
		t.Fatalf("unexpected preferences %#v", cfg.Preferences)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	configPath := writeFile(t, "config.yaml", `
cache_path: /from/yaml
tts_model: tts-yaml
`)
	t.Setenv(EnvPrefix+"CACHE_PATH", "/from/env")
	t.Setenv(EnvPrefix+"TTS_MODEL", "gpt-4o-mini-tts")
	t.Setenv(EnvPrefix+"TRANSCRIPT_DIR", "/env/transcripts")

	cfg, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.CachePath != "/from/env" {
		t.Fatalf("expected env override for cache_path, got %q", cfg.CachePath)
	}
	if cfg.TTSModel != "gpt-4o-mini-tts" {
		t.Fatalf("expected env override for tts_model, got %q", cfg.TTSModel)
	}
	if cfg.TranscriptDir != "/env/transcripts" {
		t.Fatalf("expected env override for transcript_dir, got %q", cfg.TranscriptDir)
	}
}

func TestSecretsFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "oai-secret")
	t.Setenv(EnvPrefix+"DEEPGRAM_API_KEY", "dg-secret")

	cfg, _, err := Load(writeFile(t, "config.yaml", "openai_api_key: ignored\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.OpenAIAPIKey != "oai-secret" {
		t.Fatalf("expected openai key from env, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.DeepgramAPIKey != "dg-secret" {
		t.Fatalf("expected deepgram key from env, got %q", cfg.DeepgramAPIKey)
	}
}

func TestPlainOpenAIKeyFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "plain")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.OpenAIAPIKey != "plain" {
		t.Fatalf("expected fallback to OPENAI_API_KEY, got %q", cfg.OpenAIAPIKey)
	}

	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "prefixed")
	cfg, _, _ = Load("")
	if cfg.OpenAIAPIKey != "prefixed" {
		t.Fatalf("expected prefixed key to win, got %q", cfg.OpenAIAPIKey)
	}
}

func TestProviderKeySelection(t *testing.T) {
	cfg := defaults()
	cfg.OpenAIAPIKey = "oai"
	cfg.DeepgramAPIKey = "dg"
	cfg.AnthropicAPIKey = "ant"

	if cfg.TranscriptionAPIKey() != "oai" {
		t.Fatalf("expected openai transcription key, got %q", cfg.TranscriptionAPIKey())
	}
	cfg.TranscriptionProvider = "deepgram"
	if cfg.TranscriptionAPIKey() != "dg" {
		t.Fatalf("expected deepgram transcription key, got %q", cfg.TranscriptionAPIKey())
	}

	if cfg.TranslationAPIKey() != "oai" {
		t.Fatalf("expected openai translation key, got %q", cfg.TranslationAPIKey())
	}
	cfg.TranslationModel = "anthropic/claude-sonnet-4-5"
	if cfg.TranslationAPIKey() != "ant" {
		t.Fatalf("expected anthropic translation key, got %q", cfg.TranslationAPIKey())
	}
}

func TestValidationWarnings(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"TRANSCRIPTION_PROVIDER", "deepgram")
	t.Setenv(EnvPrefix+"TRANSLATION_MODEL", "anthropic/claude-sonnet-4-5")
	t.Setenv(EnvPrefix+"REQUEST_TIMEOUT", "soon")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for _, want := range []string{"OpenAI", "Deepgram", "Anthropic", "request_timeout"} {
		found := false
		for _, w := range warnings {
			if strings.Contains(w, want) {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected %s warning, got warnings: %v", want, warnings)
		}
	}
	if cfg.ParsedRequestTimeout() != 120*time.Second {
		t.Fatalf("expected fallback to 120s, got %v", cfg.ParsedRequestTimeout())
	}
}

func TestValidationNoWarningsWhenConfigured(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "key")

	_, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings when fully configured, got: %v", warnings)
	}
}

func TestUnknownProviderFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvPrefix+"OPENAI_API_KEY", "key")
	t.Setenv(EnvPrefix+"TRANSCRIPTION_PROVIDER", "whisper.cpp")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.TranscriptionProvider != "openai" {
		t.Fatalf("expected fallback to openai, got %q", cfg.TranscriptionProvider)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "transcription_provider") {
		t.Fatalf("expected provider warning, got %v", warnings)
	}
}

func TestMissingConfigFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, _, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load should not fail for missing config file, got: %v", err)
	}
	if cfg.CachePath != "data/dictaite.db" {
		t.Fatalf("expected defaults when config file missing, got cache_path=%q", cfg.CachePath)
	}
}

func TestInvalidConfigFileReturnsError(t *testing.T) {
	clearEnv(t)

	if _, _, err := Load(writeFile(t, "bad.yaml", ":::invalid yaml")); err == nil {
		t.Fatal("expected error for invalid yaml, got nil")
	}
}

func TestPreferencesFileOverlaysConfig(t *testing.T) {
	clearEnv(t)
	prefsPath := writeFile(t, "preferences.yaml", "target_language: ja\nmale_voice: SAGE\n")
	t.Setenv(EnvPrefix+"PREFERENCES_FILE", prefsPath)

	cfg, _, err := Load(writeFile(t, "config.yaml", "preferences:\n  female_voice: sol\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	want := Preferences{DefaultLanguage: "default", TargetLanguage: "ja", FemaleVoice: "sol", MaleVoice: "sage"}
	if cfg.Preferences != want {
		t.Fatalf("unexpected preferences %#v", cfg.Preferences)
	}
}

func TestSaveAndLoadPreferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preferences.yaml")
	in := Preferences{DefaultLanguage: "ES", TranslateByDefault: true, TargetLanguage: "default", FemaleVoice: " Verse ", MaleVoice: ""}

	if err := SavePreferences(path, in); err != nil {
		t.Fatalf("SavePreferences failed: %v", err)
	}
	got, err := LoadPreferences(path)
	if err != nil {
		t.Fatalf("LoadPreferences failed: %v", err)
	}

	want := Preferences{DefaultLanguage: "es", TranslateByDefault: true, TargetLanguage: "en", FemaleVoice: "verse", MaleVoice: "onyx"}
	if got != want {
		t.Fatalf("unexpected preferences %#v", got)
	}
}

func TestLoadPreferencesMissingFile(t *testing.T) {
	got, err := LoadPreferences(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadPreferences failed: %v", err)
	}
	if got != defaultPreferences() {
		t.Fatalf("expected defaults, got %#v", got)
	}
}

func TestProbeRateCandidates(t *testing.T) {
	cfg := defaults()
	got := cfg.ProbeRateCandidates()
	if got[0] != 16000 || len(got) != 10 {
		t.Fatalf("unexpected default probe rates %v", got)
	}

	cfg.CaptureSampleRate = 12000
	cfg.CaptureProbeRates = []int{44100, 16000, 12000}
	got = cfg.ProbeRateCandidates()
	want := []int{12000, 44100, 16000, 8000, 11025, 22050, 24000, 32000, 48000, 88200, 96000}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected custom probe rates: got=%v want=%v", got, want)
	}
}

func TestParseSampleRates(t *testing.T) {
	got := parseSampleRates(" 16000,  ,invalid,0,-1,44100,16000 ")
	want := []int{16000, 44100}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected parsed sample rates: got=%v want=%v", got, want)
	}
}
