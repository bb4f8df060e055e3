package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the namespace prefix for all dictaite environment variables.
const EnvPrefix = "DICTAITE_"

// Preferences are the user-facing defaults the dictation controller starts with.
type Preferences struct {
	DefaultLanguage    string `yaml:"default_language" json:"default_language"`
	TranslateByDefault bool   `yaml:"translate_by_default" json:"translate_by_default"`
	TargetLanguage     string `yaml:"target_language" json:"target_language"`
	FemaleVoice        string `yaml:"female_voice" json:"female_voice"`
	MaleVoice          string `yaml:"male_voice" json:"male_voice"`
}

func defaultPreferences() Preferences {
	return Preferences{
		DefaultLanguage: AutoDetectLanguage,
		TargetLanguage:  "en",
		FemaleVoice:     "nova",
		MaleVoice:       "onyx",
	}
}

// Voice returns the configured voice id for g.
func (p Preferences) Voice(g Gender) string {
	if g == Male {
		return p.MaleVoice
	}
	return p.FemaleVoice
}

// Normalize lower-cases voice ids, fills blanks with defaults and maps an
// unknown or auto-detect target language back to English.
func (p Preferences) Normalize() Preferences {
	d := defaultPreferences()

	p.FemaleVoice = strings.ToLower(strings.TrimSpace(p.FemaleVoice))
	if p.FemaleVoice == "" {
		p.FemaleVoice = d.FemaleVoice
	}
	p.MaleVoice = strings.ToLower(strings.TrimSpace(p.MaleVoice))
	if p.MaleVoice == "" {
		p.MaleVoice = d.MaleVoice
	}

	p.DefaultLanguage = Languages[LanguageIndex(p.DefaultLanguage)].Code

	if idx := LanguageIndex(p.TargetLanguage); idx > 0 {
		p.TargetLanguage = Languages[idx].Code
	} else {
		p.TargetLanguage = d.TargetLanguage
	}
	return p
}

// Config holds all application configuration. Secrets (API keys) are loaded
// exclusively from environment variables and never appear in the config file.
type Config struct {
	ListenAddr            string      `yaml:"listen_addr"`
	CaptureSampleRate     int         `yaml:"capture_sample_rate"`
	CaptureProbeRates     []int       `yaml:"capture_probe_rates"`
	PlaybackSampleRate    int         `yaml:"playback_sample_rate"`
	OpenAIBaseURL         string      `yaml:"openai_base_url"`
	TranscriptionProvider string      `yaml:"transcription_provider"`
	TranscriptionModel    string      `yaml:"transcription_model"`
	TranslationModel      string      `yaml:"translation_model"`
	TTSModel              string      `yaml:"tts_model"`
	TTSResponseFormat     string      `yaml:"tts_response_format"`
	RequestTimeout        string      `yaml:"request_timeout"`
	CachePath             string      `yaml:"cache_path"`
	CacheMaxEntries       int         `yaml:"cache_max_entries"`
	TranscriptDir         string      `yaml:"transcript_dir"`
	PreferencesFile       string      `yaml:"preferences_file"`
	GDriveFolderID        string      `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string      `yaml:"google_credentials_file"`
	Preferences           Preferences `yaml:"preferences"`

	// Secrets: env vars only, never serialized to YAML.
	OpenAIAPIKey    string `yaml:"-"`
	DeepgramAPIKey  string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

func defaults() Config {
	return Config{
		ListenAddr:            "127.0.0.1:8080",
		CaptureSampleRate:     16000,
		PlaybackSampleRate:    48000,
		TranscriptionProvider: "openai",
		TranslationModel:      "openai/gpt-5-mini-2025-08-07",
		TTSModel:              "tts-1",
		TTSResponseFormat:     "mp3",
		RequestTimeout:        "120s",
		CachePath:             "data/dictaite.db",
		CacheMaxEntries:       200,
		TranscriptDir:         "data/transcripts",
		PreferencesFile:       "data/preferences.yaml",
		GoogleCredentialsFile: "./service-account.json",
		Preferences:           defaultPreferences(),
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, overlays saved preferences, loads secrets,
// and validates the result. It returns the config, any validation warnings,
// and an error if a file exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.PreferencesFile != "" {
		prefs, found, err := readPreferences(cfg.PreferencesFile, cfg.Preferences)
		if err != nil {
			return cfg, nil, err
		}
		if found {
			cfg.Preferences = prefs
		}
	}

	loadSecrets(&cfg)

	warnings := validate(&cfg)
	return cfg, warnings, nil
}

// ParsedRequestTimeout returns RequestTimeout as a time.Duration,
// falling back to 120s if the value is invalid.
func (c *Config) ParsedRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// ProbeRateCandidates returns a deduplicated ordered list of capture rates
// to probe: the target rate first, then configured rates, then standard ones.
func (c *Config) ProbeRateCandidates() []int {
	hardcoded := []int{8000, 11025, 16000, 22050, 24000, 32000, 44100, 48000, 88200, 96000}

	combined := make([]int, 0, 1+len(c.CaptureProbeRates)+len(hardcoded))
	combined = append(combined, c.CaptureSampleRate)
	combined = append(combined, c.CaptureProbeRates...)
	combined = append(combined, hardcoded...)

	seen := make(map[int]struct{}, len(combined))
	result := make([]int, 0, len(combined))
	for _, rate := range combined {
		if rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}
	return result
}

// TranslationProvider is the provider half of TranslationModel.
func (c *Config) TranslationProvider() string {
	provider, _, _ := strings.Cut(c.TranslationModel, "/")
	return provider
}

// TranscriptionAPIKey returns the secret for the configured transcription provider.
func (c *Config) TranscriptionAPIKey() string {
	if c.TranscriptionProvider == "deepgram" {
		return c.DeepgramAPIKey
	}
	return c.OpenAIAPIKey
}

// TranslationAPIKey returns the secret for the configured translation provider.
func (c *Config) TranslationAPIKey() string {
	switch c.TranslationProvider() {
	case "anthropic":
		return c.AnthropicAPIKey
	case "gemini":
		return c.GeminiAPIKey
	default:
		return c.OpenAIAPIKey
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvPrefix + "CAPTURE_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.CaptureSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "CAPTURE_PROBE_RATES"); v != "" {
		cfg.CaptureProbeRates = parseSampleRates(v)
	}
	if v := os.Getenv(EnvPrefix + "PLAYBACK_SAMPLE_RATE"); v != "" {
		if rate, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && rate > 0 {
			cfg.PlaybackSampleRate = rate
		}
	}
	if v := os.Getenv(EnvPrefix + "OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPTION_PROVIDER"); v != "" {
		cfg.TranscriptionProvider = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPTION_MODEL"); v != "" {
		cfg.TranscriptionModel = v
	}
	if v := os.Getenv(EnvPrefix + "TRANSLATION_MODEL"); v != "" {
		cfg.TranslationModel = v
	}
	if v := os.Getenv(EnvPrefix + "TTS_MODEL"); v != "" {
		cfg.TTSModel = v
	}
	if v := os.Getenv(EnvPrefix + "TTS_RESPONSE_FORMAT"); v != "" {
		cfg.TTSResponseFormat = v
	}
	if v := os.Getenv(EnvPrefix + "REQUEST_TIMEOUT"); v != "" {
		cfg.RequestTimeout = v
	}
	if v := os.Getenv(EnvPrefix + "CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv(EnvPrefix + "CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.CacheMaxEntries = n
		}
	}
	if v := os.Getenv(EnvPrefix + "TRANSCRIPT_DIR"); v != "" {
		cfg.TranscriptDir = v
	}
	if v := os.Getenv(EnvPrefix + "PREFERENCES_FILE"); v != "" {
		cfg.PreferencesFile = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}

func loadSecrets(cfg *Config) {
	cfg.OpenAIAPIKey = os.Getenv(EnvPrefix + "OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	cfg.DeepgramAPIKey = os.Getenv(EnvPrefix + "DEEPGRAM_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY")
	cfg.GeminiAPIKey = os.Getenv(EnvPrefix + "GEMINI_API_KEY")
}

func validate(cfg *Config) []string {
	var warnings []string

	if cfg.OpenAIAPIKey == "" {
		warnings = append(warnings, "OpenAI API key not configured \u2014 speech synthesis is disabled. Set "+EnvPrefix+"OPENAI_API_KEY or OPENAI_API_KEY.")
	}

	switch cfg.TranscriptionProvider {
	case "openai":
	case "deepgram":
		if cfg.DeepgramAPIKey == "" {
			warnings = append(warnings, "Deepgram API key not configured \u2014 transcription is disabled. Set "+EnvPrefix+"DEEPGRAM_API_KEY.")
		}
	default:
		warnings = append(warnings, fmt.Sprintf("Unknown transcription_provider %q \u2014 using openai.", cfg.TranscriptionProvider))
		cfg.TranscriptionProvider = "openai"
	}

	provider, model, ok := strings.Cut(cfg.TranslationModel, "/")
	switch {
	case !ok || provider == "" || model == "":
		warnings = append(warnings, fmt.Sprintf("Invalid translation_model %q \u2014 expected provider/model.", cfg.TranslationModel))
	case provider == "anthropic" && cfg.AnthropicAPIKey == "":
		warnings = append(warnings, "Anthropic API key not configured \u2014 translation is disabled. Set "+EnvPrefix+"ANTHROPIC_API_KEY.")
	case provider == "gemini" && cfg.GeminiAPIKey == "":
		warnings = append(warnings, "Gemini API key not configured \u2014 translation is disabled. Set "+EnvPrefix+"GEMINI_API_KEY.")
	}

	if d, err := time.ParseDuration(cfg.RequestTimeout); err != nil || d <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid request_timeout %q \u2014 using default 120s.", cfg.RequestTimeout))
	}

	for _, v := range []string{cfg.Preferences.FemaleVoice, cfg.Preferences.MaleVoice} {
		if _, ok := findVoice(v); !ok && strings.TrimSpace(v) != "" {
			warnings = append(warnings, fmt.Sprintf("Unknown voice %q \u2014 the speech endpoint may reject it.", v))
		}
	}
	cfg.Preferences = cfg.Preferences.Normalize()

	return warnings
}

// LoadPreferences reads saved preferences, returning defaults when path does not exist.
func LoadPreferences(path string) (Preferences, error) {
	prefs, _, err := readPreferences(path, defaultPreferences())
	return prefs.Normalize(), err
}

func readPreferences(path string, base Preferences) (Preferences, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, false, nil
		}
		return base, false, fmt.Errorf("read preferences file: %w", err)
	}
	prefs := base
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return base, false, fmt.Errorf("parse preferences file: %w", err)
	}
	return prefs, true, nil
}

// SavePreferences writes p to path, creating parent directories as needed.
func SavePreferences(path string, p Preferences) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create preferences directory: %w", err)
	}
	data, err := yaml.Marshal(p.Normalize())
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write preferences file: %w", err)
	}
	return nil
}

func parseSampleRates(raw string) []int {
	parts := strings.Split(raw, ",")
	seen := make(map[int]struct{}, len(parts))
	result := make([]int, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		rate, err := strconv.Atoi(trimmed)
		if err != nil || rate <= 0 {
			continue
		}
		if _, ok := seen[rate]; ok {
			continue
		}
		seen[rate] = struct{}{}
		result = append(result, rate)
	}

	return result
}
