// Package config loads, normalizes, and validates the ingestion pipeline's
// configuration surface: a TOML file with environment-variable overrides,
// matching every key named in the configuration table this core recognises.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config encapsulates all configuration values for the ingestion pipeline.
type Config struct {
	// Persistence
	DatabaseURL                string `toml:"database_url"`
	Environment                string `toml:"environment"`
	AutoCreateEmbeddingTables  bool   `toml:"auto_create_embedding_tables"`
	EmbeddingModelKey          string `toml:"embedding_model_key"`
	EmbeddingStorageStrategy   string `toml:"embedding_storage_strategy"`

	// Worker pools and batching
	IOWorkers  int `toml:"io_workers"`
	ASRWorkers int `toml:"asr_workers"`
	DBWorkers  int `toml:"db_workers"`
	BatchSize  int `toml:"batch_size"`

	// Input filters
	SkipShorts       bool    `toml:"skip_shorts"`
	NewestFirst      bool    `toml:"newest_first"`
	MaxAudioDuration float64 `toml:"max_audio_duration"`

	// ASR engine (C3)
	WhisperModel       string  `toml:"whisper_model"`
	WhisperRefineModel string  `toml:"whisper_refine_model"`
	WhisperDevice      string  `toml:"whisper_device"`
	WhisperCompute     string  `toml:"whisper_compute"`
	WhisperBeam        int     `toml:"whisper_beam"`
	WhisperChunk       int     `toml:"whisper_chunk"`
	WhisperTemps       []float64 `toml:"whisper_temps"`
	WhisperVAD         bool    `toml:"whisper_vad"`
	WhisperLang        string  `toml:"whisper_lang"`
	DomainPrompt       string  `toml:"domain_prompt"`

	// Refinement thresholds
	QALowLogprob     float64   `toml:"qa_low_logprob"`
	QALowCompression float64   `toml:"qa_low_compression"`
	QATwoPass        bool      `toml:"qa_two_pass"`
	QARetryBeam      int       `toml:"qa_retry_beam"`
	QARetryTemps     []float64 `toml:"qa_retry_temps"`

	// Diarization (C4)
	DiarizeModel                 string  `toml:"diarize_model"`
	MinSpeakers                  int     `toml:"min_speakers"`
	MaxSpeakers                  int     `toml:"max_speakers"`
	PyannoteClusteringThreshold  float64 `toml:"pyannote_clustering_threshold"`

	// Speaker identification (C5)
	KnownSpeakerName      string  `toml:"known_speaker_name"`
	KnownMinSim           float64 `toml:"known_min_sim"`
	GuestMinSim           float64 `toml:"guest_min_sim"`
	AttributionMargin     float64 `toml:"attr_margin"`
	OverlapBonus          float64 `toml:"overlap_bonus"`
	AssumeMonologue       bool    `toml:"assume_monologue"`
	UnknownLabel          string  `toml:"unknown_label"`
	VoicesDir             string  `toml:"voices_dir"`
	MinSpeakerDuration    float64 `toml:"min_speaker_duration"`
	AutoBootstrapKnown    bool    `toml:"auto_bootstrap_known"`

	// Audio acquisition (C2)
	YTDLPProxy             string `toml:"ytdlp_proxy"`
	YTDLPDownloadSemaphore int    `toml:"ytdlp_download_semaphore"`
	StoreAudioLocally      bool   `toml:"store_audio_locally"`
	AudioStorageDir        string `toml:"audio_storage_dir"`
	ProductionMode         bool   `toml:"production_mode"`

	// Video listing (source kind "api")
	YouTubeAPIKey string `toml:"youtube_api_key"`

	// Ambient
	LogDir    string `toml:"log_dir"`
	LogFormat string `toml:"log_format"`
	LogLevel  string `toml:"log_level"`
}

// Default returns a Config populated with repository defaults, matching the
// defaults named throughout spec §4's algorithm descriptions.
func Default() Config {
	return Config{
		Environment:               "development",
		AutoCreateEmbeddingTables: true,
		EmbeddingModelKey:         "bge-small-en-v1.5",
		EmbeddingStorageStrategy:  "known_only",

		IOWorkers:  12,
		ASRWorkers: 2,
		DBWorkers:  12,
		BatchSize:  256,

		MaxAudioDuration: 0,

		WhisperModel:       "distil-large-v3",
		WhisperRefineModel: "large-v3",
		WhisperDevice:      "cuda",
		WhisperCompute:     "float16",
		WhisperBeam:        5,
		WhisperChunk:       30,
		WhisperTemps:       []float64{0.0, 0.2, 0.4, 0.6, 0.8, 1.0},
		WhisperVAD:         true,
		WhisperLang:        "en",

		QALowLogprob:     -0.35,
		QALowCompression: 2.4,
		QATwoPass:        true,
		QARetryBeam:      8,
		QARetryTemps:     []float64{0.0, 0.2, 0.4},

		DiarizeModel:                "pyannote/speaker-diarization-3.1",
		PyannoteClusteringThreshold: 0.7153,

		KnownSpeakerName:   "primary",
		KnownMinSim:        0.62,
		GuestMinSim:        0.82,
		AttributionMargin:  0.05,
		OverlapBonus:       0.03,
		UnknownLabel:       "UNKNOWN",
		VoicesDir:          "~/.local/share/ingestpipe/voices",
		MinSpeakerDuration: 3.0,

		YTDLPDownloadSemaphore: 20,
		AudioStorageDir:        "~/.local/share/ingestpipe/audio",

		LogDir:    "~/.local/share/ingestpipe/logs",
		LogFormat: "console",
		LogLevel:  "info",
	}
}

// Load locates, parses, normalizes, and validates a configuration file,
// applying environment-variable overrides last so they always win. The
// returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ingestpipe/config.toml")
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/ingestpipe/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ingestpipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// Redacted returns a snapshot safe to log: credential-bearing fields are
// replaced with a fixed placeholder rather than omitted, so a reader can
// still see that a value was configured without learning its contents.
func (c *Config) Redacted() map[string]string {
	redact := func(v string) string {
		if v == "" {
			return ""
		}
		return "<redacted>"
	}
	return map[string]string{
		"database_url":    redact(c.DatabaseURL),
		"ytdlp_proxy":     redact(c.YTDLPProxy),
		"youtube_api_key": redact(c.YouTubeAPIKey),
		"environment":     c.Environment,
		"whisper_model":   c.WhisperModel,
	}
}
