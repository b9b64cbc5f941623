package config

import (
	"os"
	"strconv"
	"strings"
)

// applyEnvOverrides layers environment variables over the TOML-decoded
// config, using exactly the key names listed in the configuration surface
// table; these are recognised environment variable names regardless of
// what the operator chooses for known_speaker_name's value.
func applyEnvOverrides(c *Config) {
	str(&c.DatabaseURL, "DATABASE_URL")
	str(&c.Environment, "ENV")
	str(&c.Environment, "ENVIRONMENT")
	boolean(&c.AutoCreateEmbeddingTables, "AUTO_CREATE_EMBEDDING_TABLES")
	str(&c.EmbeddingModelKey, "EMBEDDING_MODEL_KEY")
	str(&c.EmbeddingStorageStrategy, "EMBEDDING_STORAGE_STRATEGY")

	integer(&c.IOWorkers, "IO_WORKERS")
	integer(&c.ASRWorkers, "ASR_WORKERS")
	integer(&c.DBWorkers, "DB_WORKERS")
	integer(&c.BatchSize, "BATCH_SIZE")

	boolean(&c.SkipShorts, "SKIP_SHORTS")
	boolean(&c.NewestFirst, "NEWEST_FIRST")
	float(&c.MaxAudioDuration, "MAX_AUDIO_DURATION")

	str(&c.WhisperModel, "WHISPER_MODEL")
	str(&c.WhisperRefineModel, "WHISPER_REFINE_MODEL")
	str(&c.WhisperDevice, "WHISPER_DEVICE")
	str(&c.WhisperCompute, "WHISPER_COMPUTE")
	integer(&c.WhisperBeam, "WHISPER_BEAM")
	integer(&c.WhisperChunk, "WHISPER_CHUNK")
	floatList(&c.WhisperTemps, "WHISPER_TEMPS")
	boolean(&c.WhisperVAD, "WHISPER_VAD")
	str(&c.WhisperLang, "WHISPER_LANG")
	str(&c.DomainPrompt, "DOMAIN_PROMPT")

	float(&c.QALowLogprob, "QA_LOW_LOGPROB")
	float(&c.QALowCompression, "QA_LOW_COMPRESSION")
	boolean(&c.QATwoPass, "QA_TWO_PASS")
	integer(&c.QARetryBeam, "QA_RETRY_BEAM")
	floatList(&c.QARetryTemps, "QA_RETRY_TEMPS")

	str(&c.DiarizeModel, "DIARIZE_MODEL")
	integer(&c.MinSpeakers, "MIN_SPEAKERS")
	integer(&c.MaxSpeakers, "MAX_SPEAKERS")
	float(&c.PyannoteClusteringThreshold, "PYANNOTE_CLUSTERING_THRESHOLD")

	float(&c.KnownMinSim, "CHAFFEE_MIN_SIM")
	float(&c.GuestMinSim, "GUEST_MIN_SIM")
	float(&c.AttributionMargin, "ATTR_MARGIN")
	float(&c.OverlapBonus, "OVERLAP_BONUS")
	boolean(&c.AssumeMonologue, "ASSUME_MONOLOGUE")
	str(&c.UnknownLabel, "UNKNOWN_LABEL")
	str(&c.VoicesDir, "VOICES_DIR")
	float(&c.MinSpeakerDuration, "MIN_SPEAKER_DURATION")
	boolean(&c.AutoBootstrapKnown, "AUTO_BOOTSTRAP_CHAFFEE")

	str(&c.YTDLPProxy, "YTDLP_PROXY")
	integer(&c.YTDLPDownloadSemaphore, "YTDLP_DOWNLOAD_SEMAPHORE")
	boolean(&c.StoreAudioLocally, "STORE_AUDIO_LOCALLY")
	str(&c.AudioStorageDir, "AUDIO_STORAGE_DIR")
	boolean(&c.ProductionMode, "PRODUCTION_MODE")

	str(&c.YouTubeAPIKey, "YOUTUBE_API_KEY")
}

func str(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func boolean(dst *bool, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
		*dst = parsed
	}
}

func integer(dst *int, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*dst = parsed
	}
}

func float(dst *float64, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
		*dst = parsed
	}
}

func floatList(dst *[]float64, key string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]float64, 0, len(parts))
	for _, part := range parts {
		parsed, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			continue
		}
		out = append(out, parsed)
	}
	if len(out) > 0 {
		*dst = out
	}
}
