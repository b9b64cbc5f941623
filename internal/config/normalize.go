package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEnvironment()
	c.normalizeLogging()
	c.normalizeSpeakerID()
	c.normalizeWorkerPools()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.LogDir, err = expandPath(c.LogDir); err != nil {
		return fmt.Errorf("log_dir: %w", err)
	}
	if strings.TrimSpace(c.VoicesDir) == "" {
		c.VoicesDir = Default().VoicesDir
	}
	if c.VoicesDir, err = expandPath(c.VoicesDir); err != nil {
		return fmt.Errorf("voices_dir: %w", err)
	}
	if strings.TrimSpace(c.AudioStorageDir) == "" {
		c.AudioStorageDir = Default().AudioStorageDir
	}
	if c.AudioStorageDir, err = expandPath(c.AudioStorageDir); err != nil {
		return fmt.Errorf("audio_storage_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEnvironment() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = "development"
	}
	c.EmbeddingStorageStrategy = strings.ToLower(strings.TrimSpace(c.EmbeddingStorageStrategy))
	if c.EmbeddingStorageStrategy == "" {
		c.EmbeddingStorageStrategy = "known_only"
	}
}

func (c *Config) normalizeLogging() {
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) normalizeSpeakerID() {
	c.KnownSpeakerName = strings.TrimSpace(c.KnownSpeakerName)
	if c.KnownSpeakerName == "" {
		c.KnownSpeakerName = "primary"
	}
	c.UnknownLabel = strings.TrimSpace(c.UnknownLabel)
	if c.UnknownLabel == "" {
		c.UnknownLabel = "UNKNOWN"
	}
	if c.MinSpeakers < 0 {
		c.MinSpeakers = 0
	}
	if c.MaxSpeakers < 0 {
		c.MaxSpeakers = 0
	}
}

func (c *Config) normalizeWorkerPools() {
	if c.IOWorkers <= 0 {
		c.IOWorkers = Default().IOWorkers
	}
	if c.ASRWorkers <= 0 {
		c.ASRWorkers = Default().ASRWorkers
	}
	if c.DBWorkers <= 0 {
		c.DBWorkers = Default().DBWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = Default().BatchSize
	}
	if c.YTDLPDownloadSemaphore <= 0 {
		c.YTDLPDownloadSemaphore = Default().YTDLPDownloadSemaphore
	}
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return trimmed, nil
}
