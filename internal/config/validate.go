package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable, matching the fatal
// conditions named in the error handling design: a missing database target
// and an inconsistent production/auto-create combination abort the run
// before any worker is started.
func (c *Config) Validate() error {
	if err := c.validatePersistence(); err != nil {
		return err
	}
	if err := c.validateWorkerPools(); err != nil {
		return err
	}
	if err := c.validateSpeakerID(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePersistence() error {
	if c.DatabaseURL == "" {
		return errors.New("database_url is required: set DATABASE_URL or configure database_url")
	}
	if c.ProductionMode && c.AutoCreateEmbeddingTables {
		return errors.New("production_mode and auto_create_embedding_tables are mutually exclusive: production requires pre-migrated tables")
	}
	switch c.EmbeddingStorageStrategy {
	case "known_only", "all":
	default:
		return fmt.Errorf("embedding_storage_strategy: unsupported value %q", c.EmbeddingStorageStrategy)
	}
	return nil
}

func (c *Config) validateWorkerPools() error {
	if c.IOWorkers <= 0 {
		return errors.New("io_workers must be positive")
	}
	if c.ASRWorkers <= 0 {
		return errors.New("asr_workers must be positive")
	}
	if c.DBWorkers <= 0 {
		return errors.New("db_workers must be positive")
	}
	if c.BatchSize <= 0 {
		return errors.New("batch_size must be positive")
	}
	return nil
}

func (c *Config) validateSpeakerID() error {
	if c.KnownMinSim < 0 || c.KnownMinSim > 1 {
		return errors.New("known_min_sim must be in [0,1]")
	}
	if c.GuestMinSim < 0 || c.GuestMinSim > 1 {
		return errors.New("guest_min_sim must be in [0,1]")
	}
	if c.MaxSpeakers > 0 && c.MinSpeakers > c.MaxSpeakers {
		return errors.New("min_speakers must not exceed max_speakers")
	}
	return nil
}
