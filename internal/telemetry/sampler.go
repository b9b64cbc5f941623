package telemetry

import (
	"context"
	"log/slog"
	"time"

	"ingestpipe/internal/domain"
	"ingestpipe/internal/logging"
)

const (
	// SampleInterval is the fixed 15-second cadence the orchestrator samples
	// GPU utilisation, VRAM, temperature, power, and queue depths at.
	SampleInterval = 15 * time.Second

	// lowUtilizationThreshold triggers a warning when SM utilization falls
	// below it during an active run.
	lowUtilizationThreshold = 90.0
)

// QueueDepths is sampled alongside the GPU reading.
type QueueDepths struct {
	Q1 int
	Q2 int
}

// DepthProbe reports the current length of each bounded queue.
type DepthProbe func() QueueDepths

// Sampler runs a ticker loop that samples GPU state and queue depth every
// SampleInterval until ctx is cancelled, recording peaks into stats and
// warning on every sample whose utilisation is below
// lowUtilizationThreshold.
type Sampler struct {
	nvidiaSMIBinary string
	run             func(ctx context.Context, name string, args ...string) ([]byte, error)
	logger          *slog.Logger
	stats           *domain.IngestionStats
	depths          DepthProbe
}

// NewSampler constructs a Sampler. run may be nil to use the real
// nvidia-smi subprocess; tests pass a stub.
func NewSampler(nvidiaSMIBinary string, run func(ctx context.Context, name string, args ...string) ([]byte, error), logger *slog.Logger, stats *domain.IngestionStats, depths DepthProbe) *Sampler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sampler{nvidiaSMIBinary: nvidiaSMIBinary, run: run, logger: logger, stats: stats, depths: depths}
}

// Run blocks, sampling every SampleInterval, until ctx is done.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce(ctx)
		}
	}
}

func (s *Sampler) sampleOnce(ctx context.Context) {
	if s.depths != nil {
		depths := s.depths()
		if s.stats != nil {
			s.stats.ObserveQueueDepth("q1", depths.Q1)
			s.stats.ObserveQueueDepth("q2", depths.Q2)
		}
	}

	sample, err := QueryGPU(ctx, s.nvidiaSMIBinary, s.run)
	if err != nil {
		s.logger.Debug("gpu telemetry probe failed",
			logging.String(logging.FieldEventType, "telemetry_probe_failed"),
			logging.Error(err),
		)
		return
	}

	s.logger.Info("gpu telemetry sample",
		logging.String(logging.FieldEventType, "telemetry_sample"),
		logging.Float64("gpu_utilization_pct", sample.UtilizationPercent),
		logging.Float64("gpu_memory_used_mib", sample.MemoryUsedMiB),
		logging.Float64("gpu_memory_total_mib", sample.MemoryTotalMiB),
		logging.Float64("gpu_temperature_c", sample.TemperatureC),
		logging.Float64("gpu_power_watts", sample.PowerWatts),
	)

	if sample.UtilizationPercent < lowUtilizationThreshold {
		logging.WarnWithContext(s.logger, "GPU utilization below target during active run", "low_gpu_utilization",
			logging.Float64("gpu_utilization_pct", sample.UtilizationPercent),
		)
	}
}
