package telemetry

import (
	"context"
	"testing"
	"time"

	"ingestpipe/internal/domain"
)

func TestParseCSVRow(t *testing.T) {
	sample, err := parseCSVRow("42, 1024, 8192, 65, 150.5\n")
	if err != nil {
		t.Fatalf("parseCSVRow: %v", err)
	}
	if sample.UtilizationPercent != 42 || sample.MemoryUsedMiB != 1024 || sample.MemoryTotalMiB != 8192 || sample.TemperatureC != 65 || sample.PowerWatts != 150.5 {
		t.Fatalf("unexpected sample: %+v", sample)
	}
}

func TestParseCSVRowRejectsShortRow(t *testing.T) {
	if _, err := parseCSVRow("42, 1024\n"); err == nil {
		t.Fatalf("expected error for short row")
	}
}

func TestQueryGPUUsesInjectedRunner(t *testing.T) {
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("10, 100, 200, 50, 75\n"), nil
	}
	sample, err := QueryGPU(context.Background(), "nvidia-smi", run)
	if err != nil {
		t.Fatalf("QueryGPU: %v", err)
	}
	if sample.UtilizationPercent != 10 {
		t.Fatalf("expected parsed utilization 10, got %v", sample.UtilizationPercent)
	}
}

func TestSamplerObservesQueueDepthsAndStopsOnCancel(t *testing.T) {
	stats := &domain.IngestionStats{}
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("95, 100, 200, 50, 75\n"), nil
	}
	depths := func() QueueDepths { return QueueDepths{Q1: 5, Q2: 3} }
	sampler := NewSampler("nvidia-smi", run, nil, stats, depths)

	ctx, cancel := context.WithCancel(context.Background())
	sampler.sampleOnce(ctx)
	cancel()

	snap := stats.Snapshot()
	if snap.Peaks.Q1AudioPeak != 5 || snap.Peaks.Q2ASRPeak != 3 {
		t.Fatalf("expected queue peaks recorded, got %+v", snap.Peaks)
	}
}

func TestSamplerRunExitsOnContextCancel(t *testing.T) {
	stats := &domain.IngestionStats{}
	run := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte("95, 100, 200, 50, 75\n"), nil
	}
	sampler := NewSampler("nvidia-smi", run, nil, stats, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sampler.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not exit promptly after cancellation")
	}
}
