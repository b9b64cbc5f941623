// Package telemetry samples GPU utilisation and queue depth every 15
// wall-clock seconds, grounded on the teacher's heartbeat loop shape
// (internal/workflow/heartbeat.go's ticker-plus-ctx.Done select) adapted
// from a per-item heartbeat to a single run-wide sampler.
package telemetry

import (
	"context"
	"encoding/csv"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// GPUSample is one nvidia-smi reading.
type GPUSample struct {
	UtilizationPercent float64
	MemoryUsedMiB      float64
	MemoryTotalMiB     float64
	TemperatureC       float64
	PowerWatts         float64
}

const nvidiaSMIQueryFields = "utilization.gpu,memory.used,memory.total,temperature.gpu,power.draw"

// QueryGPU runs `nvidia-smi --query-gpu=... --format=csv,noheader,nounits`
// and parses the first GPU's row. run lets tests substitute a
// fake binary the same way the rest of this codebase swaps subprocess
// execution.
func QueryGPU(ctx context.Context, nvidiaSMIBinary string, run func(ctx context.Context, name string, args ...string) ([]byte, error)) (GPUSample, error) {
	if run == nil {
		run = defaultRun
	}
	args := []string{
		"--query-gpu=" + nvidiaSMIQueryFields,
		"--format=csv,noheader,nounits",
	}
	output, err := run(ctx, nvidiaSMIBinary, args...)
	if err != nil {
		return GPUSample{}, fmt.Errorf("nvidia-smi query: %w", err)
	}
	return parseCSVRow(string(output))
}

func defaultRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func parseCSVRow(output string) (GPUSample, error) {
	r := csv.NewReader(strings.NewReader(output))
	r.TrimLeadingSpace = true
	fields, err := r.Read()
	if err != nil {
		return GPUSample{}, fmt.Errorf("nvidia-smi produced no parsable output: %w", err)
	}
	if len(fields) < 5 {
		return GPUSample{}, fmt.Errorf("nvidia-smi row has %d fields, want 5", len(fields))
	}
	values := make([]float64, 5)
	for i, raw := range fields[:5] {
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return GPUSample{}, fmt.Errorf("parse field %d (%q): %w", i, raw, err)
		}
		values[i] = v
	}
	return GPUSample{
		UtilizationPercent: values[0],
		MemoryUsedMiB:      values[1],
		MemoryTotalMiB:     values[2],
		TemperatureC:       values[3],
		PowerWatts:         values[4],
	}, nil
}
