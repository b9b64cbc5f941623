package asr

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"ingestpipe/internal/acquire"
)

func runSubprocess(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	acquire.ForceUTF8ChildIO(cmd)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func buildTranscribeArgs(source, outputDir, modelKey, computeType string, beam int, temps []float64, language, domainPrompt string) []string {
	args := []string{
		"transcribe",
		source,
		"--model", modelKey,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--word_timestamps", "true",
		"--beam_size", fmt.Sprint(beam),
	}
	if computeType != "" {
		args = append(args, "--compute_type", computeType)
	}
	if len(temps) > 0 {
		parts := make([]string, len(temps))
		for i, t := range temps {
			parts[i] = fmt.Sprintf("%.2f", t)
		}
		args = append(args, "--temperature", strings.Join(parts, ","))
	}
	if language != "" {
		args = append(args, "--language", language)
	}
	if domainPrompt != "" {
		args = append(args, "--initial_prompt", domainPrompt)
	}
	return args
}
