package asr

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// extractSpan cuts [startS, endS) out of source into a standalone mono
// 16kHz WAV at dest, for stage-2 re-transcription of a flagged span.
func extractSpan(ctx context.Context, ffmpegBinary, source string, startS, endS float64, dest string) error {
	duration := endS - startS
	if duration <= 0 {
		return fmt.Errorf("extract span: invalid duration %.3f", duration)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", startS),
		"-t", fmt.Sprintf("%.3f", duration),
		"-i", source,
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	cmd := exec.CommandContext(ctx, ffmpegBinary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg extract span: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
