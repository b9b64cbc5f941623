package diarize

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
