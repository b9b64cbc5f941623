// Package deps checks that the external binaries this pipeline shells out
// to are present before a run starts.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external dependency the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CoreRequirements lists the binaries the preflight checks: the downloader
// and demuxer/prober driving C2, which the pipeline cannot run without, and
// the GPU telemetry probe driving C9's utilisation sampling, which is
// marked Optional.
func CoreRequirements() []Requirement {
	return []Requirement{
		{Name: "yt-dlp", Command: "yt-dlp", Description: "audio-only stream downloader"},
		{Name: "ffmpeg", Command: "ffmpeg", Description: "WAV transcoding"},
		{Name: "ffprobe", Command: "ffprobe", Description: "container/stream inspection"},
		{Name: "nvidia-smi", Command: "nvidia-smi", Description: "GPU telemetry", Optional: true},
	}
}

// AllAvailable reports whether every non-optional requirement resolved.
func AllAvailable(statuses []Status) bool {
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			return false
		}
	}
	return true
}
