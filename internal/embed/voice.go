package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"ingestpipe/internal/domain"
	"ingestpipe/internal/speaker"
)

// VoiceEmbedderConfig configures the out-of-process voice embedding worker
// that backs speaker.Embedder.
type VoiceEmbedderConfig struct {
	PythonBinary string
	ModelKey     string
	WorkDir      string
}

// VoiceEmbedder extracts one voice embedding per requested audio window,
// satisfying speaker.Embedder. The interface's own doc comment assigns this
// responsibility to internal/embed, so the adapter lives here rather than
// in internal/speaker.
type VoiceEmbedder struct {
	cfg           VoiceEmbedderConfig
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewVoiceEmbedder constructs a speaker.Embedder backed by a local voice
// embedding worker.
func NewVoiceEmbedder(cfg VoiceEmbedderConfig) *VoiceEmbedder {
	if cfg.PythonBinary == "" {
		cfg.PythonBinary = "uvx"
	}
	if cfg.ModelKey == "" {
		cfg.ModelKey = "pyannote/embedding"
	}
	return &VoiceEmbedder{cfg: cfg}
}

// WithCommandRunner overrides the subprocess execution seam (for testing).
func (v *VoiceEmbedder) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	v.commandRunner = runner
}

func (v *VoiceEmbedder) run(ctx context.Context, name string, args ...string) error {
	if v.commandRunner != nil {
		return v.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

type voiceWindowRequest struct {
	AudioPath string    `json:"audio_path"`
	Model     string    `json:"model"`
	Windows   []float64 `json:"windows"`
}

type voiceWindowResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// Embed extracts one embedding per window from audioPath, in request order.
func (v *VoiceEmbedder) Embed(ctx context.Context, audioPath string, windows []speaker.Window) ([][]float32, error) {
	if len(windows) == 0 {
		return nil, nil
	}

	workDir := v.cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, domain.Wrap(domain.ErrGPUInitFailed, "embed", "voice_embedder", "prepare work dir", err)
	}

	flatWindows := make([]float64, 0, len(windows)*2)
	for _, w := range windows {
		flatWindows = append(flatWindows, w.StartS, w.EndS)
	}

	reqFile, err := os.CreateTemp(workDir, "voiceembed-req-*.json")
	if err != nil {
		return nil, domain.Wrap(domain.ErrGPUInitFailed, "embed", "voice_embedder", "create request file", err)
	}
	defer os.Remove(reqFile.Name())

	if err := json.NewEncoder(reqFile).Encode(voiceWindowRequest{
		AudioPath: audioPath,
		Model:     v.cfg.ModelKey,
		Windows:   flatWindows,
	}); err != nil {
		reqFile.Close()
		return nil, fmt.Errorf("encode voice embedding request: %w", err)
	}
	reqFile.Close()

	respPath := strings.TrimSuffix(reqFile.Name(), ".json") + ".out.json"
	defer os.Remove(respPath)

	args := []string{"embed-voice", "--request", reqFile.Name(), "--output", respPath}
	if err := v.run(ctx, v.cfg.PythonBinary, args...); err != nil {
		return nil, domain.Wrap(domain.ErrGPUInitFailed, "embed", "voice_embedder", "run voice embedding worker", err)
	}

	raw, err := os.ReadFile(respPath)
	if err != nil {
		return nil, fmt.Errorf("read voice embedding response: %w", err)
	}
	var resp voiceWindowResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode voice embedding response: %w", err)
	}
	if len(resp.Vectors) != len(windows) {
		return nil, fmt.Errorf("voice embedding worker returned %d vectors for %d windows", len(resp.Vectors), len(windows))
	}
	return resp.Vectors, nil
}
