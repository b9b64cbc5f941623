package embed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"ingestpipe/internal/domain"
)

// SubprocessModelConfig configures the out-of-process text embedding model,
// shaped the same way internal/asr.Config drives its transcription
// subprocess: a model key, a work directory for the JSON request/response
// files, and a binary name tests can swap out.
type SubprocessModelConfig struct {
	PythonBinary string
	ModelKey     string
	WorkDir      string
	Dimensions   int
}

// SubprocessModel implements Model by shelling out to an embedding worker
// once per batch, writing the input texts to a JSON request file and
// reading back a JSON array of vectors. Grounded on internal/asr.Service's
// subprocess-plus-sidecar-file protocol.
type SubprocessModel struct {
	cfg           SubprocessModelConfig
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewSubprocessModel constructs a Model backed by a local embedding worker.
func NewSubprocessModel(cfg SubprocessModelConfig) *SubprocessModel {
	if cfg.PythonBinary == "" {
		cfg.PythonBinary = "uvx"
	}
	if cfg.ModelKey == "" {
		cfg.ModelKey = "bge-small-en-v1.5"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 384
	}
	return &SubprocessModel{cfg: cfg}
}

// WithCommandRunner overrides the subprocess execution seam (for testing).
func (m *SubprocessModel) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	m.commandRunner = runner
}

func (m *SubprocessModel) run(ctx context.Context, name string, args ...string) error {
	if m.commandRunner != nil {
		return m.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Dimension reports the model's output vector width.
func (m *SubprocessModel) Dimension() int {
	return m.cfg.Dimensions
}

type embedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// Embed sends texts to the embedding worker and returns one vector per
// input, in order, exactly as the worker produced it (not normalised).
func (m *SubprocessModel) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	workDir := m.cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, domain.Wrap(domain.ErrGPUInitFailed, "embed", "text_model", "prepare work dir", err)
	}

	reqFile, err := os.CreateTemp(workDir, "embed-req-*.json")
	if err != nil {
		return nil, domain.Wrap(domain.ErrGPUInitFailed, "embed", "text_model", "create request file", err)
	}
	defer os.Remove(reqFile.Name())

	if err := json.NewEncoder(reqFile).Encode(embedRequest{Texts: texts, Model: m.cfg.ModelKey}); err != nil {
		reqFile.Close()
		return nil, fmt.Errorf("encode embedding request: %w", err)
	}
	reqFile.Close()

	respPath := strings.TrimSuffix(reqFile.Name(), ".json") + ".out.json"
	defer os.Remove(respPath)

	args := []string{"embed-text", "--request", reqFile.Name(), "--output", respPath}
	if err := m.run(ctx, m.cfg.PythonBinary, args...); err != nil {
		return nil, domain.Wrap(domain.ErrGPUInitFailed, "embed", "text_model", "run embedding worker", err)
	}

	raw, err := os.ReadFile(respPath)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	var resp embedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(resp.Vectors) != len(texts) {
		return nil, fmt.Errorf("embedding worker returned %d vectors for %d texts", len(resp.Vectors), len(texts))
	}
	return resp.Vectors, nil
}

