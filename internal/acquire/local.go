package acquire

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"ingestpipe/internal/domain"
	"ingestpipe/internal/ffprobe"
)

// LocalConfig controls the `local` source kind Acquirer: no download, just
// a demux-and-validate pass over a file already on disk.
type LocalConfig struct {
	FFmpegBinary  string
	FFprobeBinary string
	SourceDir     string
	WorkDir       string
}

// LocalService implements pipeline.Acquirer for videos that are already
// local files, reusing the same demux/validate/fingerprint steps Service
// applies after a yt-dlp download (internal/acquire/acquire.go's
// validate/contentFingerprint), just skipping the network fetch.
type LocalService struct {
	cfg           LocalConfig
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewLocalService constructs a local-file Acquirer.
func NewLocalService(cfg LocalConfig) *LocalService {
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	if cfg.FFprobeBinary == "" {
		cfg.FFprobeBinary = "ffprobe"
	}
	return &LocalService{cfg: cfg}
}

// WithCommandRunner overrides the subprocess execution seam (for testing).
func (s *LocalService) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	s.commandRunner = runner
}

func (s *LocalService) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	forceUTF8ChildIO(cmd)
	return cmd.CombinedOutput()
}

// Acquire resolves videoID back to a file under cfg.SourceDir (matching
// pipeline.localFileID's basename-without-extension derivation), demuxes it
// to 16kHz mono WAV, and validates the result the same way the downloaded
// path does.
func (s *LocalService) Acquire(ctx context.Context, videoID string) (domain.AudioArtifact, error) {
	source, err := s.resolveSource(videoID)
	if err != nil {
		return domain.AudioArtifact{}, domain.Wrap(domain.ErrDownloadFailed, "acquire", "local_resolve", "locate source file", err)
	}

	workDir := s.cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return domain.AudioArtifact{}, domain.Wrap(domain.ErrDownloadFailed, "acquire", "local_workdir", "prepare work dir", err)
	}

	wavPath := filepath.Join(workDir, videoID+".wav")
	if _, err := s.run(ctx, s.cfg.FFmpegBinary, demuxArgs(source, wavPath)...); err != nil {
		return domain.AudioArtifact{}, domain.WrapDetail(domain.ErrDownloadFailed, "acquire", "local_demux", "ffmpeg transcode failed", truncate(err.Error(), 2000), err)
	}

	return s.validateLocal(ctx, wavPath)
}

func (s *LocalService) resolveSource(videoID string) (string, error) {
	var found string
	err := filepath.WalkDir(s.cfg.SourceDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || found != "" {
			return nil
		}
		base := filepath.Base(path)
		if strings.TrimSuffix(base, filepath.Ext(base)) == videoID {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("no local file matches video id %q under %s", videoID, s.cfg.SourceDir)
	}
	return found, nil
}

func (s *LocalService) validateLocal(ctx context.Context, wavPath string) (domain.AudioArtifact, error) {
	info, statErr := os.Stat(wavPath)
	if statErr != nil || info.Size() < minValidSizeBytes {
		return domain.AudioArtifact{}, domain.Wrap(domain.ErrDownloadFailed, "acquire", "local_validate", "output file missing or too small", statErr)
	}

	result, err := ffprobe.Inspect(ctx, s.cfg.FFprobeBinary, wavPath)
	if err != nil {
		return domain.AudioArtifact{}, domain.Wrap(domain.ErrDownloadFailed, "acquire", "local_probe", "ffprobe failed", err)
	}
	if result.AudioStreamCount() == 0 {
		return domain.AudioArtifact{}, domain.Wrap(domain.ErrNoAudio, "acquire", "local_probe", "no audio stream present", nil)
	}

	fingerprint, err := contentFingerprint(wavPath)
	if err != nil {
		return domain.AudioArtifact{}, domain.Wrap(domain.ErrDownloadFailed, "acquire", "local_fingerprint", "hash first 120s", err)
	}

	return domain.AudioArtifact{
		Path:               wavPath,
		Codec:              "pcm_s16le",
		SampleRate:         16000,
		Channels:           1,
		DurationS:          result.DurationSeconds(),
		ContentFingerprint: fingerprint,
	}, nil
}
