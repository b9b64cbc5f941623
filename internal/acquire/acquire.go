// Package acquire implements the Audio Acquirer (C2): downloading the
// best audio-only stream for a video and transcoding it to the WAV shape
// every downstream stage expects.
package acquire

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"ingestpipe/internal/domain"
	"ingestpipe/internal/ffprobe"
	"ingestpipe/internal/fileutil"
	"ingestpipe/internal/textutil"
)

const (
	minValidSizeBytes = 50 * 1024
	downloadTimeout   = 600 * time.Second
	demuxTimeout      = 60 * time.Second
	probeTimeout      = 10 * time.Second
)

// clientStrategies mirrors the stable subprocess surface in §6: an ordered
// list of yt-dlp client impersonations tried in turn until one succeeds. An
// error classified as terminal (members-only, unavailable, rate-limited)
// ends the loop at once, without trying the remaining strategies.
var clientStrategies = []string{"web", "android", "default"}

// Config controls the downloader/demuxer invocation.
type Config struct {
	YTDLPBinary  string
	FFmpegBinary string
	FFprobeBinary string
	WorkDir      string
	Proxy        string
	CookiesFile  string

	// StoreAudioLocally, when true, keeps a verified copy of the validated
	// WAV under AudioStorageDir after acquisition succeeds, named from the
	// video id with filesystem-unsafe characters stripped.
	StoreAudioLocally bool
	AudioStorageDir   string
}

// Service drives the subprocess-based acquisition pipeline. commandRunner is
// a swappable seam for tests, matching the pattern used throughout this
// codebase's other subprocess wrappers.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewService constructs an acquirer with sane binary defaults.
func NewService(cfg Config) *Service {
	if cfg.YTDLPBinary == "" {
		cfg.YTDLPBinary = "yt-dlp"
	}
	if cfg.FFmpegBinary == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	if cfg.FFprobeBinary == "" {
		cfg.FFprobeBinary = "ffprobe"
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner overrides the subprocess execution seam (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	s.commandRunner = runner
}

// Acquire implements the C2 contract: acquire(video_id) -> AudioArtifact |
// TerminalError. It allocates a unique per-call working directory and
// guarantees, on every exit path, that partial temp files for this video
// are removed unless acquisition succeeded.
func (s *Service) Acquire(ctx context.Context, videoID string) (_ domain.AudioArtifact, err error) {
	workDir, cleanupErr := s.scopedWorkDir(videoID)
	if cleanupErr != nil {
		return domain.AudioArtifact{}, domain.Wrap(domain.ErrDownloadFailed, "acquire", "workdir", "allocate working directory", cleanupErr)
	}
	succeeded := false
	defer func() {
		if !succeeded {
			_ = os.RemoveAll(workDir)
		}
	}()

	rawPath, downloadErr := s.download(ctx, videoID, workDir)
	if downloadErr != nil {
		return domain.AudioArtifact{}, downloadErr
	}

	wavPath := filepath.Join(workDir, videoID+".wav")
	demuxCtx, cancel := context.WithTimeout(ctx, demuxTimeout)
	defer cancel()
	if _, err := s.run(demuxCtx, s.cfg.FFmpegBinary, demuxArgs(rawPath, wavPath)...); err != nil {
		return domain.AudioArtifact{}, domain.WrapDetail(domain.ErrDownloadFailed, "acquire", "demux", "ffmpeg transcode failed", truncate(err.Error(), 2000), err)
	}

	artifact, validateErr := s.validate(ctx, wavPath)
	if validateErr != nil {
		return domain.AudioArtifact{}, validateErr
	}

	if s.cfg.StoreAudioLocally && s.cfg.AudioStorageDir != "" {
		if err := s.archiveLocally(videoID, wavPath); err != nil {
			// Archival is a best-effort convenience copy, never a terminal
			// failure: the artifact the caller receives is still valid.
			_ = err
		}
	}

	succeeded = true
	return artifact, nil
}

// archiveLocally keeps a verified copy of the acquired WAV outside the
// scoped temp dir so it survives C2's own cleanup. The copy is not
// registered with internal/dlcache, so later runs do not reuse it.
func (s *Service) archiveLocally(videoID, wavPath string) error {
	if err := os.MkdirAll(s.cfg.AudioStorageDir, 0o755); err != nil {
		return err
	}
	name := textutil.SanitizeFileName(videoID) + ".wav"
	dest := filepath.Join(s.cfg.AudioStorageDir, name)
	return fileutil.CopyFileVerified(wavPath, dest)
}

func (s *Service) scopedWorkDir(videoID string) (string, error) {
	base := s.cfg.WorkDir
	if base == "" {
		base = os.TempDir()
	}
	nonce := fmt.Sprintf("%d-%d", os.Getpid(), time.Now().UnixNano())
	dir := filepath.Join(base, "ingestpipe-"+videoID+"-"+nonce)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func (s *Service) download(ctx context.Context, videoID, workDir string) (string, error) {
	outputTemplate := filepath.Join(workDir, videoID+".%(ext)s")
	var lastErr error
	for _, strategy := range clientStrategies {
		dlCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
		output, err := s.run(dlCtx, s.cfg.YTDLPBinary, downloadArgs(videoID, strategy, outputTemplate, s.cfg.Proxy, s.cfg.CookiesFile)...)
		cancel()
		if err == nil {
			if path, ok := findDownloaded(workDir, videoID); ok {
				return path, nil
			}
			lastErr = fmt.Errorf("download reported success but no output file found")
			continue
		}
		text := strings.ToLower(string(output) + " " + err.Error())
		if marker, ok := classifyDownloadError(text); ok {
			return "", domain.WrapDetail(marker, "acquire", "download", fmt.Sprintf("%s strategy failed", strategy), truncate(string(output), 2000), err)
		}
		lastErr = err
	}
	return "", domain.WrapDetail(domain.ErrDownloadFailed, "acquire", "download", "all client strategies exhausted", truncate(fmt.Sprint(lastErr), 2000), lastErr)
}

// probeTimeoutDuration bounds how long a single accessibility check may
// run; it must stay well under the pre-filter's per-video budget since
// many of these (up to the pre-filter's concurrency, 20 by default) run
// concurrently ahead of the real download pass.
const probeTimeoutDuration = 20 * time.Second

// Probe performs a quick reachability check for videoID without
// downloading: yt-dlp --simulate still logs the same members-only/private/
// unavailable markers classifyDownloadError recognises, so this satisfies
// pipeline.AccessibilityProbe using the exact same terminal-error
// classification Acquire uses, just without a subsequent demux/validate
// pass.
func (s *Service) Probe(ctx context.Context, videoID string) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeoutDuration)
	defer cancel()
	output, err := s.run(probeCtx, s.cfg.YTDLPBinary, "--simulate", "--no-warnings", "--quiet", videoID)
	if err == nil {
		return nil
	}
	text := strings.ToLower(string(output) + " " + err.Error())
	if marker, ok := classifyDownloadError(text); ok {
		return marker
	}
	return nil
}

// classifyDownloadError matches known terminal-error text, grounded on the
// original downloader's private/members-only/rate-limit string matching.
func classifyDownloadError(text string) (error, bool) {
	switch {
	case strings.Contains(text, "members-only"), strings.Contains(text, "join this channel"):
		return domain.ErrMembersOnly, true
	case strings.Contains(text, "private video"), strings.Contains(text, "video unavailable"), strings.Contains(text, "has been removed"):
		return domain.ErrUnavailable, true
	case strings.Contains(text, "429"), strings.Contains(text, "rate-limit"), strings.Contains(text, "too many requests"):
		return domain.ErrRateLimited, true
	default:
		return nil, false
	}
}

func (s *Service) validate(ctx context.Context, wavPath string) (domain.AudioArtifact, error) {
	info, statErr := os.Stat(wavPath)
	if statErr != nil || info.Size() < minValidSizeBytes {
		return domain.AudioArtifact{}, domain.Wrap(domain.ErrDownloadFailed, "acquire", "validate", "output file missing or too small", statErr)
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	result, err := ffprobe.Inspect(probeCtx, s.cfg.FFprobeBinary, wavPath)
	if err != nil {
		return domain.AudioArtifact{}, domain.Wrap(domain.ErrDownloadFailed, "acquire", "probe", "ffprobe failed", err)
	}
	if result.AudioStreamCount() == 0 {
		return domain.AudioArtifact{}, domain.Wrap(domain.ErrNoAudio, "acquire", "probe", "no audio stream present", nil)
	}

	fingerprint, err := contentFingerprint(wavPath)
	if err != nil {
		return domain.AudioArtifact{}, domain.Wrap(domain.ErrDownloadFailed, "acquire", "fingerprint", "hash first 120s", err)
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

func (s *Service) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...)
	forceUTF8ChildIO(cmd)
	return cmd.CombinedOutput()
}

func downloadArgs(videoID, clientStrategy, outputTemplate, proxy, cookiesFile string) []string {
	args := []string{
		"--extract-audio",
		"--audio-format", "best",
		"--format", "bestaudio",
		"--force-ipv4",
		"--extractor-args", "youtube:player_client=" + clientStrategy,
		"--user-agent", "Mozilla/5.0",
		"--referer", "https://www.youtube.com/",
		"--output", outputTemplate,
	}
	if proxy != "" {
		args = append(args, "--proxy", proxy)
	}
	if cookiesFile != "" {
		args = append(args, "--cookies", cookiesFile)
	}
	args = append(args, "https://www.youtube.com/watch?v="+videoID)
	return args
}

func demuxArgs(source, dest string) []string {
	return []string{"-y", "-i", source, "-ac", "1", "-ar", "16000", "-sample_fmt", "s16", "-f", "wav", dest}
}

func findDownloaded(workDir, videoID string) (string, bool) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), videoID+".") {
			return filepath.Join(workDir, entry.Name()), true
		}
	}
	return "", false
}

// contentFingerprint hashes the file's first 120 seconds worth of bytes
// (approximated by a fixed byte budget for a 16kHz mono s16 WAV) for the
// orchestrator's in-run content-hash dedup. This is a cheap intra-run
// dedup signal, not a cryptographic contract.
func contentFingerprint(path string) (string, error) {
	const bytesPerSecond = 16000 * 2 // mono, 16-bit
	const budget = 120 * bytesPerSecond

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	buf := make([]byte, budget)
	n, err := file.Read(buf)
	if err != nil && n == 0 {
		return "", err
	}
	sum := md5.Sum(buf[:n])
	return hex.EncodeToString(sum[:]), nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := s[:limit]
	for len(cut) > 0 {
		r := []rune(cut)
		last := r[len(r)-1]
		if last != '�' {
			break
		}
		cut = string(r[:len(r)-1])
	}
	return cut + "...(truncated)"
}
