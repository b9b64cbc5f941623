package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ingestpipe/internal/domain"
	"ingestpipe/internal/ffprobe"
)

// LocalFileListerConfig configures the `local` source kind: a directory of
// already-downloaded video/audio files, grounded on
// ingest_youtube.py's LocalFileLister.list_files_from_directory.
type LocalFileListerConfig struct {
	FFprobeBinary string
	Dir           string
	Patterns      []string
	Recursive     bool
	NewestFirst   bool
}

var defaultLocalPatterns = []string{".mp4", ".mkv", ".webm", ".m4a", ".wav", ".mp3"}

// NewLocalFileLister returns a VideoLister over files in cfg.Dir, using
// each file's basename (extension stripped) as the video id and
// ffprobe.Inspect for duration. The returned VideoDescriptor.ID is later
// passed straight through to the Acquirer, so a local-source Acquirer
// implementation must resolve it back to the same path.
func NewLocalFileLister(cfg LocalFileListerConfig) VideoLister {
	if cfg.FFprobeBinary == "" {
		cfg.FFprobeBinary = "ffprobe"
	}
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = defaultLocalPatterns
	}

	return FuncLister(func(ctx context.Context) ([]domain.VideoDescriptor, error) {
		var paths []string
		walker := filepath.WalkDir
		err := walker(cfg.Dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if !cfg.Recursive && path != cfg.Dir {
					return filepath.SkipDir
				}
				return nil
			}
			if matchesAny(path, patterns) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		type withModTime struct {
			path string
			mod  int64
		}
		entries := make([]withModTime, 0, len(paths))
		for _, p := range paths {
			info, statErr := os.Stat(p)
			mod := int64(0)
			if statErr == nil {
				mod = info.ModTime().Unix()
			}
			entries = append(entries, withModTime{path: p, mod: mod})
		}
		if cfg.NewestFirst {
			sort.Slice(entries, func(i, j int) bool { return entries[i].mod > entries[j].mod })
		} else {
			sort.Slice(entries, func(i, j int) bool { return entries[i].mod < entries[j].mod })
		}

		videos := make([]domain.VideoDescriptor, 0, len(entries))
		for _, e := range entries {
			result, probeErr := ffprobe.Inspect(ctx, cfg.FFprobeBinary, e.path)
			desc := domain.VideoDescriptor{
				ID:    localFileID(e.path),
				Title: filepath.Base(e.path),
			}
			if probeErr == nil {
				duration := result.DurationSeconds()
				desc.DurationS = &duration
			}
			videos = append(videos, desc)
		}
		return videos, nil
	})
}

// localFileID derives a stable video id from a local path: the basename
// without its extension. Acquirer implementations for the local source
// kind resolve this id back to an absolute path under the same directory.
func localFileID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func matchesAny(path string, patterns []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, p := range patterns {
		if strings.EqualFold(ext, p) {
			return true
		}
	}
	return false
}
