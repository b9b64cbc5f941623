package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"ingestpipe/internal/domain"
)

// YTDLPListerConfig configures a channel listing by the yt-dlp scraper
// source kind, grounded on original_source/backend/scripts/ingest_youtube.py's
// YtDlpVideoLister.list_channel_videos.
type YTDLPListerConfig struct {
	Binary            string
	ChannelURL        string
	Proxy             string
	CookiesFile       string
	SkipMembersOnly   bool
}

type ytdlpFlatEntry struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Duration    *float64 `json:"duration"`
	ViewCount   *int64   `json:"view_count"`
	UploadDate  string   `json:"upload_date"` // YYYYMMDD
	Channel     string   `json:"channel"`
	Tags        []string `json:"tags"`
	Availability string  `json:"availability"`
	LiveStatus  string   `json:"live_status"`
}

// NewYTDLPChannelLister returns a VideoLister that enumerates a channel's
// uploads via `yt-dlp --flat-playlist --dump-json`, one JSON object per
// line (ndjson), the same wire shape the teacher's acquisition subprocess
// calls already assume for yt-dlp output.
func NewYTDLPChannelLister(cfg YTDLPListerConfig) VideoLister {
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	return FuncLister(func(ctx context.Context) ([]domain.VideoDescriptor, error) {
		args := []string{
			"--flat-playlist",
			"--dump-json",
			"--no-warnings",
		}
		if cfg.Proxy != "" {
			args = append(args, "--proxy", cfg.Proxy)
		}
		if cfg.CookiesFile != "" {
			args = append(args, "--cookies", cfg.CookiesFile)
		}
		args = append(args, cfg.ChannelURL)

		out, err := exec.CommandContext(ctx, cfg.Binary, args...).Output() //nolint:gosec
		if err != nil {
			return nil, fmt.Errorf("yt-dlp channel listing: %w", err)
		}

		var videos []domain.VideoDescriptor
		for _, line := range strings.Split(string(out), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var entry ytdlpFlatEntry
			if err := json.Unmarshal([]byte(line), &entry); err != nil {
				continue
			}
			if entry.ID == "" {
				continue
			}
			if cfg.SkipMembersOnly && strings.EqualFold(entry.Availability, "subscriber_only") {
				continue
			}
			videos = append(videos, ytdlpEntryToDescriptor(entry))
		}
		return videos, nil
	})
}

func ytdlpEntryToDescriptor(entry ytdlpFlatEntry) domain.VideoDescriptor {
	desc := domain.VideoDescriptor{
		ID:      entry.ID,
		Title:   entry.Title,
		Channel: entry.Channel,
		Tags:    entry.Tags,
	}
	if entry.Duration != nil {
		desc.DurationS = entry.Duration
	}
	desc.ViewCount = entry.ViewCount
	if t, ok := parseUploadDate(entry.UploadDate); ok {
		desc.PublishTime = &t
	}
	return desc
}

func parseUploadDate(raw string) (time.Time, bool) {
	if len(raw) != 8 {
		return time.Time{}, false
	}
	year, err1 := strconv.Atoi(raw[0:4])
	month, err2 := strconv.Atoi(raw[4:6])
	day, err3 := strconv.Atoi(raw[6:8])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// videoIDFromURL extracts an 11-character YouTube video id from a watch
// URL, a youtu.be short link, or a bare id, mirroring
// ingest_youtube.py's _list_from_urls regex.
func videoIDFromURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if idx := strings.Index(raw, "v="); idx != -1 {
		rest := raw[idx+2:]
		if end := strings.IndexAny(rest, "&?"); end != -1 {
			rest = rest[:end]
		}
		if len(rest) == 11 {
			return rest, true
		}
	}
	if idx := strings.Index(raw, "youtu.be/"); idx != -1 {
		rest := raw[idx+len("youtu.be/"):]
		if end := strings.IndexAny(rest, "&?"); end != -1 {
			rest = rest[:end]
		}
		if len(rest) == 11 {
			return rest, true
		}
	}
	if len(raw) == 11 && !strings.ContainsAny(raw, "/:?") {
		return raw, true
	}
	return "", false
}

// NewURLLister resolves a fixed set of video URLs/ids to full descriptors
// by asking yt-dlp for each one's metadata individually, used by
// --from-url.
func NewURLLister(binary string, urls []string) VideoLister {
	if binary == "" {
		binary = "yt-dlp"
	}
	return FuncLister(func(ctx context.Context) ([]domain.VideoDescriptor, error) {
		videos := make([]domain.VideoDescriptor, 0, len(urls))
		for _, raw := range urls {
			id, ok := videoIDFromURL(raw)
			if !ok {
				continue
			}
			out, err := exec.CommandContext(ctx, binary, "--dump-json", "--no-warnings", //nolint:gosec
				"https://www.youtube.com/watch?v="+id).Output()
			if err != nil {
				videos = append(videos, domain.VideoDescriptor{ID: id, Title: "Video " + id})
				continue
			}
			var entry ytdlpFlatEntry
			if err := json.Unmarshal(out, &entry); err != nil {
				videos = append(videos, domain.VideoDescriptor{ID: id, Title: "Video " + id})
				continue
			}
			entry.ID = id
			videos = append(videos, ytdlpEntryToDescriptor(entry))
		}
		return videos, nil
	})
}
