package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ingestpipe/internal/domain"
)

// APIListerConfig configures the `api` source kind: listing a channel's
// uploads through the YouTube Data API v3 instead of scraping with yt-dlp,
// grounded on ingest_youtube.py's YouTubeAPILister.list_channel_videos
// (resolve channel -> uploads playlist -> paginate playlistItems ->
// batch videos.list for duration/view count). This lister performs the
// first three steps only: it makes no videos.list call, so the descriptors
// it returns carry no duration or view count.
type APIListerConfig struct {
	APIKey     string
	ChannelURL string
	HTTPClient *http.Client
}

const youtubeAPIBase = "https://www.googleapis.com/youtube/v3"

// NewAPIChannelLister returns a VideoLister backed by the YouTube Data API.
func NewAPIChannelLister(cfg APIListerConfig) VideoLister {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return FuncLister(func(ctx context.Context) ([]domain.VideoDescriptor, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("youtube api key required for api source kind")
		}
		channelID, err := resolveChannelID(ctx, cfg, cfg.ChannelURL)
		if err != nil {
			return nil, err
		}
		uploadsPlaylist, err := uploadsPlaylistID(ctx, cfg, channelID)
		if err != nil {
			return nil, err
		}
		return listPlaylistVideos(ctx, cfg, uploadsPlaylist)
	})
}

func apiGet(ctx context.Context, cfg APIListerConfig, path string, query url.Values) (map[string]any, error) {
	query.Set("key", cfg.APIKey)
	reqURL := youtubeAPIBase + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube api request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube api %s returned %d", path, resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode youtube api response: %w", err)
	}
	return out, nil
}

// resolveChannelID accepts a channel URL in @handle, /channel/UC..., or bare
// id form and returns the canonical channel id.
func resolveChannelID(ctx context.Context, cfg APIListerConfig, channelURL string) (string, error) {
	if idx := strings.Index(channelURL, "/channel/"); idx != -1 {
		rest := channelURL[idx+len("/channel/"):]
		if end := strings.IndexAny(rest, "/?"); end != -1 {
			rest = rest[:end]
		}
		return rest, nil
	}

	if strings.HasPrefix(channelURL, "UC") && !strings.ContainsAny(channelURL, "/?@") {
		return channelURL, nil
	}

	handle := channelURL
	if idx := strings.Index(handle, "@"); idx != -1 {
		handle = handle[idx:]
		if end := strings.IndexAny(handle, "/?"); end != -1 {
			handle = handle[:end]
		}
	}
	if !strings.HasPrefix(handle, "@") {
		return "", fmt.Errorf("cannot resolve channel id from %q", channelURL)
	}

	query := url.Values{"part": {"id"}, "forHandle": {handle}}
	resp, err := apiGet(ctx, cfg, "/channels", query)
	if err != nil {
		return "", err
	}
	items, _ := resp["items"].([]any)
	if len(items) == 0 {
		return "", fmt.Errorf("no channel found for handle %q", handle)
	}
	first, _ := items[0].(map[string]any)
	id, _ := first["id"].(string)
	if id == "" {
		return "", fmt.Errorf("malformed channel lookup response for %q", handle)
	}
	return id, nil
}

func uploadsPlaylistID(ctx context.Context, cfg APIListerConfig, channelID string) (string, error) {
	query := url.Values{"part": {"contentDetails"}, "id": {channelID}}
	resp, err := apiGet(ctx, cfg, "/channels", query)
	if err != nil {
		return "", err
	}
	items, _ := resp["items"].([]any)
	if len(items) == 0 {
		return "", fmt.Errorf("channel %q not found", channelID)
	}
	item, _ := items[0].(map[string]any)
	contentDetails, _ := item["contentDetails"].(map[string]any)
	relatedPlaylists, _ := contentDetails["relatedPlaylists"].(map[string]any)
	uploads, _ := relatedPlaylists["uploads"].(string)
	if uploads == "" {
		return "", fmt.Errorf("no uploads playlist for channel %q", channelID)
	}
	return uploads, nil
}

func listPlaylistVideos(ctx context.Context, cfg APIListerConfig, playlistID string) ([]domain.VideoDescriptor, error) {
	var videos []domain.VideoDescriptor
	pageToken := ""
	for {
		query := url.Values{
			"part":       {"snippet"},
			"playlistId": {playlistID},
			"maxResults": {"50"},
		}
		if pageToken != "" {
			query.Set("pageToken", pageToken)
		}
		resp, err := apiGet(ctx, cfg, "/playlistItems", query)
		if err != nil {
			return nil, err
		}
		items, _ := resp["items"].([]any)
		for _, raw := range items {
			item, _ := raw.(map[string]any)
			snippet, _ := item["snippet"].(map[string]any)
			if snippet == nil {
				continue
			}
			resourceID, _ := snippet["resourceId"].(map[string]any)
			videoID, _ := resourceID["videoId"].(string)
			if videoID == "" {
				continue
			}
			title, _ := snippet["title"].(string)
			channel, _ := snippet["channelTitle"].(string)
			desc := domain.VideoDescriptor{ID: videoID, Title: title, Channel: channel}
			if publishedAt, ok := snippet["publishedAt"].(string); ok && publishedAt != "" {
				if t, err := time.Parse(time.RFC3339, publishedAt); err == nil {
					desc.PublishTime = &t
				}
			}
			videos = append(videos, desc)
		}
		next, _ := resp["nextPageToken"].(string)
		if next == "" {
			break
		}
		pageToken = next
	}
	return videos, nil
}
