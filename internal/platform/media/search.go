package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/classforge/classforge-backend/internal/platform/logger"
)

// Client is a best-effort video/image search backend. Callers are expected to
// degrade to "no media found" when a search errors; nothing downstream should
// treat a media failure as fatal.
type Client interface {
	SearchVideos(ctx context.Context, query string, maxResults int) ([]Result, error)
	SearchImages(ctx context.Context, query string, maxResults int) ([]Result, error)
}

type Result struct {
	URL         string         `json:"url"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type client struct {
	log     *logger.Logger
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("MEDIA_SEARCH_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing MEDIA_SEARCH_API_KEY")
	}
	baseURL := strings.TrimSpace(os.Getenv("MEDIA_SEARCH_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://www.googleapis.com/youtube/v3"
	}
	timeoutSec := 15
	if v := strings.TrimSpace(os.Getenv("MEDIA_SEARCH_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}
	return &client{
		log:     log.With("client", "MediaSearchClient"),
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

func (c *client) SearchVideos(ctx context.Context, query string, maxResults int) ([]Result, error) {
	return c.search(ctx, query, "video", maxResults)
}

func (c *client) SearchImages(ctx context.Context, query string, maxResults int) ([]Result, error) {
	return c.search(ctx, query, "image", maxResults)
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Thumbnails  map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *client) search(ctx context.Context, query, kind string, maxResults int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query required")
	}
	if maxResults <= 0 {
		maxResults = 3
	}

	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("q", query)
	q.Set("type", "video")
	q.Set("safeSearch", "strict")
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("key", c.apiKey)

	u := c.baseURL + "/search?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("media search http %d: %s", resp.StatusCode, string(raw))
	}

	var out searchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("media search decode: %w", err)
	}

	results := make([]Result, 0, len(out.Items))
	for _, item := range out.Items {
		r := Result{
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			Metadata: map[string]any{
				"channel": item.Snippet.ChannelTitle,
				"kind":    kind,
			},
		}
		if kind == "image" {
			if thumb, ok := item.Snippet.Thumbnails["high"]; ok {
				r.URL = thumb.URL
			} else if thumb, ok := item.Snippet.Thumbnails["default"]; ok {
				r.URL = thumb.URL
			}
		} else if item.ID.VideoID != "" {
			r.URL = "https://www.youtube.com/watch?v=" + item.ID.VideoID
		}
		if r.URL == "" {
			continue
		}
		results = append(results, r)
	}
	return results, nil
}
