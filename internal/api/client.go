package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Client talks to the karaoke API. Timeouts bound API calls only; asset
// fetches run until their context ends.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
}

// NewClient creates a client for the API rooted at baseURL
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API base URL %q must be absolute", baseURL)
	}
	return &Client{base: u, http: &http.Client{}, timeout: timeout}, nil
}

// BaseURL returns the API root
func (c *Client) BaseURL() string { return c.base.String() }

// Resolve turns a possibly relative reference into an absolute URL
func (c *Client) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", ref, err)
	}
	return c.base.ResolveReference(u).String(), nil
}

func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	var results []SearchResult
	path := "/api/search?q=" + url.QueryEscape(query)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &results); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return results, nil
}

// ProcessTrack requests a track for playback and converts the response
func (c *Client) ProcessTrack(ctx context.Context, trackID string) (Track, error) {
	var resp ProcessTrackResponse
	req := ProcessTrackRequest{TrackID: trackID}
	if err := c.doJSON(ctx, http.MethodPost, "/api/process-track", req, &resp); err != nil {
		if resp.Status == StatusError {
			return Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, trackID)
		}
		return Track{}, fmt.Errorf("process track %s: %w", trackID, err)
	}
	t, err := resp.Track(trackID)
	if err != nil {
		return Track{}, err
	}
	if t.Stems.Instrumental, err = c.resolveOptional(t.Stems.Instrumental); err != nil {
		return Track{}, err
	}
	if t.Stems.Vocals, err = c.resolveOptional(t.Stems.Vocals); err != nil {
		return Track{}, err
	}
	return t, nil
}

// Images lists the slideshow images of a track folder
func (c *Client) Images(ctx context.Context, folder string) ([]string, error) {
	var resp ImagesResponse
	path := "/api/images?track_folder=" + url.QueryEscape(folder)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	if resp.Status != StatusSuccess {
		return nil, fmt.Errorf("list images: status %q", resp.Status)
	}
	return resp.Images, nil
}

// Fetch downloads an asset into memory
func (c *Client) Fetch(ctx context.Context, ref string) ([]byte, error) {
	body, _, err := c.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return data, nil
}

// Open starts streaming an asset. The returned size is -1 when unknown.
func (c *Client) Open(ctx context.Context, ref string) (io.ReadCloser, int64, error) {
	u, err := c.Resolve(ref)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("failed to fetch %s: HTTP %d", u, resp.StatusCode)
	}
	slog.Debug("Fetching asset", "url", u, "size", resp.ContentLength)
	return resp.Body, resp.ContentLength, nil
}

func (c *Client) resolveOptional(ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	return c.Resolve(ref)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u, err := c.Resolve(path)
	if err != nil {
		return err
	}
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	decodeErr := json.NewDecoder(resp.Body).Decode(out)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s %s: HTTP %d", method, path, resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	return nil
}
