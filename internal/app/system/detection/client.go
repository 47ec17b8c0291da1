// Package detection talks to the external detection server: it registers
// cameras, reads the detection log, and relays the annotated video stream.
package detection

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/anomalyhub/internal/domain/models"
)

// Client is an HTTP client for one detection server.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for baseURL. The http.Client has no overall
// timeout because StreamVideo holds its response open; callers bound every
// other call through ctx.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("detection %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection %s %s: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return resp, nil
}

// AddCamera posts cfg to /addCamera.
func (c *Client) AddCamera(ctx context.Context, cfg models.CameraConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode camera config: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/addCamera", bytes.NewReader(payload), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Logs fetches the detection log in server order (oldest first).
func (c *Client) Logs(ctx context.Context) ([]models.DetectionLogEntry, error) {
	resp, err := c.do(ctx, http.MethodGet, "/logs", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var entries []models.DetectionLogEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode detection logs: %w", err)
	}
	return entries, nil
}

// StreamVideo copies the /video multipart stream to w until the upstream
// ends or ctx is cancelled. Content-Type (with its boundary) is preserved
// and every chunk is flushed.
func (c *Client) StreamVideo(ctx context.Context, w http.ResponseWriter) error {
	resp, err := c.do(ctx, http.MethodGet, "/video", nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return nil // client went away
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr != nil {
			if rerr == io.EOF || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read video stream: %w", rerr)
		}
	}
}
