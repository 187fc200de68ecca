package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// LogEntry is one persisted element from the room's bootstrap fetch.
type LogEntry struct {
	ID      int64  `json:"id"`
	RoomID  int64  `json:"roomId"`
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

// Fetcher talks to the relay's REST surface: room resolution and the
// bootstrap log fetch.
type Fetcher struct {
	baseURL string
	client  *http.Client
}

// NewFetcher creates a fetcher against the given base URL, e.g.
// "http://localhost:8080".
func NewFetcher(baseURL string) *Fetcher {
	return &Fetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ResolveRoom maps a human-readable room name to its numeric identity.
func (f *Fetcher) ResolveRoom(ctx context.Context, slug string) (int64, error) {
	var out struct {
		RoomID int64 `json:"roomId"`
	}
	if err := f.getJSON(ctx, "/room/"+url.PathEscape(slug), &out); err != nil {
		return 0, err
	}
	return out.RoomID, nil
}

// RoomLog fetches the room's full persisted log. The relay returns it
// newest-first; callers reorder as needed.
func (f *Fetcher) RoomLog(ctx context.Context, roomID int64) ([]LogEntry, error) {
	var out struct {
		Messages []LogEntry `json:"messages"`
	}
	if err := f.getJSON(ctx, fmt.Sprintf("/chats/%d", roomID), &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (f *Fetcher) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
