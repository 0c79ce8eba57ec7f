package clock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Remote keeps an offset against a time API and applies it to the local
// monotonic clock. Until the first successful sync, and whenever a refresh
// fails, the last known offset (initially zero) is used.
type Remote struct {
	url        string
	loc        *time.Location
	httpClient *http.Client
	refresh    time.Duration

	mu       sync.RWMutex
	offset   time.Duration
	syncedAt time.Time
}

type timeAPIResponse struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

func NewRemote(url string, loc *time.Location, refresh time.Duration) *Remote {
	if loc == nil {
		loc = time.UTC
	}
	return &Remote{
		url:        url,
		loc:        loc,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		refresh:    refresh,
	}
}

func (r *Remote) Now() time.Time {
	r.mu.RLock()
	offset := r.offset
	r.mu.RUnlock()
	return time.Now().Add(offset).In(r.loc)
}

func (r *Remote) Today() Date { return DateOf(r.Now()) }

// Offset returns the currently applied correction and when it was measured.
func (r *Remote) Offset() (time.Duration, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.offset, r.syncedAt
}

// Sync fetches the remote time once and updates the offset.
func (r *Remote) Sync(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build time request: %w", err)
	}

	sent := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch remote time: %w", err)
	}
	defer resp.Body.Close()
	received := time.Now()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("time endpoint returned status %d", resp.StatusCode)
	}

	var body timeAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode remote time: %w", err)
	}

	remote, err := time.ParseInLocation("2006-01-02T15:04:05", body.DateTime, r.loc)
	if err != nil {
		return fmt.Errorf("failed to parse remote time %q: %w", body.DateTime, err)
	}

	// Assume the server stamped the response halfway through the round trip.
	midpoint := sent.Add(received.Sub(sent) / 2)

	r.mu.Lock()
	r.offset = remote.Sub(midpoint)
	r.syncedAt = received
	r.mu.Unlock()
	return nil
}

// Start refreshes the offset every refresh interval until done is closed.
func (r *Remote) Start(done <-chan struct{}) {
	if r.refresh <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(r.refresh)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := r.Sync(ctx); err != nil {
					slog.Warn("remote clock refresh failed, keeping last offset", "error", err)
				}
				cancel()
			case <-done:
				return
			}
		}
	}()
}
