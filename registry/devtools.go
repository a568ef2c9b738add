package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DevTools discovers targets from a browser's HTTP endpoint (GET /json/list),
// e.g. Chrome started with --remote-debugging-port=9222.
//
// The name passed to Discover filters by target type ("page", "service_worker", ...);
// an empty name means "page".
type DevTools struct {
	BaseURL string // e.g. http://127.0.0.1:9222
	Client  *http.Client
}

// NewDevTools returns a discoverer for host:port.
func NewDevTools(host string, port int) *DevTools {
	return &DevTools{
		BaseURL: fmt.Sprintf("http://%s:%d", host, port),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DevTools) Discover(ctx context.Context, name string) ([]Target, error) {
	if name == "" {
		name = "page"
	}
	all, err := d.list(ctx)
	if err != nil {
		return nil, err
	}

	targets := make([]Target, 0, len(all))
	for _, t := range all {
		// Targets already attached to another debugger carry no websocket URL.
		if t.Type == name && t.WebSocketURL != "" {
			targets = append(targets, t)
		}
	}
	return targets, nil
}

func (d *DevTools) list(ctx context.Context) ([]Target, error) {
	endpoint, err := url.JoinPath(d.BaseURL, "json", "list")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list targets: unexpected status %s", resp.Status)
	}

	var targets []Target
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, fmt.Errorf("decode target list: %w", err)
	}
	return targets, nil
}
