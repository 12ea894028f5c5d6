// Package source reads the static data assets the server loads at startup.
// A location is either an http(s) URL or a local file path.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// MaxSize bounds a single asset read.
const MaxSize = 8 << 20

func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Read fetches location once. A nil client means http.DefaultClient.
func Read(ctx context.Context, client *http.Client, location string) ([]byte, error) {
	if location == "" {
		return nil, fmt.Errorf("source: empty location")
	}
	if !IsRemote(location) {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, fmt.Errorf("source: read %s: %w", location, err)
		}
		return data, nil
	}

	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("source: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: fetch %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("source: fetch %s: unexpected status %d", location, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxSize))
	if err != nil {
		return nil, fmt.Errorf("source: read body %s: %w", location, err)
	}
	return data, nil
}
