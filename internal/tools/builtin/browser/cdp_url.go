// Package browser drives a Chrome DevTools Protocol session for the
// browser builtin tool: navigation, script evaluation, and form filling against
// a locally running Chrome/Chromium instance.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// versionInfo is the subset of Chrome's /json/version response this
// package cares about.
type versionInfo struct {
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

// resolveCDPURL normalizes target into a ws:// DevTools endpoint.
// target may already be a websocket URL, an http(s) URL, a bare
// "host:port", or a bare port number (assumed to be on localhost).
func resolveCDPURL(ctx context.Context, target string) (string, error) {
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		return target, nil
	}

	endpoint := target
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if _, err := strconv.Atoi(endpoint); err == nil {
			endpoint = "http://localhost:" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	endpoint = strings.TrimSuffix(endpoint, "/") + "/json/version"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("browser: build version request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("browser: query %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	var info versionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("browser: decode version response from %s: %w", endpoint, err)
	}
	if info.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("browser: %s returned no webSocketDebuggerUrl", endpoint)
	}
	return info.WebSocketDebuggerURL, nil
}
