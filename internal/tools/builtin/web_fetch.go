package builtin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"toolrt/internal/approval"
	toolerrors "toolrt/internal/errors"
	"toolrt/internal/tools/builtin/browser"
)

const (
	webFetchCacheTTL        = 15 * time.Minute
	webFetchCacheMaxEntries = 128
	webFetchDefaultMaxBytes = 10 << 20 // 10MB, per spec's "size cap (default 10 MB)"
	webFetchDefaultTimeout  = 20 * time.Second
	webFetchDefaultRPM      = 60
)

// webFetchRetryConfig governs retries of the outbound GET itself: a GET is
// safely idempotent, so a dropped connection or a transient 5xx status
// (500, 502, 503, 504) gets up to two retries before the fetch is
// reported as failed.
var webFetchRetryConfig = toolerrors.RetryConfig{
	MaxAttempts:  2,
	BaseDelay:    250 * time.Millisecond,
	MaxDelay:     2 * time.Second,
	JitterFactor: 0.25,
}

// blockedFetchContentTypes guards against swallowing an executable
// payload into the planner's context: the response is rejected after
// the fetch once its content-type is known, before any bytes are
// handed back as "text".
var blockedFetchContentTypes = []string{
	"application/octet-stream",
	"application/x-executable",
	"application/x-elf",
	"application/x-mach-binary",
	"application/x-msdownload",
	"application/vnd.microsoft.portable-executable",
	"application/x-sh",
	"application/x-dosexec",
}

// webFetchTool downloads a page, reduces it to readable text with
// goquery, and returns it for the planner to reason over against a
// caller-supplied prompt. Every fetch is approval-gated (§4.7: "All
// fetches are approval-gated"); only check_url-style HEAD probes would
// be exempt, and this tool never issues those.
type webFetchTool struct {
	approver       Approver
	client         *http.Client
	cache          *fetchCache
	limiter        *rate.Limiter
	allowedDomains []string
	maxBodyBytes   int64
}

// CreateWebFetchTool builds the web_fetch builtin tool. allowedDomains,
// when non-empty, additionally requires the target host to exact- or
// subdomain-match one of its entries (§4.7's "optional allowed-domain
// list"). requestsPerMinute <= 0 falls back to a default of 60.
func CreateWebFetchTool(approver Approver, allowedDomains []string, requestsPerMinute int) *webFetchTool {
	if requestsPerMinute <= 0 {
		requestsPerMinute = webFetchDefaultRPM
	}
	return &webFetchTool{
		approver:       approver,
		client:         &http.Client{Timeout: webFetchDefaultTimeout},
		cache:          newFetchCache(webFetchCacheTTL, webFetchCacheMaxEntries),
		limiter:        rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 5),
		allowedDomains: allowedDomains,
		maxBodyBytes:   webFetchDefaultMaxBytes,
	}
}

func (t *webFetchTool) Name() string { return "web_fetch" }

func (t *webFetchTool) Description() string {
	return "Fetches a web page and returns its readable text content, together with " +
		"the prompt to answer about it. Requires approval for every fetch. Results are cached " +
		"briefly to avoid refetching the same url."
}

func (t *webFetchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The http(s) URL to fetch",
			},
			"prompt": map[string]interface{}{
				"type":        "string",
				"description": "What to look for or answer from the fetched page",
			},
		},
		"required": []string{"url", "prompt"},
	}
}

func (t *webFetchTool) Validate(args map[string]interface{}) error {
	rawURL, ok := args["url"].(string)
	if !ok || strings.TrimSpace(rawURL) == "" {
		return fmt.Errorf("url is required")
	}
	prompt, ok := args["prompt"].(string)
	if !ok || strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("prompt is required")
	}
	if err := browser.ValidateURL(rawURL); err != nil {
		return fmt.Errorf("url is not reachable: %w", err)
	}
	if !t.hostAllowed(t.getHost(rawURL)) {
		return fmt.Errorf("url host %q is not in the configured allowed-domain list", t.getHost(rawURL))
	}
	return nil
}

// hostAllowed reports whether host passes the optional allowed-domain
// list: an empty list allows every (non-blocked) host, otherwise host
// must exactly match or be a subdomain of one of the configured
// entries.
func (t *webFetchTool) hostAllowed(host string) bool {
	if len(t.allowedDomains) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, domain := range t.allowedDomains {
		domain = strings.ToLower(domain)
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func (t *webFetchTool) getCacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:])
}

func (t *webFetchTool) getHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return parsed.Hostname()
}

func (t *webFetchTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	if err := t.Validate(args); err != nil {
		return nil, err
	}
	rawURL := args["url"].(string)
	prompt := args["prompt"].(string)

	if !t.approve(ctx, rawURL) {
		return &Result{
			Content: fmt.Sprintf("denied: fetching %s requires approval", rawURL),
			Data:    map[string]interface{}{"approved": false},
		}, nil
	}

	key := t.getCacheKey(rawURL)
	if cached := t.cache.get(key); cached != nil {
		return &Result{
			Content: cached.content,
			Data: map[string]interface{}{
				"url":    rawURL,
				"prompt": prompt,
				"cached": true,
			},
		}, nil
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("web_fetch: rate limit wait: %w", err)
	}

	resp, err := toolerrors.RetryWithResult(ctx, webFetchRetryConfig, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, toolerrors.NewPermanentError(err, "could not build the fetch request")
		}
		req.Header.Set("User-Agent", "toolrt-web-fetch/1.0")

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			return nil, fmt.Errorf("web_fetch: %s returned status %d", rawURL, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("web_fetch: request failed: %s", toolerrors.FormatForPlanner(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("web_fetch: %s returned status %d", rawURL, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if isBlockedFetchContentType(contentType) {
		return nil, fmt.Errorf("web_fetch: %s has blocked content-type %q", rawURL, contentType)
	}

	maxBytes := t.maxBodyBytes
	if maxBytes <= 0 {
		maxBytes = webFetchDefaultMaxBytes
	}
	limited := io.LimitReader(resp.Body, maxBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("web_fetch: read response: %w", err)
	}
	truncated := int64(len(body)) > maxBytes
	if truncated {
		body = body[:maxBytes]
	}

	text, err := htmlToText(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("web_fetch: parse response: %w", err)
	}

	t.cache.put(key, &cacheEntry{content: text, timestamp: time.Now(), url: rawURL})

	return &Result{
		Content: text,
		Data: map[string]interface{}{
			"url":       rawURL,
			"prompt":    prompt,
			"host":      t.getHost(rawURL),
			"cached":    false,
			"truncated": truncated,
		},
	}, nil
}

// approve constructs a NetworkRequest Action (§8: "at least one Action
// with risk ≥ Medium must be constructed before the side-effect call
// site") and adjudicates it exactly like bash.go does for shell
// commands. A nil approver fails closed.
func (t *webFetchTool) approve(ctx context.Context, rawURL string) bool {
	if t.approver == nil {
		return false
	}
	action := approval.NewAction(approval.NetworkRequest, approval.RiskMedium, "web_fetch", rawURL)
	decision, err := t.approver.Request(ctx, action)
	if err != nil {
		return false
	}
	return decision == approval.Approved || decision == approval.ApprovedForSession
}

func isBlockedFetchContentType(contentType string) bool {
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if mediaType == "" {
		return false
	}
	for _, blocked := range blockedFetchContentTypes {
		if mediaType == blocked {
			return true
		}
	}
	return false
}

// htmlToText strips scripts/styles and collapses the remaining document
// to its readable text.
func htmlToText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()
	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	lines := strings.Split(text, "\n")
	var out []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n"), nil
}
