package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/coverscope/harvest/pkg/config"
	"github.com/coverscope/harvest/pkg/logging"
)

// HybridFetcher reuses the browser session's cookies to fetch detail
// pages over plain HTTP, skipping a full browser navigation per record.
// It is strictly a fast path: any failure falls back to the browser.
type HybridFetcher struct {
	client *resty.Client
	cfg    config.Config
	log    *logging.Logger
}

// NewHybridFetcher builds an HTTP client carrying the session cookies
// exported from an authenticated browser context.
func NewHybridFetcher(cfg config.Config, cookies []*http.Cookie) *HybridFetcher {
	log, _ := logging.NewLogger("hybrid")

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetCookies(cookies).
		SetTimeout(time.Duration(cfg.NavigationTimeoutMs)*time.Millisecond).
		SetHeaders(map[string]string{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.5",
		})

	return &HybridFetcher{
		client: client,
		cfg:    cfg,
		log:    log,
	}
}

// FetchDetail fetches the detail view HTML for a record identifier.
// A redirect to the login surface means the cookies went stale; the
// caller falls back to the browser path, which re-authenticates.
func (h *HybridFetcher) FetchDetail(ctx context.Context, recordID string) (string, error) {
	path := fmt.Sprintf(h.cfg.DetailPathFormat, recordID)

	res, err := h.client.R().
		SetContext(ctx).
		Get(path)
	if err != nil {
		return "", fmt.Errorf("hybrid detail fetch failed: %w", err)
	}

	finalURL := res.RawResponse.Request.URL.String()
	if strings.Contains(finalURL, h.cfg.LoginPath) {
		return "", fmt.Errorf("hybrid session cookies expired: %w", errStaleCookies)
	}
	if res.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("hybrid detail fetch returned status %d", res.StatusCode())
	}

	return string(res.Body()), nil
}

// FetchSearch submits the advanced search form for a policy number over
// plain HTTP and returns the result listing HTML.
func (h *HybridFetcher) FetchSearch(ctx context.Context, policyNumber string) (string, error) {
	res, err := h.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{"policy_number": policyNumber}).
		Post(h.cfg.SearchPath)
	if err != nil {
		return "", fmt.Errorf("hybrid search failed: %w", err)
	}

	finalURL := res.RawResponse.Request.URL.String()
	if strings.Contains(finalURL, h.cfg.LoginPath) {
		return "", fmt.Errorf("hybrid session cookies expired: %w", errStaleCookies)
	}
	if res.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("hybrid search returned status %d", res.StatusCode())
	}

	return string(res.Body()), nil
}

// errStaleCookies distinguishes cookie expiry from transport failures.
var errStaleCookies = fmt.Errorf("stale cookies")
