// Package wikiapi fetches plain-text article extracts from the MediaWiki
// API.
package wikiapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var articleURLRe = regexp.MustCompile(`^https?://([a-z]{2,3})\.(?:m\.)?wikipedia\.org/wiki/(.+)$`)

// ErrNotArticle is returned for URLs that do not point at a Wikipedia
// article page.
var ErrNotArticle = errors.New("wikiapi: not a wikipedia article url")

type Client struct {
	client     *http.Client
	userAgent  string
	maxRetries uint64
	// endpoint overrides the per-language API URL; used by tests.
	endpoint string
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(w *Client) {
		if w == nil || c == nil {
			return
		}
		w.client = c
	}
}

func WithUserAgent(ua string) Option {
	return func(w *Client) {
		if w == nil {
			return
		}
		if ua = strings.TrimSpace(ua); ua != "" {
			w.userAgent = ua
		}
	}
}

func WithMaxRetries(n uint64) Option {
	return func(w *Client) {
		if w == nil {
			return
		}
		w.maxRetries = n
	}
}

// WithEndpoint pins every request to one API endpoint instead of deriving
// it from the article URL's language subdomain.
func WithEndpoint(endpoint string) Option {
	return func(w *Client) {
		if w == nil {
			return
		}
		w.endpoint = strings.TrimSpace(endpoint)
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		client:     &http.Client{Timeout: 30 * time.Second},
		userAgent:  "wikifacts-bench/1.0",
		maxRetries: 4,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// ParseArticleURL splits an article URL into its language code and
// percent-decoded title.
func ParseArticleURL(articleURL string) (lang, title string, err error) {
	decoded := articleURL
	if d, uerr := url.PathUnescape(articleURL); uerr == nil {
		decoded = d
	}

	m := articleURLRe.FindStringSubmatch(decoded)
	if m == nil {
		return "", "", fmt.Errorf("%w: %q", ErrNotArticle, articleURL)
	}
	title = strings.ReplaceAll(m[2], "_", " ")
	return m[1], title, nil
}

// Extract returns the plain-text extract for the article behind articleURL.
// Transient failures (429, 5xx, transport errors) are retried with
// exponential backoff; a missing page yields an empty string.
func (c *Client) Extract(ctx context.Context, articleURL string) (string, error) {
	if c == nil {
		return "", errors.New("wikiapi: nil client")
	}
	if ctx == nil {
		return "", errors.New("wikiapi: nil context")
	}

	lang, title, err := ParseArticleURL(articleURL)
	if err != nil {
		return "", err
	}

	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", lang)
	}

	q := url.Values{}
	q.Set("action", "query")
	q.Set("prop", "extracts")
	q.Set("explaintext", "1")
	q.Set("redirects", "1")
	q.Set("format", "json")
	q.Set("titles", title)
	reqURL := endpoint + "?" + q.Encode()

	var extract string
	op := func() error {
		var opErr error
		extract, opErr = c.fetchExtract(ctx, reqURL)
		return opErr
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries),
		ctx,
	)
	if err := backoff.Retry(op, bo); err != nil {
		return "", err
	}
	return extract, nil
}

type extractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
			Missing *any   `json:"missing,omitempty"`
		} `json:"pages"`
	} `json:"query"`
}

func (c *Client) fetchExtract(ctx context.Context, reqURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("wikiapi: build request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("wikiapi: request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fmt.Errorf("wikiapi: retryable status %s", resp.Status)
	default:
		return "", backoff.Permanent(fmt.Errorf("wikiapi: status %s", resp.Status))
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", backoff.Permanent(fmt.Errorf("wikiapi: decode response: %w", err))
	}

	for _, page := range parsed.Query.Pages {
		return page.Extract, nil
	}
	return "", nil
}
