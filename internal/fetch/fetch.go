// Package fetch downloads raw inputs from upstream APIs and data portals
// into the raw object store, stamping each download with the
// <name>_<yyyymmddhhmmss>.<ext> naming scheme the classifier expects.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"lakeload/internal/config"
	"lakeload/internal/objectstore"
)

// AttemptLog is one download attempt, written as a JSONL line by cmd/fetch.
type AttemptLog struct {
	Timestamp  string `json:"ts"`
	Source     string `json:"source"`
	URL        string `json:"url"`
	Attempt    int    `json:"attempt"`
	StatusCode int    `json:"http_code"`
	DurationMs int64  `json:"duration_ms"`
	SizeBytes  int64  `json:"size_bytes"`
	Key        string `json:"key,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Options configures a Client.
type Options struct {
	// Timeout bounds each HTTP request. Defaults to 60s.
	Timeout time.Duration

	// MaxAttempts is the per-source retry budget. Defaults to 3.
	MaxAttempts int

	// UserAgent is sent on every request when non-empty.
	UserAgent string

	// Unexported test seams.
	now   func() time.Time
	sleep func(d time.Duration)
}

// Client downloads sources into a raw store.
type Client struct {
	http  *http.Client
	store objectstore.Store

	maxAttempts int
	userAgent   string

	now   func() time.Time
	sleep func(d time.Duration)
}

// NewClient builds a fetch client writing into store.
func NewClient(store objectstore.Store, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	sleepFn := opts.sleep
	if sleepFn == nil {
		sleepFn = time.Sleep
	}

	return &Client{
		http:        &http.Client{Timeout: timeout},
		store:       store,
		maxAttempts: maxAttempts,
		userAgent:   opts.UserAgent,
		now:         nowFn,
		sleep:       sleepFn,
	}
}

// Fetch downloads one source and stores it under its stamped key. It
// returns the key on success along with the attempt log; on failure the key
// is empty and the log shows what happened.
func (c *Client) Fetch(ctx context.Context, src config.Source) (string, []AttemptLog, error) {
	if src.URL == "" {
		return "", nil, fmt.Errorf("fetch: source %q has no url", src.Name)
	}

	var logs []AttemptLog
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			// Linear backoff; these are low-volume public APIs.
			c.sleep(time.Duration(attempt-1) * 2 * time.Second)
		}

		key, rec, err := c.doAttempt(ctx, src, attempt)
		logs = append(logs, rec)
		if err == nil {
			return key, logs, nil
		}
		lastErr = err

		// 4xx other than 429 will not improve with retries.
		if rec.StatusCode >= 400 && rec.StatusCode < 500 && rec.StatusCode != http.StatusTooManyRequests {
			break
		}
	}
	return "", logs, fmt.Errorf("fetch %s: %w", src.Name, lastErr)
}

func (c *Client) doAttempt(ctx context.Context, src config.Source, attempt int) (string, AttemptLog, error) {
	start := c.now()
	rec := AttemptLog{
		Timestamp: start.UTC().Format(time.RFC3339),
		Source:    src.Name,
		URL:       src.URL,
		Attempt:   attempt,
		SizeBytes: -1,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		rec.DurationMs = time.Since(start).Milliseconds()
		rec.Error = err.Error()
		return "", rec, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		rec.DurationMs = time.Since(start).Milliseconds()
		rec.Error = err.Error()
		return "", rec, err
	}
	defer resp.Body.Close()
	rec.StatusCode = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		n, _ := io.Copy(io.Discard, resp.Body)
		rec.SizeBytes = n
		rec.DurationMs = time.Since(start).Milliseconds()
		err := fmt.Errorf("http %d from %s", resp.StatusCode, src.URL)
		rec.Error = err.Error()
		return "", rec, err
	}

	key := StampedKey(src.Name, extensionFor(resp.Header.Get("Content-Type"), src.URL), start)
	counting := &countingReader{r: resp.Body}
	if err := c.store.Put(ctx, key, counting); err != nil {
		rec.SizeBytes = counting.n
		rec.DurationMs = time.Since(start).Milliseconds()
		rec.Error = err.Error()
		return "", rec, err
	}

	rec.SizeBytes = counting.n
	rec.DurationMs = time.Since(start).Milliseconds()
	rec.Key = key
	return key, rec, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// StampedKey builds the download key: <name>_<yyyymmddhhmmss>.<ext>. The
// timestamp suffix is what later stages strip when deriving table names, so
// repeated downloads of the same source converge on one table.
func StampedKey(name, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s%s", name, t.UTC().Format("20060102150405"), ext)
}

// extensionFor picks a file extension from the response content type,
// falling back to the URL path, then to .bin.
func extensionFor(contentType, rawURL string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err == nil {
		switch mt {
		case "application/json", "application/geo+json":
			return ".json"
		case "text/csv", "application/csv":
			return ".csv"
		case "application/x-ndjson", "application/jsonlines":
			return ".json"
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext := path.Ext(u.Path); ext != "" {
			return ext
		}
	}
	return ".bin"
}

// DiscoverHrefs fetches an HTML portal page and returns the absolute URLs
// of links matching selector (e.g. "a[href$='.csv']"). Data portals that
// publish static catalog files list them as anchors; this keeps the source
// config at one portal URL instead of a hand-maintained file list.
func (c *Client) DiscoverHrefs(ctx context.Context, pageURL, selector string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d from %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse portal page %s: %w", pageURL, err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	var out []string
	seen := map[string]bool{}
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref).String()
		if !seen[abs] {
			seen[abs] = true
			out = append(out, abs)
		}
	})
	return out, nil
}
