// Package fetcher retrieves and parses remote RSS/Atom documents.
package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"feed-hub/domain"
)

// maxBodyBytes caps how much of a feed document is read.
const maxBodyBytes = 10 << 20

// Fetcher downloads feed documents over HTTP and parses them into
// feed-level metadata plus a normalized entry list.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a Fetcher whose requests are bounded by timeout.
func New(timeout time.Duration, logger *slog.Logger) *Fetcher {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: timeout,
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: logger,
	}
}

// Fetch GETs the feed URL (following redirects) and parses the response.
// A document that fails the strict parse is given one degraded reparse over
// a sanitized copy; partial recovery is preferred over dropping the feed.
func (f *Fetcher) Fetch(ctx context.Context, feedURL string) (*domain.FeedMetadata, []domain.Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, nil, &domain.FetchError{URL: feedURL, Err: err}
	}
	req.Header.Set("User-Agent", "feed-hub/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, &domain.FetchError{URL: feedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &domain.FetchError{URL: feedURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, &domain.FetchError{URL: feedURL, Err: fmt.Errorf("read body: %w", err)}
	}

	feed, err := f.parse(ctx, feedURL, body)
	if err != nil {
		return nil, nil, err
	}

	meta := &domain.FeedMetadata{
		Title:       feed.Title,
		Description: feed.Description,
		SiteURL:     feed.Link,
	}
	if feed.Image != nil {
		meta.ImageURL = feed.Image.URL
	}

	return meta, convertItems(feed.Items), nil
}

func (f *Fetcher) parse(ctx context.Context, feedURL string, body []byte) (*gofeed.Feed, error) {
	parser := gofeed.NewParser()

	feed, err := parser.ParseString(string(body))
	if err == nil {
		return feed, nil
	}

	// Degraded pass: strip characters that are invalid in XML and retry.
	feed, retryErr := parser.ParseString(sanitizeXML(string(body)))
	if retryErr != nil {
		return nil, &domain.ParseError{URL: feedURL, Err: err}
	}

	f.logger.WarnContext(ctx, "degraded feed parse, using recovered entries",
		"url", feedURL, "entries", len(feed.Items), "error", err)
	return feed, nil
}

// sanitizeXML removes control characters the XML 1.0 charset forbids.
func sanitizeXML(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0x9 || r == 0xA || r == 0xD || (r >= 0x20 && r != 0xFFFE && r != 0xFFFF) {
			return r
		}
		return -1
	}, s)
}

func convertItems(items []*gofeed.Item) []domain.Entry {
	entries := make([]domain.Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entry := domain.Entry{
			GUID:        item.GUID,
			Title:       item.Title,
			Link:        item.Link,
			Summary:     item.Description,
			Body:        item.Content,
			ImageURL:    ExtractImageURL(item),
			PublishedAt: item.PublishedParsed,
		}
		if item.Author != nil {
			entry.Author = item.Author.Name
		}
		entries = append(entries, entry)
	}
	return entries
}
