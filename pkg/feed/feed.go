// Package feed watches the Federal Reserve press release feed for FOMC
// statements.
package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/mail"
	"sort"
	"strings"
	"time"

	cometlog "github.com/cometbft/cometbft/libs/log"
)

const (
	DefaultURL          = "https://www.federalreserve.gov/feeds/press_all.xml"
	DefaultPollInterval = time.Minute

	maxFeedBytes = 8 << 20
)

// DefaultKeywords select FOMC statements among all press releases.
var DefaultKeywords = []string{"FOMC", "statement"}

type Item struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
}

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

// Parse decodes an RSS 2.0 document. Items without a parseable pubDate keep
// a zero Published time.
func Parse(r io.Reader) ([]Item, error) {
	var doc rssDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode rss: %w", err)
	}
	items := make([]Item, 0, len(doc.Channel.Items))
	for _, it := range doc.Channel.Items {
		item := Item{
			Title: strings.TrimSpace(it.Title),
			Link:  strings.TrimSpace(it.Link),
		}
		if t, err := mail.ParseDate(strings.TrimSpace(it.PubDate)); err == nil {
			item.Published = t.UTC()
		}
		items = append(items, item)
	}
	return items, nil
}

// Filter keeps items whose title contains every keyword, ignoring case.
func Filter(items []Item, keywords []string) []Item {
	var out []Item
	for _, item := range items {
		title := strings.ToLower(item.Title)
		match := true
		for _, kw := range keywords {
			if !strings.Contains(title, strings.ToLower(kw)) {
				match = false
				break
			}
		}
		if match {
			out = append(out, item)
		}
	}
	return out
}

// FindAfter returns the most recent dated item published at or after target.
func FindAfter(items []Item, target time.Time) (Item, bool) {
	dated := make([]Item, 0, len(items))
	for _, item := range items {
		if !item.Published.IsZero() {
			dated = append(dated, item)
		}
	}
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].Published.After(dated[j].Published) })
	for _, item := range dated {
		if !item.Published.Before(target) {
			return item, true
		}
	}
	return Item{}, false
}

type Watcher struct {
	logger   cometlog.Logger
	client   *http.Client
	url      string
	keywords []string
	interval time.Duration
}

// NewWatcher returns a watcher polling url every interval. Empty arguments
// take the package defaults.
func NewWatcher(logger cometlog.Logger, url string, keywords []string, interval time.Duration) *Watcher {
	if url == "" {
		url = DefaultURL
	}
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Watcher{
		logger:   logger,
		client:   &http.Client{Timeout: 10 * time.Second},
		url:      url,
		keywords: keywords,
		interval: interval,
	}
}

// Fetch downloads and parses the feed.
func (w *Watcher) Fetch(ctx context.Context) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return nil, err
	}
	res, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", w.url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", w.url, res.StatusCode)
	}
	return Parse(io.LimitReader(res.Body, maxFeedBytes))
}

// Watch polls until a matching item published at or after target appears,
// or ctx is done.
func (w *Watcher) Watch(ctx context.Context, target time.Time) (Item, error) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		items, err := w.Fetch(ctx)
		if err != nil {
			w.logger.Error("Failed to fetch feed", "url", w.url, "error", err)
		} else if item, ok := FindAfter(Filter(items, w.keywords), target); ok {
			w.logger.Info("Found statement", "title", item.Title, "link", item.Link, "published", item.Published)
			return item, nil
		} else {
			w.logger.Debug("No statement yet", "items", len(items), "target", target)
		}

		select {
		case <-ctx.Done():
			return Item{}, ctx.Err()
		case <-ticker.C:
		}
	}
}
