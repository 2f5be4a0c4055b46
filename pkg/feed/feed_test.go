package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	cometlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="utf-8"?>
<rss version="2.0">
  <channel>
    <title>FRB: Press Release - All</title>
    <item>
      <title>Federal Reserve issues FOMC statement</title>
      <link>https://www.federalreserve.gov/newsevents/pressreleases/monetary20250917a.htm</link>
      <pubDate>Wed, 17 Sep 2025 18:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Federal Reserve Board announces approval of application</title>
      <link>https://www.federalreserve.gov/newsevents/pressreleases/orders20250916a.htm</link>
      <pubDate>Tue, 16 Sep 2025 20:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Federal Reserve issues FOMC statement</title>
      <link>https://www.federalreserve.gov/newsevents/pressreleases/monetary20250730a.htm</link>
      <pubDate>Wed, 30 Jul 2025 18:00:00 GMT</pubDate>
    </item>
    <item>
      <title>FOMC statement without a date</title>
      <link>https://example.com/undated</link>
      <pubDate>soon</pubDate>
    </item>
  </channel>
</rss>`

func TestParseAndFilter(t *testing.T) {
	items, err := Parse(strings.NewReader(sampleFeed))
	require.NoError(t, err)
	require.Len(t, items, 4)
	require.Equal(t, time.Date(2025, 9, 17, 18, 0, 0, 0, time.UTC), items[0].Published)
	require.True(t, items[3].Published.IsZero())

	statements := Filter(items, []string{"fomc", "STATEMENT"})
	require.Len(t, statements, 3)
	require.Empty(t, Filter(items, []string{"FOMC", "minutes"}))

	_, err = Parse(strings.NewReader("<rss><channel>"))
	require.Error(t, err)
}

func TestFindAfter(t *testing.T) {
	items, err := Parse(strings.NewReader(sampleFeed))
	require.NoError(t, err)
	statements := Filter(items, DefaultKeywords)

	ny := time.FixedZone("EDT", -4*60*60)
	item, ok := FindAfter(statements, time.Date(2025, 9, 17, 14, 0, 0, 0, ny))
	require.True(t, ok)
	require.Contains(t, item.Link, "monetary20250917a")

	item, ok = FindAfter(statements, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	require.Contains(t, item.Link, "monetary20250917a")

	_, ok = FindAfter(statements, time.Date(2025, 10, 29, 18, 0, 0, 0, time.UTC))
	require.False(t, ok)
}

func TestWatch(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch polls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			fmt.Fprint(w, `<rss><channel></channel></rss>`)
		default:
			fmt.Fprint(w, sampleFeed)
		}
	}))
	defer srv.Close()

	w := NewWatcher(cometlog.NewNopLogger(), srv.URL, nil, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	item, err := w.Watch(ctx, time.Date(2025, 9, 17, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "Federal Reserve issues FOMC statement", item.Title)
	require.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestWatchCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleFeed)
	}))
	defer srv.Close()

	w := NewWatcher(cometlog.NewNopLogger(), srv.URL, nil, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := w.Watch(ctx, time.Now().Add(time.Hour))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
