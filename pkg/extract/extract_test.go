package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	cometlog "github.com/cometbft/cometbft/libs/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cutStatement = "Recent indicators suggest that economic activity has continued to expand at a solid pace. " +
		"In light of the progress on inflation and the balance of risks, the Committee decided to lower the " +
		"target range for the federal funds rate by 1/2 percentage point to 4-3/4 to 5 percent."
	holdStatement = "The Committee decided to maintain the target range for the federal funds rate at 5-1/4 to " +
		"5-1/2 percent. In considering any adjustments to the target range, the Committee will raise its " +
		"assessment by 25 basis points."
)

func TestKeywordExtractor(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int64
		err  error
	}{
		{"fraction cut", cutStatement, -50, nil},
		{"hold before later movement words", holdStatement, 0, nil},
		{"holdings are not a hold", "The Committee will continue reducing its holdings of Treasury securities " +
			"while it considers the target range. The Committee decided to lower the target range by 1/4 " +
			"percentage point.", -25, nil},
		{"held", "The Committee held the target range steady.", 0, nil},
		{"basis points hike", "The Fed will raise rates by 75 basis points.", 75, nil},
		{"percent sign", "Officials voted to cut the rate by 0.25% today.", -25, nil},
		{"decimal percentage point", "The bank decided to increase rates by 0.5 percentage points.", 50, nil},
		{"case insensitive", "LOWERED BY 25 BASIS POINTS", -25, nil},
		{"nothing", "The weather was pleasant in Washington.", 0, ErrNoDecision},
		{"empty", "", 0, ErrNoDecision},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := KeywordExtractor{}.Extract(context.Background(), tc.text)
			if tc.err != nil {
				require.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestArticleText(t *testing.T) {
	page := `<html><body>
<p>Navigation junk</p>
<div id="article"><h3>Statement</h3><p>The Committee decided to <b>lower</b> the target range</p><p> by 25 basis points.</p></div>
</body></html>`
	text, err := ArticleText(strings.NewReader(page))
	require.NoError(t, err)
	require.Equal(t, "The Committee decided to lower the target range by 25 basis points.", text)

	text, err = ArticleText(strings.NewReader(`<p>one</p><div><p>two</p></div>`))
	require.NoError(t, err)
	require.Equal(t, "one two", text)
}

func TestResolverFetchesURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<div id="article"><p>` + cutStatement + `</p></div>`))
	}))
	defer srv.Close()

	r := NewResolver(cometlog.NewNopLogger(), NewArticleFetcher(time.Second), KeywordExtractor{})
	got, err := r.Extract(context.Background(), srv.URL+"/statement.htm")
	require.NoError(t, err)
	require.Equal(t, int64(-50), got)

	got, err = r.Extract(context.Background(), "  "+holdStatement)
	require.NoError(t, err)
	require.Equal(t, int64(0), got)
}

func TestResolverFallsBackToRawInput(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r := NewResolver(cometlog.NewNopLogger(), NewArticleFetcher(time.Second), KeywordExtractor{})
	_, err := r.Extract(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrNoDecision)
}

func TestParseModelDecision(t *testing.T) {
	got, err := parseModelDecision("```json\n{\"direction\": \"decrease\", \"basis_points\": 50}\n```")
	require.NoError(t, err)
	require.Equal(t, int64(-50), got)

	got, err = parseModelDecision(`{"direction": "maintain", "basis_points": 25}`)
	require.NoError(t, err)
	require.Equal(t, int64(0), got)

	got, err = parseModelDecision(`{"direction": "increase", "basis_points": 25}`)
	require.NoError(t, err)
	require.Equal(t, int64(25), got)

	for _, bad := range []string{"no json here", `{"direction": "sideways", "basis_points": 1}`, `{"direction": "increase"}`, `{broken`} {
		_, err := parseModelDecision(bad)
		require.ErrorIs(t, err, ErrNoDecision, bad)
	}
}

func TestOllamaExtractor(t *testing.T) {
	replies := []string{"Understood.", "Yes", "The Committee decided to lower the target range by 1/4 percentage point.",
		`{"direction": "decrease", "basis_points": 25}`}
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		n := int(calls.Add(1))
		assert.Len(t, req.Messages, 2*n-1)
		assert.Equal(t, DefaultOllamaModel, req.Model)
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: replies[n-1]}})
	}))
	defer srv.Close()

	o := NewOllamaExtractor(cometlog.NewNopLogger(), srv.URL, "", time.Second)
	got, err := o.Extract(context.Background(), cutStatement)
	require.NoError(t, err)
	require.Equal(t, int64(-25), got)
	require.Equal(t, int32(4), calls.Load())
}

func TestOllamaExtractorNotADecision(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply := "Understood."
		if calls.Add(1) == 2 {
			reply = "No"
		}
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: reply}})
	}))
	defer srv.Close()

	o := NewOllamaExtractor(cometlog.NewNopLogger(), srv.URL, "gemma3:4b", time.Second)
	_, err := o.Extract(context.Background(), "Minutes of the meeting were released.")
	require.ErrorIs(t, err, ErrNoDecision)
	require.Equal(t, int32(2), calls.Load())
}
