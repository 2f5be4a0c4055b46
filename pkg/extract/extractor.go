// Package extract turns FOMC statement text into a signed basis point change.
package extract

import (
	"context"
	"errors"
	"strings"

	cometlog "github.com/cometbft/cometbft/libs/log"
)

// ErrNoDecision is returned when the text does not announce a rate decision.
var ErrNoDecision = errors.New("no rate decision found")

// Extractor returns the basis point change announced by text: negative for a
// cut, positive for a hike, zero when rates are maintained.
type Extractor interface {
	Extract(ctx context.Context, text string) (int64, error)
}

// Resolver fetches article bodies for URL inputs before handing the text to
// an Extractor.
type Resolver struct {
	logger    cometlog.Logger
	fetcher   *ArticleFetcher
	extractor Extractor
}

func NewResolver(logger cometlog.Logger, fetcher *ArticleFetcher, extractor Extractor) *Resolver {
	return &Resolver{logger: logger, fetcher: fetcher, extractor: extractor}
}

func IsURL(input string) bool {
	s := strings.TrimSpace(input)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Extract resolves input, which is either statement text or a URL to it.
// A URL that cannot be fetched is passed to the extractor unchanged.
func (r *Resolver) Extract(ctx context.Context, input string) (int64, error) {
	text := strings.TrimSpace(input)
	if IsURL(text) && r.fetcher != nil {
		body, err := r.fetcher.Fetch(ctx, text)
		switch {
		case err != nil:
			r.logger.Error("Failed to fetch article, using input as text", "url", text, "error", err)
		case body == "":
			r.logger.Error("Article has no paragraph text, using input as text", "url", text)
		default:
			r.logger.Debug("Fetched article", "url", text, "length", len(body))
			text = body
		}
	}
	return r.extractor.Extract(ctx, text)
}
