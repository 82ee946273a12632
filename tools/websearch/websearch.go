package websearch

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/ragserver/tools/websearch/brave"
	"github.com/mohammad-safakhou/ragserver/tools/websearch/duckduckgo"
	"github.com/mohammad-safakhou/ragserver/tools/websearch/models"
	"github.com/mohammad-safakhou/ragserver/tools/websearch/serper"
)

// WebSearcher answers a free-text query with up to k results.
type WebSearcher interface {
	Search(ctx context.Context, q string, k int) ([]models.Result, error)
}

type Provider string

const (
	DuckDuckGoProvider Provider = "duckduckgo"
	BraveProvider      Provider = "brave"
	SerperProvider     Provider = "serper"
)

var ErrUnsupportedProvider = errors.New("unsupported web search provider")

// NewWebSearcher builds a provider. DuckDuckGo needs no API key and is the
// default when the provider name is empty.
func NewWebSearcher(provider Provider, apiKey string) (WebSearcher, error) {
	switch provider {
	case DuckDuckGoProvider, "":
		return duckduckgo.Search{}, nil
	case BraveProvider:
		return brave.Search{ApiKey: apiKey}, nil
	case SerperProvider:
		return serper.Search{ApiKey: apiKey}, nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
