package duckduckgo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mohammad-safakhou/ragserver/tools/websearch/models"
	"github.com/mohammad-safakhou/ragserver/utils"
)

// Search uses the keyless DuckDuckGo Instant Answer API. Coverage is
// shallower than the paid providers but it works out of the box, which is
// why it is the default.
type Search struct{}

func (s Search) Search(ctx context.Context, q string, k int) ([]models.Result, error) {
	url := fmt.Sprintf("https://api.duckduckgo.com/?q=%s&format=json&no_html=1&skip_disambig=1", utils.UrlQuery(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo search returned %s", resp.Status)
	}
	var raw struct {
		Heading       string `json:"Heading"`
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		RelatedTopics []struct {
			Text     string `json:"Text"`
			FirstURL string `json:"FirstURL"`
		} `json:"RelatedTopics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}
	var out []models.Result
	if raw.AbstractText != "" {
		out = append(out, models.Result{Title: raw.Heading, URL: raw.AbstractURL, Snippet: raw.AbstractText})
	}
	for _, t := range raw.RelatedTopics {
		if len(out) >= k {
			break
		}
		if t.Text == "" {
			continue
		}
		out = append(out, models.Result{Title: t.Text, URL: t.FirstURL, Snippet: t.Text})
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
