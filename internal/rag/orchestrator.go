package rag

import (
	"context"
	"fmt"
	"log"

	"github.com/mohammad-safakhou/ragserver/tools/websearch"
	"github.com/mohammad-safakhou/ragserver/tools/websearch/models"
)

// MaxSourcePreviewChars bounds the excerpt length carried back to callers.
const MaxSourcePreviewChars = 1000

// Orchestrator is the only component that calls out to retrieval and web
// search infrastructure. The document engine is mandatory; the web searcher
// is optional and its failures degrade to empty results.
type Orchestrator struct {
	engine     DocumentEngine
	web        websearch.WebSearcher
	webResults int
	logger     *log.Logger
}

func NewOrchestrator(engine DocumentEngine, web websearch.WebSearcher, webResults int, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[RETRIEVE] ", log.LstdFlags)
	}
	if webResults <= 0 {
		webResults = 3
	}
	return &Orchestrator{engine: engine, web: web, webResults: webResults, logger: logger}
}

// Retrieve dispatches the enriched query to the document engine and, when
// requested, the web provider, then normalizes both into the response shape.
func (o *Orchestrator) Retrieve(ctx context.Context, enriched string, useWeb bool) (Result, error) {
	if !o.engine.Ready() {
		return Result{}, ErrIndexNotReady
	}

	var web []models.Result
	if useWeb && o.web != nil {
		hits, err := o.web.Search(ctx, enriched, o.webResults)
		if err != nil {
			// web search is an enhancement: log and continue with documents only
			o.logger.Printf("web search failed, continuing without web results: %v", err)
		} else {
			web = hits
		}
	}

	ans, err := o.engine.Query(ctx, enriched, web)
	if err != nil {
		if err == ErrIndexNotReady {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	out := Result{
		Answer:     ans.Answer,
		Sources:    normalizeSources(ans.Documents),
		WebResults: normalizeWeb(web),
	}
	return out, nil
}

func normalizeSources(docs []Document) []Source {
	out := make([]Source, 0, len(docs))
	for _, d := range docs {
		content := d.Content
		if runes := []rune(content); len(runes) > MaxSourcePreviewChars {
			content = string(runes[:MaxSourcePreviewChars])
		}
		out = append(out, Source{Content: content, Page: d.Page})
	}
	return out
}

func normalizeWeb(hits []models.Result) []WebResult {
	out := make([]WebResult, 0, len(hits))
	for _, h := range hits {
		w := WebResult{Title: h.Title, Body: h.Snippet, Href: h.URL}
		if w.Title == "" {
			w.Title = "No title"
		}
		if w.Body == "" {
			w.Body = "No description"
		}
		out = append(out, w)
	}
	return out
}
