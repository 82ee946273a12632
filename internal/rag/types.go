package rag

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/ragserver/tools/websearch/models"
)

var (
	// ErrIndexNotReady means the document index has not been built yet.
	// Surfaced to callers as a precondition failure; never retried.
	ErrIndexNotReady = errors.New("document index not built")
	// ErrRetrieval wraps failures from the retrieval engine or the model.
	ErrRetrieval = errors.New("retrieval failed")
)

// DocumentEngine is the retrieval collaborator: it maps a query (plus any
// web snippets already gathered) to an answer and supporting excerpts.
type DocumentEngine interface {
	Ready() bool
	Query(ctx context.Context, query string, web []models.Result) (EngineAnswer, error)
}

// EngineAnswer is the raw engine output before normalization.
type EngineAnswer struct {
	Answer    string
	Documents []Document
}

// Document is one supporting excerpt as the engine produced it.
type Document struct {
	Content string
	Page    int
}

// Source is a normalized document excerpt attached to a response.
type Source struct {
	Content string `json:"content"`
	Page    int    `json:"page"`
}

// WebResult is a normalized web hit attached to a response.
type WebResult struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Href  string `json:"href"`
}

// Result is what the orchestrator hands back to the service layer.
type Result struct {
	Answer     string      `json:"answer"`
	Sources    []Source    `json:"sources"`
	WebResults []WebResult `json:"web_results"`
}
