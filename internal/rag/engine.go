package rag

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/ragserver/tools/websearch/models"
)

// Config drives corpus ingestion and retrieval.
type Config struct {
	DocsFolder   string
	IndexPath    string
	ChunkSize    int
	ChunkOverlap int
	TopK         int
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = 200
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	return c
}

// chunkDoc is what gets indexed; bleve stores the fields so they can be
// recovered from a persisted index without re-reading the corpus.
type chunkDoc struct {
	Content string `json:"content"`
	Page    int    `json:"page"`
}

// Engine answers questions over a bleve index of chunked corpus text,
// synthesizing the final answer with a chat completion.
type Engine struct {
	cfg    Config
	llm    Completer
	logger *log.Logger

	mu    sync.RWMutex
	index bleve.Index
}

func NewEngine(cfg Config, llm Completer, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[RAG] ", log.LstdFlags)
	}
	return &Engine{cfg: cfg.withDefaults(), llm: llm, logger: logger}
}

// OpenOrBuild loads a persisted index when one exists, otherwise ingests
// the corpus and builds a fresh one.
func (e *Engine) OpenOrBuild() error {
	if e.cfg.IndexPath != "" {
		if _, err := os.Stat(e.cfg.IndexPath); err == nil {
			idx, err := bleve.Open(e.cfg.IndexPath)
			if err != nil {
				return fmt.Errorf("opening index %q: %w", e.cfg.IndexPath, err)
			}
			e.setIndex(idx)
			e.logger.Printf("loaded existing index from %s", e.cfg.IndexPath)
			return nil
		}
	}
	return e.Build()
}

// Build ingests the docs folder from scratch.
func (e *Engine) Build() error {
	files, err := LoadCorpus(e.cfg.DocsFolder)
	if err != nil {
		return err
	}

	mapping := bleve.NewIndexMapping()
	var idx bleve.Index
	if e.cfg.IndexPath == "" {
		idx, err = bleve.NewMemOnly(mapping)
	} else {
		idx, err = bleve.New(e.cfg.IndexPath, mapping)
	}
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}

	total := 0
	for _, f := range files {
		chunks := SplitText(f.Content, e.cfg.ChunkSize, e.cfg.ChunkOverlap)
		for i, chunk := range chunks {
			id := fmt.Sprintf("%s#%d", f.Name, i)
			if err := idx.Index(id, chunkDoc{Content: chunk, Page: i + 1}); err != nil {
				_ = idx.Close()
				return fmt.Errorf("indexing %s: %w", id, err)
			}
			total++
		}
		e.logger.Printf("indexed %s (%d chunks)", f.Name, len(chunks))
	}
	e.logger.Printf("index ready: %d files, %d chunks", len(files), total)
	e.setIndex(idx)
	return nil
}

// Rebuild discards any persisted index and builds anew.
func (e *Engine) Rebuild() error {
	e.mu.Lock()
	if e.index != nil {
		_ = e.index.Close()
		e.index = nil
	}
	e.mu.Unlock()
	if e.cfg.IndexPath != "" {
		if err := os.RemoveAll(e.cfg.IndexPath); err != nil {
			return err
		}
	}
	return e.Build()
}

func (e *Engine) setIndex(idx bleve.Index) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.index = idx
}

// Ready reports whether an index is available to query.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index != nil
}

const (
	systemPrompt = "You are a helpful assistant that answers questions based on the provided context and optional web results."

	contextSeparator = "\n\n---\n\n"
)

// Query retrieves the top chunks for the query, folds in any web snippets,
// and asks the model for an answer grounded in that context.
func (e *Engine) Query(ctx context.Context, query string, web []models.Result) (EngineAnswer, error) {
	e.mu.RLock()
	idx := e.index
	e.mu.RUnlock()
	if idx == nil {
		return EngineAnswer{}, ErrIndexNotReady
	}

	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, e.cfg.TopK, 0, false)
	req.Fields = []string{"content", "page"}
	res, err := idx.SearchInContext(ctx, req)
	if err != nil {
		return EngineAnswer{}, fmt.Errorf("searching index: %w", err)
	}

	var docs []Document
	var parts []string
	for _, hit := range res.Hits {
		content, _ := hit.Fields["content"].(string)
		page := 0
		if p, ok := hit.Fields["page"].(float64); ok {
			page = int(p)
		}
		docs = append(docs, Document{Content: content, Page: page})
		parts = append(parts, content)
	}

	prompt := buildPrompt(strings.Join(parts, contextSeparator), web, query)
	answer, err := e.llm.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return EngineAnswer{}, err
	}
	return EngineAnswer{Answer: answer, Documents: docs}, nil
}

func buildPrompt(docContext string, web []models.Result, question string) string {
	var b strings.Builder
	b.WriteString("Use the following pieces of context to answer the question at the end. ")
	b.WriteString("If you don't know the answer, just say that you don't know, don't try to make up an answer.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(docContext)
	if len(web) > 0 {
		b.WriteString("\n\nWeb Search Results:\n")
		for _, r := range web {
			title := r.Title
			if title == "" {
				title = "No title"
			}
			snippet := r.Snippet
			if snippet == "" {
				snippet = "No description"
			}
			b.WriteString("- ")
			b.WriteString(title)
			b.WriteString(": ")
			b.WriteString(snippet)
			b.WriteString("\n")
		}
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
