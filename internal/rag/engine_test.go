package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/ragserver/tools/websearch/models"
)

type echoCompleter struct {
	lastSystem string
	lastUser   string
}

func (c *echoCompleter) Complete(_ context.Context, system, user string) (string, error) {
	c.lastSystem = system
	c.lastUser = user
	return "stub answer", nil
}

func newTestEngine(t *testing.T) (*Engine, *echoCompleter) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "physics.txt", "Thermodynamics is the study of heat and energy transfer between systems.")
	writeFile(t, dir, "chemistry.txt", "Catalysts lower the activation energy of chemical reactions.")
	llm := &echoCompleter{}
	eng := NewEngine(Config{DocsFolder: dir, TopK: 2}, llm, nil)
	if eng.Ready() {
		t.Fatalf("engine must not be ready before build")
	}
	if err := eng.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if !eng.Ready() {
		t.Fatalf("engine should be ready after build")
	}
	return eng, llm
}

func TestEngineQueryReturnsDocuments(t *testing.T) {
	eng, llm := newTestEngine(t)
	ans, err := eng.Query(context.Background(), "what is thermodynamics", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if ans.Answer != "stub answer" {
		t.Fatalf("unexpected answer %q", ans.Answer)
	}
	if len(ans.Documents) == 0 {
		t.Fatalf("expected supporting documents")
	}
	found := false
	for _, d := range ans.Documents {
		if strings.Contains(d.Content, "Thermodynamics") {
			found = true
		}
	}
	if !found {
		t.Fatalf("relevant chunk not retrieved: %+v", ans.Documents)
	}
	if !strings.Contains(llm.lastUser, "Question: what is thermodynamics") {
		t.Fatalf("question missing from prompt: %q", llm.lastUser)
	}
	if llm.lastSystem != systemPrompt {
		t.Fatalf("unexpected system prompt %q", llm.lastSystem)
	}
}

func TestEngineQueryFoldsWebResults(t *testing.T) {
	eng, llm := newTestEngine(t)
	web := []models.Result{{Title: "Wiki", Snippet: "Energy article"}}
	if _, err := eng.Query(context.Background(), "energy", web); err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(llm.lastUser, "- Wiki: Energy article") {
		t.Fatalf("web snippet missing from prompt: %q", llm.lastUser)
	}
}

func TestEngineQueryBeforeBuild(t *testing.T) {
	eng := NewEngine(Config{DocsFolder: t.TempDir()}, &echoCompleter{}, nil)
	if _, err := eng.Query(context.Background(), "q", nil); err != ErrIndexNotReady {
		t.Fatalf("expected ErrIndexNotReady, got %v", err)
	}
}
