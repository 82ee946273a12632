package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/mohammad-safakhou/ragserver/internal/conversation"
	"github.com/mohammad-safakhou/ragserver/internal/identity"
	"github.com/mohammad-safakhou/ragserver/internal/persist"
	"github.com/mohammad-safakhou/ragserver/internal/rag"
)

type stubRetriever struct {
	mu       sync.Mutex
	enriched []string
	err      error
	answerFn func(enriched string) string
}

func (r *stubRetriever) Retrieve(_ context.Context, enriched string, useWeb bool) (rag.Result, error) {
	r.mu.Lock()
	r.enriched = append(r.enriched, enriched)
	r.mu.Unlock()
	if r.err != nil {
		return rag.Result{}, r.err
	}
	answer := "answer"
	if r.answerFn != nil {
		answer = r.answerFn(enriched)
	}
	return rag.Result{
		Answer:  answer,
		Sources: []rag.Source{{Content: "excerpt", Page: 1}},
	}, nil
}

func (r *stubRetriever) queries() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.enriched))
	copy(out, r.enriched)
	return out
}

type flakyDurable struct {
	mu      sync.Mutex
	fail    bool
	inserts int
}

func (f *flakyDurable) UpsertUser(context.Context, string) error {
	if f.fail {
		return errors.New("connection refused")
	}
	return nil
}

func (f *flakyDurable) InsertMessage(context.Context, string, string, string, []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("connection refused")
	}
	f.inserts++
	return nil
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestService(t *testing.T, window int, retr Retriever, durable persist.DurableStore) (*Service, conversation.Store, *persist.Syncer) {
	t.Helper()
	conv := conversation.NewMemory()
	resolver, err := identity.NewResolver(identity.ModePlain, nil, 0, conv, nil, quiet())
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	syncer := persist.NewSyncer(durable, 0, quiet())
	return NewService(resolver, conv, window, retr, syncer, quiet()), conv, syncer
}

func TestLoginIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, conv, _ := newTestService(t, 6, &stubRetriever{}, nil)

	res, err := svc.Login(ctx, " STU001 ")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.UserKey != "STU001" || res.Token != "" {
		t.Fatalf("unexpected login result: %+v", res)
	}
	turns, _ := conv.History(ctx, "STU001")
	if len(turns) != 0 {
		t.Fatalf("fresh login should leave an empty history, got %d turns", len(turns))
	}
	if _, err := svc.Login(ctx, "STU001"); err != nil {
		t.Fatalf("repeated login: %v", err)
	}
}

func TestLoginEmptyIdentifier(t *testing.T) {
	svc, _, _ := newTestService(t, 6, &stubRetriever{}, nil)
	if _, err := svc.Login(context.Background(), "   "); !errors.Is(err, identity.ErrEmptyIdentifier) {
		t.Fatalf("expected ErrEmptyIdentifier, got %v", err)
	}
}

func TestQueryAppendsAlternatingTurns(t *testing.T) {
	ctx := context.Background()
	retr := &stubRetriever{answerFn: func(string) string { return "a" }}
	svc, conv, _ := newTestService(t, 6, retr, nil)

	const n = 4
	for i := 0; i < n; i++ {
		if _, err := svc.Query(ctx, "STU001", fmt.Sprintf("question %d", i), false); err != nil {
			t.Fatalf("query %d: %v", i, err)
		}
	}
	turns, _ := conv.History(ctx, "STU001")
	if len(turns) != 2*n {
		t.Fatalf("expected %d turns, got %d", 2*n, len(turns))
	}
	for i, turn := range turns {
		want := conversation.RoleUser
		if i%2 == 1 {
			want = conversation.RoleAssistant
		}
		if turn.Role != want {
			t.Fatalf("turn %d: expected %s, got %s", i, want, turn.Role)
		}
	}
	if turns[0].Content != "question 0" || turns[6].Content != "question 3" {
		t.Fatalf("turns not in call order: %+v", turns)
	}
}

func TestSecondQueryCarriesFirstExchange(t *testing.T) {
	ctx := context.Background()
	retr := &stubRetriever{answerFn: func(enriched string) string {
		if strings.Contains(enriched, "What is this about?") && !strings.Contains(enriched, "---") {
			return "It is about heat transfer."
		}
		return "More detail."
	}}
	svc, _, _ := newTestService(t, 6, retr, nil)

	if _, err := svc.Query(ctx, "STU001", "What is this about?", false); err != nil {
		t.Fatalf("first query: %v", err)
	}
	if _, err := svc.Query(ctx, "STU001", "Tell me more about that", false); err != nil {
		t.Fatalf("second query: %v", err)
	}

	qs := retr.queries()
	if len(qs) != 2 {
		t.Fatalf("expected 2 retrievals, got %d", len(qs))
	}
	if qs[0] != "Current question: What is this about?" {
		t.Fatalf("first enriched query should be bare: %q", qs[0])
	}
	second := qs[1]
	qIdx := strings.Index(second, "User: What is this about?")
	aIdx := strings.Index(second, "Assistant: It is about heat transfer.")
	cIdx := strings.Index(second, "Current question: Tell me more about that")
	if qIdx == -1 || aIdx == -1 || cIdx == -1 {
		t.Fatalf("second enriched query missing first exchange: %q", second)
	}
	if !(qIdx < aIdx && aIdx < cIdx) {
		t.Fatalf("enriched query out of order: %q", second)
	}
}

func TestQueryWindowBounded(t *testing.T) {
	ctx := context.Background()
	retr := &stubRetriever{}
	svc, _, _ := newTestService(t, 2, retr, nil)

	for i := 0; i < 3; i++ {
		if _, err := svc.Query(ctx, "u", fmt.Sprintf("q%d", i), false); err != nil {
			t.Fatalf("query: %v", err)
		}
	}
	qs := retr.queries()
	last := qs[2]
	if strings.Contains(last, "q0") {
		t.Fatalf("window of 2 should not include the first exchange: %q", last)
	}
	if !strings.Contains(last, "User: q1") {
		t.Fatalf("window should include the previous question: %q", last)
	}
}

func TestQueryEmptyQuestionNoSideEffects(t *testing.T) {
	ctx := context.Background()
	retr := &stubRetriever{}
	svc, conv, _ := newTestService(t, 6, retr, nil)
	if _, err := svc.Query(ctx, "STU001", "  ", false); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
	if len(retr.queries()) != 0 {
		t.Fatalf("retrieval must not run for empty questions")
	}
	turns, _ := conv.History(ctx, "STU001")
	if len(turns) != 0 {
		t.Fatalf("empty question must not touch history")
	}
}

func TestQueryRetrievalFailureAppendsNothing(t *testing.T) {
	ctx := context.Background()
	retr := &stubRetriever{err: rag.ErrIndexNotReady}
	svc, conv, _ := newTestService(t, 6, retr, nil)
	if _, err := svc.Query(ctx, "STU001", "q", false); !errors.Is(err, rag.ErrIndexNotReady) {
		t.Fatalf("expected ErrIndexNotReady, got %v", err)
	}
	turns, _ := conv.History(ctx, "STU001")
	if len(turns) != 0 {
		t.Fatalf("failed query must not append turns, got %d", len(turns))
	}
}

func TestQuerySurvivesDurableStoreOutage(t *testing.T) {
	ctx := context.Background()
	durable := &flakyDurable{fail: true}
	svc, conv, syncer := newTestService(t, 6, &stubRetriever{}, durable)

	res, err := svc.Query(ctx, "STU001", "q", false)
	if err != nil {
		t.Fatalf("durable outage must not fail the query: %v", err)
	}
	if res.Answer == "" || len(res.Sources) == 0 {
		t.Fatalf("response incomplete: %+v", res)
	}
	syncer.Wait()
	turns, _ := conv.History(ctx, "STU001")
	if len(turns) != 2 {
		t.Fatalf("live history should still record the exchange, got %d turns", len(turns))
	}
}

func TestQuerySyncsExchange(t *testing.T) {
	ctx := context.Background()
	durable := &flakyDurable{}
	svc, _, syncer := newTestService(t, 6, &stubRetriever{}, durable)
	if _, err := svc.Query(ctx, "STU001", "q", false); err != nil {
		t.Fatalf("query: %v", err)
	}
	syncer.Wait()
	durable.mu.Lock()
	defer durable.mu.Unlock()
	if durable.inserts != 2 {
		t.Fatalf("expected both turns mirrored, got %d inserts", durable.inserts)
	}
}

func TestConcurrentQueriesSameUserLoseNothing(t *testing.T) {
	ctx := context.Background()
	svc, conv, _ := newTestService(t, 6, &stubRetriever{}, nil)

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Query(ctx, "shared", fmt.Sprintf("q%d", i), false); err != nil {
				t.Errorf("query %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	turns, _ := conv.History(ctx, "shared")
	if len(turns) != 2*n {
		t.Fatalf("lost turns: expected %d, got %d", 2*n, len(turns))
	}
}

func TestHistoryAndClear(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t, 6, &stubRetriever{}, nil)
	if _, err := svc.Query(ctx, "STU001", "q", false); err != nil {
		t.Fatalf("query: %v", err)
	}
	turns, err := svc.History(ctx, "STU001")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if err := svc.ClearHistory(ctx, "STU001"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	turns, _ = svc.History(ctx, "STU001")
	if len(turns) != 0 {
		t.Fatalf("history not cleared: %d turns", len(turns))
	}
}
