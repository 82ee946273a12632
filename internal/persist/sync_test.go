package persist

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/mohammad-safakhou/ragserver/internal/conversation"
	"github.com/mohammad-safakhou/ragserver/internal/rag"
)

type write struct {
	kind    string // "upsert" or "insert"
	userID  string
	role    string
	content string
	sources []byte
}

type recordingStore struct {
	mu         sync.Mutex
	writes     []write
	upsertErr  error
	insertErrs map[string]error // keyed by role
}

func (r *recordingStore) UpsertUser(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, write{kind: "upsert", userID: id})
	return r.upsertErr
}

func (r *recordingStore) InsertMessage(_ context.Context, userID, role, content string, sources []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, write{kind: "insert", userID: userID, role: role, content: content, sources: sources})
	if err, ok := r.insertErrs[role]; ok {
		return err
	}
	return nil
}

func (r *recordingStore) snapshot() []write {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]write, len(r.writes))
	copy(out, r.writes)
	return out
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func exchange() (conversation.Turn, conversation.Turn) {
	return conversation.NewTurn(conversation.RoleUser, "question"),
		conversation.NewTurn(conversation.RoleAssistant, "answer")
}

func TestSyncWritesInOrder(t *testing.T) {
	store := &recordingStore{}
	s := NewSyncer(store, 0, quietLogger())
	u, a := exchange()
	s.Sync("STU001", u, a, []rag.Source{{Content: "excerpt", Page: 2}})
	s.Wait()

	writes := store.snapshot()
	if len(writes) != 3 {
		t.Fatalf("expected 3 writes, got %d", len(writes))
	}
	if writes[0].kind != "upsert" || writes[0].userID != "STU001" {
		t.Fatalf("first write should upsert the user: %+v", writes[0])
	}
	if writes[1].role != conversation.RoleUser || writes[2].role != conversation.RoleAssistant {
		t.Fatalf("turns persisted out of order: %+v", writes[1:])
	}
	if len(writes[1].sources) != 0 {
		t.Fatalf("user turn must not carry sources")
	}
	if len(writes[2].sources) == 0 {
		t.Fatalf("assistant turn should carry sources JSON")
	}
}

func TestSyncUpsertFailureAbortsExchange(t *testing.T) {
	store := &recordingStore{upsertErr: errors.New("db down")}
	s := NewSyncer(store, 0, quietLogger())
	u, a := exchange()
	s.Sync("STU001", u, a, nil)
	s.Wait()
	if got := store.snapshot(); len(got) != 1 {
		t.Fatalf("expected only the failed upsert, got %d writes", len(got))
	}
}

func TestSyncUserTurnFailureSkipsAssistant(t *testing.T) {
	store := &recordingStore{insertErrs: map[string]error{conversation.RoleUser: errors.New("constraint")}}
	s := NewSyncer(store, 0, quietLogger())
	u, a := exchange()
	s.Sync("STU001", u, a, nil)
	s.Wait()
	writes := store.snapshot()
	for _, w := range writes {
		if w.role == conversation.RoleAssistant {
			t.Fatalf("assistant turn persisted after user turn failed")
		}
	}
}

func TestSyncNilStoreIsNoop(t *testing.T) {
	s := NewSyncer(nil, 0, quietLogger())
	u, a := exchange()
	s.Sync("STU001", u, a, nil) // must not panic
	s.Wait()
}
