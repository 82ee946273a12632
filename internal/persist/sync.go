package persist

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/mohammad-safakhou/ragserver/internal/conversation"
	"github.com/mohammad-safakhou/ragserver/internal/rag"
)

// DurableStore is the slice of the database the synchronizer needs.
type DurableStore interface {
	UpsertUser(ctx context.Context, id string) error
	InsertMessage(ctx context.Context, userID, role, content string, sources []byte) error
}

// Syncer mirrors completed exchanges into the durable store off the request
// path. Every failure is logged and swallowed: the live conversation store
// is authoritative and a database outage must never surface to the caller.
type Syncer struct {
	store   DurableStore
	logger  *log.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewSyncer builds a synchronizer. A nil store yields a no-op syncer, which
// is how the service runs without Postgres configured.
func NewSyncer(store DurableStore, timeout time.Duration, logger *log.Logger) *Syncer {
	if logger == nil {
		logger = log.New(log.Writer(), "[SYNC] ", log.LstdFlags)
	}
	return &Syncer{store: store, logger: logger, timeout: timeout}
}

// Sync persists one exchange asynchronously: user record, then user turn,
// then assistant turn, in that order. Fire and forget; it returns before
// any write happens and never reports an error.
func (s *Syncer) Sync(userKey string, userTurn, assistantTurn conversation.Turn, sources []rag.Source) {
	if s == nil || s.store == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// detached from the request context: a dropped client connection
		// must not cancel a write already in flight
		ctx := context.Background()
		if s.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		s.write(ctx, userKey, userTurn, assistantTurn, sources)
	}()
}

func (s *Syncer) write(ctx context.Context, userKey string, userTurn, assistantTurn conversation.Turn, sources []rag.Source) {
	if err := s.store.UpsertUser(ctx, userKey); err != nil {
		s.logger.Printf("user upsert failed for %s, skipping exchange: %v", userKey, err)
		return
	}
	if err := s.store.InsertMessage(ctx, userKey, userTurn.Role, userTurn.Content, nil); err != nil {
		s.logger.Printf("user turn persist failed for %s: %v", userKey, err)
		return
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		sourcesJSON = nil
	}
	if err := s.store.InsertMessage(ctx, userKey, assistantTurn.Role, assistantTurn.Content, sourcesJSON); err != nil {
		s.logger.Printf("assistant turn persist failed for %s: %v", userKey, err)
	}
}

// Wait blocks until all in-flight writes finish. Used at shutdown and in
// tests; the request path never calls it.
func (s *Syncer) Wait() {
	if s == nil {
		return
	}
	s.wg.Wait()
}
