package conversation

import (
	"context"
	"fmt"
	"sync"
)

// Store keeps the ordered per-user conversation log. It is the only shared
// mutable structure on the live query path: appends for the same key are
// serialized, independent keys never block each other, and a read reflects
// every append that completed before it for that key.
type Store interface {
	// Ensure creates the entry for key if it does not exist yet. Idempotent.
	Ensure(ctx context.Context, key string) error
	// History returns a copy of the turns for key, oldest first.
	// An unknown key yields an empty history, not an error.
	History(ctx context.Context, key string) ([]Turn, error)
	// Append adds exactly one turn at the end of the key's log.
	Append(ctx context.Context, key string, turn Turn) error
	// Clear truncates the key's log to empty.
	Clear(ctx context.Context, key string) error
}

type StoreType string

const (
	MemoryStore StoreType = "memory"
	RedisStore  StoreType = "redis"
)

// NewStore builds a conversation store backend by type. The redis backend
// needs an established client, supplied via opts.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	var o storeOptions
	for _, fn := range opts {
		fn(&o)
	}
	switch storeType {
	case MemoryStore, "":
		return NewMemory(), nil
	case RedisStore:
		if o.redis == nil {
			return nil, fmt.Errorf("redis conversation store requires a client")
		}
		return NewRedis(o.redis), nil
	default:
		return nil, fmt.Errorf("unsupported conversation store type: %s", storeType)
	}
}

// Memory is the default, process-lifetime store. The outer lock guards the
// key map only; each user log carries its own mutex so appends for one user
// never serialize another user's traffic.
type Memory struct {
	mu   sync.RWMutex
	logs map[string]*userLog
}

type userLog struct {
	mu    sync.Mutex
	turns []Turn
}

func NewMemory() *Memory {
	return &Memory{logs: make(map[string]*userLog)}
}

func (m *Memory) Ensure(_ context.Context, key string) error {
	m.ensure(key)
	return nil
}

func (m *Memory) ensure(key string) *userLog {
	m.mu.RLock()
	l, ok := m.logs[key]
	m.mu.RUnlock()
	if ok {
		return l
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok = m.logs[key]; ok {
		return l
	}
	l = &userLog{}
	m.logs[key] = l
	return l
}

func (m *Memory) History(_ context.Context, key string) ([]Turn, error) {
	m.mu.RLock()
	l, ok := m.logs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out, nil
}

func (m *Memory) Append(_ context.Context, key string, turn Turn) error {
	l := m.ensure(key)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, turn)
	return nil
}

func (m *Memory) Clear(_ context.Context, key string) error {
	m.mu.RLock()
	l, ok := m.logs[key]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = nil
	return nil
}
