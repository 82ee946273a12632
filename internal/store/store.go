package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Store mirrors conversation state into Postgres for audit and analytics.
// It is never the store of record for the live request path: callers treat
// every method as best-effort and must keep serving when it is unreachable.
type Store struct {
	DB *sql.DB
}

// Message is a persisted conversation turn.
type Message struct {
	ID        string
	UserID    string
	Role      string
	Content   string
	Sources   []byte
	CreatedAt time.Time
}

func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// UpsertUser creates the user row if needed and refreshes last_seen_at.
// Keyed by the caller-supplied identifier, so repeated logins are idempotent.
func (s *Store) UpsertUser(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (id, last_seen_at) VALUES ($1, now())
		ON CONFLICT (id) DO UPDATE SET last_seen_at = now()`, id)
	return err
}

// InsertMessage appends one persisted turn. Sources may be nil; assistant
// messages carry the retrieval sources as JSONB.
func (s *Store) InsertMessage(ctx context.Context, userID, role, content string, sources []byte) error {
	if len(sources) == 0 {
		sources = []byte("[]")
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO messages (id, user_id, role, content, sources) VALUES ($1,$2,$3,$4,$5)`,
		uuid.NewString(), userID, role, content, sources)
	return err
}

// GetMessages returns the persisted turns for a user, oldest first.
// limit <= 0 means no limit.
func (s *Store) GetMessages(ctx context.Context, userID string, limit int) ([]Message, error) {
	q := `SELECT id, user_id, role, content, sources, created_at FROM messages WHERE user_id=$1 ORDER BY created_at ASC`
	args := []interface{}{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Role, &m.Content, &m.Sources, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LastSeen reads the user's last-seen timestamp; observable externally,
// never used for control flow.
func (s *Store) LastSeen(ctx context.Context, id string) (time.Time, error) {
	var t time.Time
	err := s.DB.QueryRowContext(ctx, `SELECT last_seen_at FROM users WHERE id=$1`, id).Scan(&t)
	return t, err
}
