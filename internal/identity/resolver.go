package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/ragserver/internal/conversation"
	"github.com/mohammad-safakhou/ragserver/internal/runtime"
)

// ErrEmptyIdentifier rejects identifiers that trim down to nothing.
var ErrEmptyIdentifier = errors.New("empty identifier")

// Token failures are surfaced with the runtime's sentinel errors so callers
// can distinguish authentication failures from input errors.
var (
	ErrInvalidToken = runtime.ErrTokenInvalid
	ErrTokenExpired = runtime.ErrTokenExpired
)

// Mode selects how inbound identity claims are interpreted.
type Mode string

const (
	// ModePlain treats the input as a raw identifier (e.g. an institutional ID).
	ModePlain Mode = "plain"
	// ModeToken requires a signed session token issued at login.
	ModeToken Mode = "token"
)

// UserRegistry is the durable-store hook for the ensure-exists side effect.
// It must tolerate the store being down; failures here never fail a resolve.
type UserRegistry interface {
	UpsertUser(ctx context.Context, id string) error
}

// Resolver validates an inbound identity claim and produces the canonical
// user key. Register is the login-time path: it canonicalizes a raw
// identifier and runs the ensure-exists side effects. Issue mints the
// credential returned at login: the user key itself in plain mode, a signed
// token in token mode.
type Resolver interface {
	Resolve(ctx context.Context, input string) (string, error)
	Register(ctx context.Context, identifier string) (string, error)
	Issue(userKey string) (string, error)
}

// DefaultTokenTTL matches the 24h session validity window.
const DefaultTokenTTL = 24 * time.Hour

// NewResolver builds the resolver for the configured auth mode.
func NewResolver(mode Mode, secret []byte, ttl time.Duration, conv conversation.Store, users UserRegistry, logger *log.Logger) (Resolver, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[AUTH] ", log.LstdFlags)
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	base := base{conv: conv, users: users, logger: logger}
	switch mode {
	case ModePlain, "":
		return &plainResolver{base: base}, nil
	case ModeToken:
		if len(secret) == 0 {
			return nil, fmt.Errorf("token auth mode requires a jwt secret")
		}
		return &tokenResolver{base: base, secret: secret, ttl: ttl}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", mode)
	}
}

type base struct {
	conv   conversation.Store
	users  UserRegistry
	logger *log.Logger
}

// ensure performs the idempotent "user exists" side effects: the live
// conversation entry, and a best-effort durable upsert that also refreshes
// the user's last-seen timestamp. Durable-store failures are logged only.
func (b *base) ensure(ctx context.Context, key string) error {
	if b.conv != nil {
		if err := b.conv.Ensure(ctx, key); err != nil {
			return err
		}
	}
	if b.users != nil {
		if err := b.users.UpsertUser(ctx, key); err != nil {
			b.logger.Printf("durable user upsert failed for %s: %v", key, err)
		}
	}
	return nil
}

// Register trims and validates a raw identifier and ensures the user
// exists. Shared by both modes; login always starts from an identifier.
func (b *base) Register(ctx context.Context, identifier string) (string, error) {
	key := strings.TrimSpace(identifier)
	if key == "" {
		return "", ErrEmptyIdentifier
	}
	if err := b.ensure(ctx, key); err != nil {
		return "", err
	}
	return key, nil
}

type plainResolver struct {
	base
}

func (r *plainResolver) Resolve(ctx context.Context, input string) (string, error) {
	key := strings.TrimSpace(input)
	if key == "" {
		return "", ErrEmptyIdentifier
	}
	if err := r.ensure(ctx, key); err != nil {
		return "", err
	}
	return key, nil
}

// Issue in plain mode hands the key back: the identifier is the credential.
func (r *plainResolver) Issue(userKey string) (string, error) {
	key := strings.TrimSpace(userKey)
	if key == "" {
		return "", ErrEmptyIdentifier
	}
	return key, nil
}

type tokenResolver struct {
	base
	secret []byte
	ttl    time.Duration
}

func (r *tokenResolver) Resolve(ctx context.Context, input string) (string, error) {
	token := strings.TrimSpace(input)
	if token == "" {
		return "", ErrInvalidToken
	}
	key, err := runtime.VerifyJWT(token, r.secret)
	if err != nil {
		return "", err
	}
	if err := r.ensure(ctx, key); err != nil {
		return "", err
	}
	return key, nil
}

func (r *tokenResolver) Issue(userKey string) (string, error) {
	key := strings.TrimSpace(userKey)
	if key == "" {
		return "", ErrEmptyIdentifier
	}
	return runtime.SignJWT(key, r.secret, r.ttl)
}

// IsAuthError reports whether err is a credential failure rather than an
// input error; the HTTP layer maps these to 401.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrTokenExpired)
}
