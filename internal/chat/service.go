package chat

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/mohammad-safakhou/ragserver/internal/conversation"
	"github.com/mohammad-safakhou/ragserver/internal/identity"
	"github.com/mohammad-safakhou/ragserver/internal/persist"
	"github.com/mohammad-safakhou/ragserver/internal/rag"
)

// ErrEmptyQuestion rejects questions that trim down to nothing.
var ErrEmptyQuestion = errors.New("empty question")

// Retriever is the orchestrator contract the service depends on.
type Retriever interface {
	Retrieve(ctx context.Context, enriched string, useWeb bool) (rag.Result, error)
}

// Service runs the conversation pipeline: resolve the caller, read their
// history, select and serialize the context window, retrieve, then record
// the exchange in the live store and mirror it durably.
type Service struct {
	resolver identity.Resolver
	conv     conversation.Store
	window   int
	retr     Retriever
	syncer   *persist.Syncer
	logger   *log.Logger
}

// LoginResult carries whichever credential the auth mode produces.
type LoginResult struct {
	UserKey string `json:"user_key"`
	Token   string `json:"token,omitempty"`
}

func NewService(resolver identity.Resolver, conv conversation.Store, window int, retr Retriever, syncer *persist.Syncer, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	}
	if window <= 0 {
		window = conversation.DefaultHistoryWindow
	}
	return &Service{resolver: resolver, conv: conv, window: window, retr: retr, syncer: syncer, logger: logger}
}

// Login canonicalizes the identifier, ensures the user exists and returns
// the credential for subsequent queries.
func (s *Service) Login(ctx context.Context, identifier string) (LoginResult, error) {
	key, err := s.resolver.Register(ctx, identifier)
	if err != nil {
		return LoginResult{}, err
	}
	cred, err := s.resolver.Issue(key)
	if err != nil {
		return LoginResult{}, err
	}
	out := LoginResult{UserKey: key}
	if cred != key {
		out.Token = cred
	}
	return out, nil
}

// Query answers one question for the identified caller, enriched with their
// recent history. The user and assistant turns are appended to the live
// store before returning; durable persistence happens asynchronously.
func (s *Service) Query(ctx context.Context, identityInput, question string, useWeb bool) (rag.Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		queryFailures.WithLabelValues("input").Inc()
		return rag.Result{}, ErrEmptyQuestion
	}
	key, err := s.resolver.Resolve(ctx, identityInput)
	if err != nil {
		queryFailures.WithLabelValues(failureReason(err)).Inc()
		return rag.Result{}, err
	}

	history, err := s.conv.History(ctx, key)
	if err != nil {
		return rag.Result{}, err
	}
	selected := conversation.SelectWindow(history, s.window)
	enriched := conversation.BuildEnrichedQuery(selected, question)

	res, err := s.retr.Retrieve(ctx, enriched, useWeb)
	if err != nil {
		queryFailures.WithLabelValues(failureReason(err)).Inc()
		return rag.Result{}, err
	}

	userTurn := conversation.NewTurn(conversation.RoleUser, question)
	assistantTurn := conversation.NewTurn(conversation.RoleAssistant, res.Answer)
	if err := s.conv.Append(ctx, key, userTurn); err != nil {
		return rag.Result{}, err
	}
	if err := s.conv.Append(ctx, key, assistantTurn); err != nil {
		return rag.Result{}, err
	}

	s.syncer.Sync(key, userTurn, assistantTurn, res.Sources)

	queriesTotal.WithLabelValues(boolLabel(useWeb)).Inc()
	return res, nil
}

// History returns the caller's full conversation, oldest first.
func (s *Service) History(ctx context.Context, identityInput string) ([]conversation.Turn, error) {
	key, err := s.resolver.Resolve(ctx, identityInput)
	if err != nil {
		return nil, err
	}
	return s.conv.History(ctx, key)
}

// ClearHistory truncates the caller's live conversation. The durable mirror
// keeps its rows; it is an audit trail, not a cache of the live state.
func (s *Service) ClearHistory(ctx context.Context, identityInput string) error {
	key, err := s.resolver.Resolve(ctx, identityInput)
	if err != nil {
		return err
	}
	return s.conv.Clear(ctx, key)
}

func failureReason(err error) string {
	switch {
	case identity.IsAuthError(err):
		return "auth"
	case errors.Is(err, identity.ErrEmptyIdentifier), errors.Is(err, ErrEmptyQuestion):
		return "input"
	case errors.Is(err, rag.ErrIndexNotReady):
		return "index_not_ready"
	case errors.Is(err, rag.ErrRetrieval):
		return "retrieval"
	default:
		return "internal"
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
