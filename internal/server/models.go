package server

import "github.com/mohammad-safakhou/ragserver/internal/conversation"

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// LoginRequest carries the caller-supplied identifier.
type LoginRequest struct {
	Identifier string `json:"identifier"`
}

// LoginResponse returns the user key, plus a token in token auth mode.
type LoginResponse struct {
	UserKey string `json:"user_key"`
	Token   string `json:"token,omitempty"`
}

// QueryRequest is one question. UserKey is only consulted in plain auth
// mode; token mode takes identity from the Authorization header or cookie.
type QueryRequest struct {
	UserKey      string `json:"user_key,omitempty"`
	Question     string `json:"question"`
	UseWebSearch bool   `json:"use_web_search"`
}

// HistoryResponse lists a user's conversation, oldest first.
type HistoryResponse struct {
	Turns []conversation.Turn `json:"turns"`
}

// StatusResponse mirrors the index lifecycle for UI polling.
type StatusResponse struct {
	Initialized bool   `json:"initialized"`
	IndexBuilt  bool   `json:"index_built"`
	Message     string `json:"message"`
}
