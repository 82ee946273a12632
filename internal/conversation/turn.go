package conversation

import "time"

// Roles a turn can carry. The pipeline only ever writes these two;
// anything else in a history is a caller bug, not a store concern.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a user's conversation. Turns are immutable once
// appended; ordering is by append order for a given user key.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTurn stamps a turn with the current time.
func NewTurn(role, content string) Turn {
	return Turn{Role: role, Content: content, CreatedAt: time.Now().UTC()}
}
