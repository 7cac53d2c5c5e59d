package model

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationEntry is one turn in a user's session history.
// Authors, Genres and Titles are only populated on user entries.
type ConversationEntry struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Authors   []string  `json:"authors,omitempty"`
	Genres    []string  `json:"genres,omitempty"`
	Titles    []string  `json:"titles,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionRepository interface {
	// Append adds an entry to the user's history, evicting the oldest entries past the retention cap.
	Append(ctx context.Context, userID string, entry ConversationEntry) error

	// History returns the retained entries for a user, oldest first.
	History(ctx context.Context, userID string) ([]ConversationEntry, error)

	// Clear removes all history for a user.
	Clear(ctx context.Context, userID string) error

	// Count returns the number of retained entries for a user.
	Count(ctx context.Context, userID string) (int, error)
}
