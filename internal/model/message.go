// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// EXCHANGE TYPE
// =============================================================================

// Exchange is a single transcript entry. It is also the wire shape of the
// chat_history items sent to the answer service.
type Exchange struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserExchange creates a user entry.
func NewUserExchange(content string) Exchange {
	return Exchange{Role: RoleUser, Content: content}
}

// NewAssistantExchange creates an assistant entry.
func NewAssistantExchange(content string) Exchange {
	return Exchange{Role: RoleAssistant, Content: content}
}

// =============================================================================
// TURN TYPE
// =============================================================================

// TurnID is the durable handle of a committed question/answer pair.
// IDs increase monotonically and are never reused within a transcript.
type TurnID uint64

// Turn is one committed question/answer pair. Turns are immutable once
// committed; retry and delete remove them and commit a new one.
type Turn struct {
	ID        TurnID    `json:"id"`
	Question  Exchange  `json:"question"`
	Answer    Exchange  `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// Entries returns the pair as two transcript entries, user first.
func (t Turn) Entries() [2]Exchange {
	return [2]Exchange{t.Question, t.Answer}
}
