package domain

import "time"

// Role constants for message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a conversation.
// Messages are immutable once appended to a session.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// EntryKind identifies what a UI entry renders.
type EntryKind string

const (
	// EntryText is a plain assistant text reply.
	EntryText EntryKind = "text"
	// EntryConfirmation asks the user to confirm a pending send.
	EntryConfirmation EntryKind = "confirmation"
	// EntryToolResult renders the output of a tool invocation.
	EntryToolResult EntryKind = "tool_result"
	// EntryProgress renders a live transaction progress card.
	EntryProgress EntryKind = "progress"
)

// UIEntry is one renderable unit of conversation output. Exactly one entry is
// produced per user turn. The Display string may be replaced wholesale (for
// progress updates) until the underlying transaction reaches a terminal state;
// it is never patched in place.
type UIEntry struct {
	ID           string               `json:"id"`
	Kind         EntryKind            `json:"kind"`
	Display      string               `json:"display"`
	ToolName     string               `json:"tool_name,omitempty"`
	Confirmation *SendRequest         `json:"confirmation,omitempty"`
	Progress     *TransactionProgress `json:"progress,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}
