package fcstream

import (
	"context"
	"time"

	"github.com/thecxx/fcstream/constants"
)

// Conversation is an ordered, append-only message history plus its metadata.
// Between turns it is owned by a Sink; during a turn the orchestrator holds
// the only working copy.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Append adds msgs to the history and bumps UpdatedAt.
func (c *Conversation) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
	c.UpdatedAt = time.Now().UTC()
}

// Clone returns a copy whose message slice does not alias c's.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Messages = append([]Message(nil), c.Messages...)
	return &clone
}

// LastUserMessage returns the content of the most recent user message.
func (c *Conversation) LastUserMessage() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == constants.RoleUser {
			return c.Messages[i].Content
		}
	}
	return ""
}

// ConversationSummary is the list view of a conversation.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sink is the durable store of conversations. Implementations serialize
// writes per conversation id.
type Sink interface {
	// Load returns the conversation, or nil and no error when it does not exist.
	Load(ctx context.Context, id string) (*Conversation, error)
	// Save writes the whole conversation, replacing any previous version.
	// The title is only written when the conversation is first stored.
	Save(ctx context.Context, conv *Conversation) error
	// SetTitle renames a stored conversation without touching its messages
	// and reports whether it existed.
	SetTitle(ctx context.Context, id, title string) (bool, error)
	// Delete removes the conversation and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
	// List returns summaries ordered by most recent update first.
	List(ctx context.Context) ([]ConversationSummary, error)
}
