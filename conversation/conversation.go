// Package conversation holds the ordered, append-only sequence of turns that
// forms the model's context for one orchestration run.
package conversation

import (
	"sync"

	"github.com/effective-security/mcphost/pkg/llms"
	"github.com/google/uuid"
)

// Conversation is an append-only ordered sequence of turns. Past turns are
// never mutated or reordered, which keeps every run replayable and auditable.
type Conversation struct {
	mu    sync.RWMutex
	runID string
	msgs  []llms.Message
}

// New creates a conversation for one run. An empty runID gets a generated one.
func New(runID string) *Conversation {
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Conversation{
		runID: runID,
	}
}

// RunID returns the identifier of the orchestration run.
func (c *Conversation) RunID() string {
	return c.runID
}

// Append adds turns to the end of the conversation.
func (c *Conversation) Append(msgs ...llms.Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, msgs...)
	c.mu.Unlock()
}

// Messages returns a copy of all turns in append order. Mutating the returned
// slice does not affect the conversation.
func (c *Conversation) Messages() []llms.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]llms.Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.msgs)
}

// Last returns the most recent turn, or false when the conversation is empty.
func (c *Conversation) Last() (llms.Message, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.msgs) == 0 {
		return llms.Message{}, false
	}
	return c.msgs[len(c.msgs)-1], true
}
