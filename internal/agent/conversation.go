package agent

import (
	"fmt"
	"sync"

	"github.com/barabonda/linkbrain/internal/llm"
	"github.com/barabonda/linkbrain/internal/types"
)

// Conversation is an append-only message log. A tool message is accepted
// only when it answers a tool call made by an earlier assistant message,
// and each call is answered at most once.
type Conversation struct {
	mu       sync.RWMutex
	messages []llm.Message
	pending  map[string]bool
	answered map[string]bool
}

// NewConversation creates a conversation holding msgs.
func NewConversation(msgs ...llm.Message) (*Conversation, error) {
	c := &Conversation{
		pending:  make(map[string]bool),
		answered: make(map[string]bool),
	}
	for i, msg := range msgs {
		if err := c.Append(msg); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
	}
	return c, nil
}

// Append validates msg and adds it to the end of the log.
func (c *Conversation) Append(msg llm.Message) error {
	if err := msg.Validate(); err != nil {
		return types.WrapError(types.ErrCodeValidation, "invalid message", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Role {
	case llm.RoleAssistant:
		for _, tc := range msg.ToolCalls {
			if c.pending[tc.ID] || c.answered[tc.ID] {
				return types.NewError(types.ErrCodeValidation,
					fmt.Sprintf("duplicate tool call id %q", tc.ID))
			}
		}
		for _, tc := range msg.ToolCalls {
			c.pending[tc.ID] = true
		}
	case llm.RoleTool:
		if !c.pending[msg.ToolCallID] {
			return types.NewError(types.ErrCodeValidation,
				fmt.Sprintf("tool message references unknown or answered call %q", msg.ToolCallID))
		}
		delete(c.pending, msg.ToolCallID)
		c.answered[msg.ToolCallID] = true
	}

	c.messages = append(c.messages, msg)
	return nil
}

// Messages returns a copy of the log.
func (c *Conversation) Messages() []llm.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Pending returns how many tool calls are still unanswered.
func (c *Conversation) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

// Clone returns an independent copy.
func (c *Conversation) Clone() *Conversation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Conversation{
		messages: make([]llm.Message, len(c.messages)),
		pending:  make(map[string]bool, len(c.pending)),
		answered: make(map[string]bool, len(c.answered)),
	}
	copy(clone.messages, c.messages)
	for id := range c.pending {
		clone.pending[id] = true
	}
	for id := range c.answered {
		clone.answered[id] = true
	}
	return clone
}

// LastUserMessage returns the most recent user message text.
func (c *Conversation) LastUserMessage() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Role == llm.RoleUser {
			return c.messages[i].Content, true
		}
	}
	return "", false
}
