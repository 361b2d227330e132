// Package message loads and sends the messages of one open conversation.
package message

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"AldebaranChat/internal/backend"
	"AldebaranChat/internal/cache"
)

var (
	ErrSendInFlight   = errors.New("a message is already being sent")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNoConversation = errors.New("no conversation is open")
)

// Backend is the message part of the REST contract
type Backend interface {
	ListMessages(ctx context.Context, conversationID int64) ([]backend.MessageResponse, error)
	CreateMessage(ctx context.Context, conversationID int64, req backend.MessageRequest) (*backend.MessageBatch, error)
}

// Message is one entry in a conversation
type Message struct {
	ID         int64
	Content    string
	SenderType backend.SenderType
	CreatedAt  time.Time
}

// Role is "user" or "assistant"
func (m Message) Role() string {
	return m.SenderType.Role()
}

func fromWire(r backend.MessageResponse) Message {
	return Message{
		ID:         r.MessageID,
		Content:    r.Content,
		SenderType: r.SenderType,
		CreatedAt:  r.CreatedAt.Time,
	}
}

func fromWireList(in []backend.MessageResponse) []Message {
	out := make([]Message, 0, len(in))
	for _, r := range in {
		out = append(out, fromWire(r))
	}
	return out
}

// Channel holds the message list of the open conversation. The list only
// grows in the order messages were received.
type Channel struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time

	mu             sync.Mutex
	conversationID int64
	inFlight       bool
	msgs           *cache.Latest[[]Message]
}

// NewChannel returns a channel with no conversation open
func NewChannel(b Backend, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		backend: b,
		logger:  logger,
		now:     time.Now,
		msgs:    cache.NewLatest[[]Message](),
	}
}

// ConversationID is the conversation currently open, or 0
func (c *Channel) ConversationID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// Load opens conversationID and replaces the list with its full history
func (c *Channel) Load(ctx context.Context, conversationID int64) ([]Message, error) {
	c.mu.Lock()
	if c.conversationID != conversationID {
		c.conversationID = conversationID
		c.msgs.Reset()
	}
	c.mu.Unlock()

	seq := c.msgs.Begin()
	resp, err := c.backend.ListMessages(ctx, conversationID)
	if err != nil {
		c.logger.Error("failed to fetch messages", "conversation_id", conversationID, "error", err)
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	list := fromWireList(resp)
	if c.ConversationID() != conversationID || !c.msgs.Commit(seq, list) {
		c.logger.Debug("discarded stale message list", "conversation_id", conversationID, "seq", seq)
	}
	c.logger.Info("messages fetched", "conversation_id", conversationID, "count", len(list))
	return cloneMessages(list), nil
}

// Close forgets the open conversation
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversationID = 0
	c.msgs.Reset()
}

// Send posts the composer's text to the open conversation. The input is
// cleared before the request; on failure it is put back and nothing is
// appended. Only one send may be outstanding at a time. It returns the
// messages appended to the list.
func (c *Channel) Send(ctx context.Context, composer *Composer) ([]Message, error) {
	c.mu.Lock()
	if c.inFlight || composer.Sending() {
		c.mu.Unlock()
		return nil, ErrSendInFlight
	}
	conversationID := c.conversationID
	if conversationID == 0 {
		c.mu.Unlock()
		return nil, ErrNoConversation
	}
	raw, draft, ok := composer.take()
	if !ok {
		c.mu.Unlock()
		return nil, ErrEmptyMessage
	}
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	batch, err := c.backend.CreateMessage(ctx, conversationID, backend.MessageRequest{
		Content:   draft,
		CreatedAt: backend.NewTimestamp(c.now()),
	})
	if err != nil {
		composer.restore(raw)
		c.logger.Error("failed to send message", "conversation_id", conversationID, "error", err)
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	composer.done()

	if c.ConversationID() != conversationID {
		c.logger.Debug("conversation changed during send", "conversation_id", conversationID)
		return nil, nil
	}

	var added []Message
	c.msgs.Update(func(cur []Message) []Message {
		if batch.History {
			// the server answered with the whole thread; keep only what is new
			full := fromWireList(batch.Messages)
			if len(full) < len(cur) {
				return cur
			}
			added = cloneMessages(full[len(cur):])
		} else {
			added = fromWireList(batch.Messages)
		}
		next := make([]Message, 0, len(cur)+len(added))
		next = append(next, cur...)
		return append(next, added...)
	})

	c.logger.Info("message sent", "conversation_id", conversationID, "appended", len(added))
	return added, nil
}

// Messages returns a copy of the list in received order
func (c *Channel) Messages() []Message {
	return cloneMessages(c.msgs.Get().Value)
}

func cloneMessages(in []Message) []Message {
	out := make([]Message, len(in))
	copy(out, in)
	return out
}
