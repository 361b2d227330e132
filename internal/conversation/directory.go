// Package conversation keeps the signed-in user's conversation list.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"AldebaranChat/internal/backend"
	"AldebaranChat/internal/cache"
)

// Backend is the conversation part of the REST contract
type Backend interface {
	ListConversations(ctx context.Context) (json.RawMessage, error)
	CreateConversation(ctx context.Context, req backend.ConversationRequest) (*backend.ConversationResponse, error)
	GetConversation(ctx context.Context, id int64) (*backend.ConversationResponse, error)
	UpdateConversation(ctx context.Context, id int64, patch backend.ConversationPatch) (*backend.ConversationResponse, error)
	DeleteConversation(ctx context.Context, id int64) error
}

// Conversation is the summary projection of one thread
type Conversation struct {
	ID          int64
	Name        string
	SessionType backend.SessionType
	CreatedAt   time.Time
}

func fromWire(r backend.ConversationResponse) Conversation {
	return Conversation{
		ID:          r.ConversationID,
		Name:        r.Name,
		SessionType: r.SessionType,
		CreatedAt:   r.CreatedAt.Time,
	}
}

// Patch lists the fields an update may change; nil fields are left alone
type Patch struct {
	Title       *string
	SessionType *backend.SessionType
}

// Directory is the local cache of the conversation list. It is invalidated
// only by an explicit List.
type Directory struct {
	backend Backend
	logger  *slog.Logger
	list    *cache.Latest[[]Conversation]
}

// NewDirectory returns an empty directory
func NewDirectory(b Backend, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		backend: b,
		logger:  logger,
		list:    cache.NewLatest[[]Conversation](),
	}
}

// List refetches every conversation of the current user and replaces the
// cache. A response that arrives after a newer fetch or local change is
// returned to the caller but not applied.
func (d *Directory) List(ctx context.Context) ([]Conversation, error) {
	seq := d.list.Begin()

	raw, err := d.backend.ListConversations(ctx)
	if err != nil {
		d.logger.Error("failed to fetch conversations", "error", err)
		return nil, fmt.Errorf("failed to fetch conversations: %w", err)
	}

	items, shape, skipped := decode(raw)
	if shape == ShapeEmpty && len(raw) > 0 && string(raw) != "null" {
		d.logger.Warn("unexpected conversation list shape", "bytes", len(raw))
	}
	if skipped > 0 {
		d.logger.Warn("skipped undecodable conversations", "count", skipped, "shape", shape.String())
	}

	list := make([]Conversation, 0, len(items))
	for _, it := range items {
		list = append(list, fromWire(it))
	}

	if !d.list.Commit(seq, list) {
		d.logger.Debug("discarded stale conversation list", "seq", seq)
	}
	d.logger.Info("conversations fetched", "count", len(list), "shape", shape.String())
	return clone(list), nil
}

// Create adds a conversation and puts it first in the cache
func (d *Directory) Create(ctx context.Context, title string) (Conversation, error) {
	resp, err := d.backend.CreateConversation(ctx, backend.ConversationRequest{Title: title})
	if err != nil {
		d.logger.Error("failed to create conversation", "title", title, "error", err)
		return Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}

	conv := fromWire(*resp)
	d.list.Update(func(cur []Conversation) []Conversation {
		next := make([]Conversation, 0, len(cur)+1)
		next = append(next, conv)
		return append(next, cur...)
	})
	d.logger.Info("conversation created", "conversation_id", conv.ID)
	return conv, nil
}

// Get fetches one summary and refreshes its cache entry if present
func (d *Directory) Get(ctx context.Context, id int64) (Conversation, error) {
	resp, err := d.backend.GetConversation(ctx, id)
	if err != nil {
		d.logger.Error("failed to fetch conversation", "conversation_id", id, "error", err)
		return Conversation{}, fmt.Errorf("failed to fetch conversation %d: %w", id, err)
	}

	conv := fromWire(*resp)
	d.replace(conv)
	return conv, nil
}

// Update applies patch and refreshes the matching cache entry
func (d *Directory) Update(ctx context.Context, id int64, patch Patch) (Conversation, error) {
	resp, err := d.backend.UpdateConversation(ctx, id, backend.ConversationPatch{
		Title:       patch.Title,
		SessionType: patch.SessionType,
	})
	if err != nil {
		d.logger.Error("failed to update conversation", "conversation_id", id, "error", err)
		return Conversation{}, fmt.Errorf("failed to update conversation %d: %w", id, err)
	}

	conv := fromWire(*resp)
	d.replace(conv)
	d.logger.Info("conversation updated", "conversation_id", id)
	return conv, nil
}

// Remove deletes a conversation and drops it from the cache
func (d *Directory) Remove(ctx context.Context, id int64) error {
	if err := d.backend.DeleteConversation(ctx, id); err != nil {
		d.logger.Error("failed to delete conversation", "conversation_id", id, "error", err)
		return fmt.Errorf("failed to delete conversation %d: %w", id, err)
	}

	d.list.Update(func(cur []Conversation) []Conversation {
		next := make([]Conversation, 0, len(cur))
		for _, c := range cur {
			if c.ID != id {
				next = append(next, c)
			}
		}
		return next
	})
	d.logger.Info("conversation deleted", "conversation_id", id)
	return nil
}

func (d *Directory) replace(conv Conversation) {
	if _, ok := d.Find(conv.ID); !ok {
		return
	}
	d.list.Update(func(cur []Conversation) []Conversation {
		next := clone(cur)
		for i := range next {
			if next[i].ID == conv.ID {
				next[i] = conv
			}
		}
		return next
	})
}

// Cached returns the list as last applied
func (d *Directory) Cached() []Conversation {
	return clone(d.list.Get().Value)
}

// Find looks id up in the cache
func (d *Directory) Find(id int64) (Conversation, bool) {
	for _, c := range d.list.Get().Value {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}

// Search filters the cache by a case-insensitive substring of the name. An
// empty term returns everything.
func (d *Directory) Search(term string) []Conversation {
	term = strings.ToLower(strings.TrimSpace(term))
	all := d.list.Get().Value
	if term == "" {
		return clone(all)
	}

	var out []Conversation
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), term) {
			out = append(out, c)
		}
	}
	return out
}

// Clear forgets the cached list, e.g. on logout
func (d *Directory) Clear() {
	d.list.Reset()
}

// DefaultTitle is the name given to a conversation the user did not name
func DefaultTitle(now time.Time) string {
	return "Doctor AI Conversation - " + now.Format("1/2/2006, 3:04:05 PM")
}

func clone(in []Conversation) []Conversation {
	if in == nil {
		return []Conversation{}
	}
	out := make([]Conversation, len(in))
	copy(out, in)
	return out
}
