package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"AldebaranChat/internal/backend"
)

func (c *Client) Signup(ctx context.Context, req backend.CreateUserRequest) (*backend.UserResponse, error) {
	var user backend.UserResponse
	if err := c.Do(ctx, http.MethodPost, "/signup", req, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) Login(ctx context.Context, req backend.LoginRequest) (*backend.LoginResponse, error) {
	var resp backend.LoginResponse
	if err := c.Do(ctx, http.MethodPost, "/login", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListConversations returns the raw body, which may not even be valid JSON;
// the conversation directory normalizes it.
func (c *Client) ListConversations(ctx context.Context) (json.RawMessage, error) {
	var raw []byte
	if err := c.Do(ctx, http.MethodGet, "/conversation", nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *Client) CreateConversation(ctx context.Context, req backend.ConversationRequest) (*backend.ConversationResponse, error) {
	var conv backend.ConversationResponse
	if err := c.Do(ctx, http.MethodPost, "/conversation", req, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) GetConversation(ctx context.Context, id int64) (*backend.ConversationResponse, error) {
	var conv backend.ConversationResponse
	if err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/conversation/%d", id), nil, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) UpdateConversation(ctx context.Context, id int64, patch backend.ConversationPatch) (*backend.ConversationResponse, error) {
	var conv backend.ConversationResponse
	if err := c.Do(ctx, http.MethodPut, fmt.Sprintf("/conversation/%d", id), patch, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (c *Client) DeleteConversation(ctx context.Context, id int64) error {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/conversation/%d", id), nil, nil)
}

func (c *Client) ListMessages(ctx context.Context, conversationID int64) ([]backend.MessageResponse, error) {
	var msgs []backend.MessageResponse
	path := fmt.Sprintf("/conversation/%d/messages/all", conversationID)
	if err := c.Do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) CreateMessage(ctx context.Context, conversationID int64, req backend.MessageRequest) (*backend.MessageBatch, error) {
	var batch backend.MessageBatch
	path := fmt.Sprintf("/conversation/%d/messages", conversationID)
	if err := c.Do(ctx, http.MethodPost, path, req, &batch); err != nil {
		return nil, err
	}
	return &batch, nil
}
