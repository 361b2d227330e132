// Package auth owns the client's credential and authentication status.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"AldebaranChat/internal/backend"
	"AldebaranChat/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrMalformedLogin   = errors.New("login response is missing the token or the user")
)

// Backend is the part of the REST contract the coordinator needs
type Backend interface {
	Login(ctx context.Context, req backend.LoginRequest) (*backend.LoginResponse, error)
	Signup(ctx context.Context, req backend.CreateUserRequest) (*backend.UserResponse, error)
}

// Coordinator is the single source of truth for whether a user is signed in
// and the only writer of the credential. Build one per process.
type Coordinator struct {
	backend     Backend
	store       store.Store
	logger      *slog.Logger
	transitions metric.Int64Counter

	mu      sync.RWMutex
	state   State
	token   string
	nextSub int
	subs    map[int]func(State)
}

// NewCoordinator returns a coordinator in the loading state; call Hydrate
// before anything checks authentication.
func NewCoordinator(b Backend, s store.Store, logger *slog.Logger, meter metric.Meter) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if meter == nil {
		meter = otel.Meter("aldebaran")
	}
	counter, err := meter.Int64Counter("auth.transitions",
		metric.WithDescription("Authentication status changes"))
	if err != nil {
		logger.Warn("failed to create counter", "name", "auth.transitions", "error", err)
	}

	return &Coordinator{
		backend:     b,
		store:       s,
		logger:      logger,
		transitions: counter,
		state:       State{Status: StatusLoading},
		subs:        make(map[int]func(State)),
	}
}

// Hydrate restores the signed-in state from storage. A missing or malformed
// token or user resolves to unauthenticated.
func (c *Coordinator) Hydrate() State {
	next := State{Status: StatusUnauthenticated}

	token, hasToken, err := c.store.Get(store.KeyToken)
	if err != nil {
		c.logger.Error("failed to read token from storage", "error", err)
		hasToken = false
	}
	rawUser, hasUser, err := c.store.Get(store.KeyUser)
	if err != nil {
		c.logger.Error("failed to read user from storage", "error", err)
		hasUser = false
	}

	if hasToken && token != "" && hasUser {
		var user backend.UserResponse
		if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
			c.logger.Warn("stored user is malformed", "error", err)
		} else {
			next = State{
				Status:    StatusAuthenticated,
				User:      &user,
				ExpiresAt: credentialExpiry("", token),
			}
		}
	}

	if !hasToken {
		token = ""
	}
	c.apply(next, token)
	c.logger.Info("auth hydrated", "status", next.Status.String())
	return next
}

// Login exchanges credentials for a token. On failure the previous state is
// kept and the backend error is returned.
func (c *Coordinator) Login(ctx context.Context, req backend.LoginRequest) (*backend.LoginResponse, error) {
	resp, err := c.backend.Login(ctx, req)
	if err != nil {
		c.logger.Error("login failed", "email", req.Email, "error", err)
		return nil, err
	}
	if resp.JWTToken == "" || resp.UserResponse == nil {
		c.logger.Error("login failed", "email", req.Email, "error", ErrMalformedLogin)
		return nil, ErrMalformedLogin
	}

	userJSON, err := json.Marshal(resp.UserResponse)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user: %w", err)
	}
	err = c.store.Set(map[string]string{
		store.KeyToken: resp.JWTToken,
		store.KeyUser:  string(userJSON),
	})
	if err != nil {
		c.logger.Error("failed to persist credential", "error", err)
		return nil, fmt.Errorf("failed to persist credential: %w", err)
	}

	user := *resp.UserResponse
	c.apply(State{
		Status:    StatusAuthenticated,
		User:      &user,
		ExpiresAt: credentialExpiry(resp.ExpiresAt, resp.JWTToken),
	}, resp.JWTToken)

	c.logger.Info("login succeeded", "user", user.UserName)
	return resp, nil
}

// Signup registers a user. It never signs the caller in: no token is issued
// at signup.
func (c *Coordinator) Signup(ctx context.Context, form SignupForm) (*backend.UserResponse, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	user, err := c.backend.Signup(ctx, form.Request())
	if err != nil {
		c.logger.Error("signup failed", "email", form.Email, "error", err)
		return nil, err
	}

	c.logger.Info("signup succeeded", "user", user.UserName)
	return user, nil
}

// Logout clears the credential and the cached user. It always succeeds
// locally; a storage failure is only logged.
func (c *Coordinator) Logout() {
	if err := c.store.Delete(store.KeyToken, store.KeyUser); err != nil {
		c.logger.Error("failed to clear credential", "error", err)
	}
	c.apply(State{Status: StatusUnauthenticated}, "")
	c.logger.Info("logged out")
}

// Token returns the stored bearer token, or false when there is none
func (c *Coordinator) Token() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

// State returns the current snapshot
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Coordinator) IsAuthenticated() bool {
	return c.State().Status == StatusAuthenticated
}

// User returns the cached projection, or nil when signed out
func (c *Coordinator) User() *backend.UserResponse {
	return c.State().User
}

// Subscribe registers fn to run after every state change. The returned func
// removes the subscription.
func (c *Coordinator) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator) apply(next State, token string) {
	c.mu.Lock()
	prev := c.state.Status
	c.state = next
	c.token = token
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	if prev != next.Status && c.transitions != nil {
		c.transitions.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("status", next.Status.String())))
	}
	for _, fn := range subs {
		fn(next)
	}
}
