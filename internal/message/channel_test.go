package message_test

import (
	"context"
	"errors"
	"testing"

	"AldebaranChat/internal/api"
	"AldebaranChat/internal/auth"
	"AldebaranChat/internal/backend"
	"AldebaranChat/internal/backendtest"
	"AldebaranChat/internal/message"
	"AldebaranChat/internal/store"
)

// openConversation signs a user in and creates one conversation
func openConversation(t *testing.T, srv *backendtest.Server) (*api.Client, int64) {
	t.Helper()
	client := api.New(srv.URL)
	coord := auth.NewCoordinator(client, store.NewMemoryStore(), nil, nil)
	client.SetTokenSource(coord)
	coord.Hydrate()

	ctx := context.Background()
	form := auth.SignupForm{UserName: "cy", Email: "cy@example.com", Password: "pw", ConfirmPassword: "pw"}
	if _, err := coord.Signup(ctx, form); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if _, err := coord.Login(ctx, backend.LoginRequest{Email: form.Email, Password: form.Password}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	conv, err := client.CreateConversation(ctx, backend.ConversationRequest{Title: "chat"})
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}
	return client, conv.ConversationID
}

func TestFailedSendRestoresDraft(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	client, id := openConversation(t, srv)
	ctx := context.Background()

	ch := message.NewChannel(client, nil)
	if _, err := ch.Load(ctx, id); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, err := ch.Send(ctx, message.NewComposer("first")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	before := ch.Messages()

	srv.FailSends(true)
	composer := message.NewComposer("hello")
	added, err := ch.Send(ctx, composer)
	if err == nil {
		t.Fatalf("expected send to fail")
	}
	if added != nil {
		t.Fatalf("nothing should be appended on failure, got %v", added)
	}
	if composer.Input() != "hello" {
		t.Fatalf("draft not restored, input = %q", composer.Input())
	}
	if composer.Sending() {
		t.Fatalf("send control should be enabled again")
	}

	after := ch.Messages()
	if len(after) != len(before) {
		t.Fatalf("message list changed: before %d after %d", len(before), len(after))
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) || apiErr.Message != "Failed to process message request" {
		t.Fatalf("expected backend message to surface, got %v", err)
	}
}

func TestSendAppendsServerMessage(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	client, id := openConversation(t, srv)
	ctx := context.Background()

	ch := message.NewChannel(client, nil)
	if _, err := ch.Load(ctx, id); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	composer := message.NewComposer("  hi there  ")
	added, err := ch.Send(ctx, composer)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if composer.Input() != "" {
		t.Fatalf("input should be cleared after a successful send, got %q", composer.Input())
	}
	if len(added) != 1 || added[0].Role() != backend.RoleAssistant || added[0].Content != "You said: hi there" {
		t.Fatalf("unexpected appended messages %+v", added)
	}
	if got := ch.Messages(); len(got) != 1 || got[0].ID != added[0].ID {
		t.Fatalf("list should hold the confirmed message, got %+v", got)
	}
}

func TestSendWithHistoryResponse(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	srv.SendReturnsHistory(true)
	client, id := openConversation(t, srv)
	ctx := context.Background()

	ch := message.NewChannel(client, nil)
	if _, err := ch.Load(ctx, id); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i, text := range []string{"one", "two"} {
		added, err := ch.Send(ctx, message.NewComposer(text))
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if len(added) != 2 {
			t.Fatalf("send %d: expected the user message and reply, got %d", i, len(added))
		}
		if added[0].Role() != backend.RoleUser || added[0].Content != text {
			t.Fatalf("send %d: unexpected first message %+v", i, added[0])
		}
	}

	msgs := ch.Messages()
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].ID <= msgs[i-1].ID {
			t.Fatalf("messages out of order: %+v", msgs)
		}
	}

	reloaded, err := ch.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(reloaded) != 4 {
		t.Fatalf("reload should match local list, got %d", len(reloaded))
	}
}

func TestEmptyAndClosedSends(t *testing.T) {
	ch := message.NewChannel(nil, nil)

	if _, err := ch.Send(context.Background(), message.NewComposer("hi")); !errors.Is(err, message.ErrNoConversation) {
		t.Fatalf("expected ErrNoConversation, got %v", err)
	}

	srv := backendtest.New()
	defer srv.Close()
	client, id := openConversation(t, srv)
	ch = message.NewChannel(client, nil)
	if _, err := ch.Load(context.Background(), id); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	composer := message.NewComposer("   ")
	if _, err := ch.Send(context.Background(), composer); !errors.Is(err, message.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if composer.Input() != "   " {
		t.Fatalf("blank input should be left alone")
	}
}

// gatedBackend blocks CreateMessage until released
type gatedBackend struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedBackend) ListMessages(ctx context.Context, id int64) ([]backend.MessageResponse, error) {
	return nil, nil
}

func (g *gatedBackend) CreateMessage(ctx context.Context, id int64, req backend.MessageRequest) (*backend.MessageBatch, error) {
	close(g.started)
	<-g.release
	return &backend.MessageBatch{Messages: []backend.MessageResponse{{
		MessageID:  1,
		Content:    req.Content,
		SenderType: backend.SenderUser,
	}}}, nil
}

func TestOneSendAtATime(t *testing.T) {
	gate := &gatedBackend{started: make(chan struct{}), release: make(chan struct{})}
	ch := message.NewChannel(gate, nil)
	ctx := context.Background()
	if _, err := ch.Load(ctx, 1); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	composer := message.NewComposer("first")
	done := make(chan error)
	go func() {
		_, err := ch.Send(ctx, composer)
		done <- err
	}()
	<-gate.started

	if !composer.Sending() {
		t.Fatalf("composer should report a send in flight")
	}
	if _, err := ch.Send(ctx, message.NewComposer("second")); !errors.Is(err, message.ErrSendInFlight) {
		t.Fatalf("expected ErrSendInFlight, got %v", err)
	}

	close(gate.release)
	if err := <-done; err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if got := ch.Messages(); len(got) != 1 || got[0].Content != "first" {
		t.Fatalf("unexpected list %+v", got)
	}
}
