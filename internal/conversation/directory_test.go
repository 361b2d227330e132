package conversation_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"AldebaranChat/internal/api"
	"AldebaranChat/internal/auth"
	"AldebaranChat/internal/backend"
	"AldebaranChat/internal/backendtest"
	"AldebaranChat/internal/conversation"
	"AldebaranChat/internal/store"
)

func signedIn(t *testing.T, srv *backendtest.Server) *api.Client {
	t.Helper()
	client := api.New(srv.URL)
	coord := auth.NewCoordinator(client, store.NewMemoryStore(), nil, nil)
	client.SetTokenSource(coord)
	coord.Hydrate()

	ctx := context.Background()
	form := auth.SignupForm{UserName: "bo", Email: "bo@example.com", Password: "pw", ConfirmPassword: "pw"}
	if _, err := coord.Signup(ctx, form); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if _, err := coord.Login(ctx, backend.LoginRequest{Email: form.Email, Password: form.Password}); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return client
}

func TestDecodeShapes(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		shape conversation.Shape
		count int
	}{
		{"bare array", `[{"conversationId":1,"name":"a"},{"conversationId":2,"name":"b"}]`, conversation.ShapeArray, 2},
		{"empty array", `[]`, conversation.ShapeArray, 0},
		{"wrapped", `{"conversations":[{"conversationId":1,"name":"a"}]}`, conversation.ShapeWrapped, 1},
		{"single", `{"conversationId":9,"name":"only"}`, conversation.ShapeSingle, 1},
		{"null", `null`, conversation.ShapeEmpty, 0},
		{"empty body", ``, conversation.ShapeEmpty, 0},
		{"string", `"oops"`, conversation.ShapeEmpty, 0},
		{"number", `42`, conversation.ShapeEmpty, 0},
		{"unrelated object", `{"message":"hi"}`, conversation.ShapeEmpty, 0},
		{"broken element", `[{"conversationId":"x"}]`, conversation.ShapeArray, 0},
		{"one bad element", `[{"conversationId":1,"name":"a"},{"conversationId":2,"createdAt":"2024-05-01T10:00:00+0000"}]`, conversation.ShapeArray, 1},
		{"wrapped with bad element", `{"conversations":[{"conversationId":"x"},{"conversationId":3}]}`, conversation.ShapeWrapped, 1},
		{"truncated", `[{"conversationId":1`, conversation.ShapeEmpty, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, shape := conversation.Decode([]byte(tt.raw))
			if shape != tt.shape {
				t.Errorf("shape = %v, want %v", shape, tt.shape)
			}
			if len(items) != tt.count {
				t.Errorf("got %d items, want %d", len(items), tt.count)
			}
		})
	}
}

func TestListNormalizesEveryShape(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	client := signedIn(t, srv)
	ctx := context.Background()

	d := conversation.NewDirectory(client, nil)
	if _, err := d.Create(ctx, "first"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	shapes := map[backendtest.ListShape]int{
		backendtest.ShapeArray:   1,
		backendtest.ShapeWrapped: 1,
		backendtest.ShapeSingle:  1,
		backendtest.ShapeNull:    0,
		backendtest.ShapeString:  0,
	}
	for shape, want := range shapes {
		srv.SetListShape(shape)
		list, err := d.List(ctx)
		if err != nil {
			t.Fatalf("%s: List failed: %v", shape, err)
		}
		if list == nil || len(list) != want {
			t.Fatalf("%s: got %v, want %d conversations", shape, list, want)
		}
		if want == 1 && list[0].Name != "first" {
			t.Fatalf("%s: got name %q", shape, list[0].Name)
		}
	}
}

func TestCreatePrepends(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	client := signedIn(t, srv)
	ctx := context.Background()

	d := conversation.NewDirectory(client, nil)
	for _, title := range []string{"one", "two"} {
		if _, err := d.Create(ctx, title); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	if _, err := d.List(ctx); err != nil {
		t.Fatalf("List failed: %v", err)
	}

	created, err := d.Create(ctx, "My Title")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	list := d.Cached()
	if len(list) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(list))
	}
	if list[0].ID != created.ID || list[0].Name != "My Title" {
		t.Fatalf("new conversation should be first, got %+v", list[0])
	}
	if created.SessionType != backend.SessionDoctor {
		t.Fatalf("unexpected session type %q", created.SessionType)
	}
}

func TestUpdateAndRemove(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	client := signedIn(t, srv)
	ctx := context.Background()

	d := conversation.NewDirectory(client, nil)
	a, _ := d.Create(ctx, "alpha")
	b, _ := d.Create(ctx, "beta")

	title := "renamed"
	therapist := backend.SessionTherapist
	if _, err := d.Update(ctx, a.ID, conversation.Patch{Title: &title, SessionType: &therapist}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, ok := d.Find(a.ID)
	if !ok || got.Name != "renamed" || got.SessionType != backend.SessionTherapist {
		t.Fatalf("cache not refreshed after update: %+v", got)
	}

	if err := d.Remove(ctx, b.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := d.Find(b.ID); ok {
		t.Fatalf("removed conversation still cached")
	}
	if got := len(d.Cached()); got != 1 {
		t.Fatalf("expected 1 conversation left, got %d", got)
	}
}

func TestFailuresLeaveCacheUntouched(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	client := signedIn(t, srv)
	ctx := context.Background()

	d := conversation.NewDirectory(client, nil)
	a, _ := d.Create(ctx, "alpha")
	before := d.Cached()

	title := "nope"
	if _, err := d.Update(ctx, 999, conversation.Patch{Title: &title}); err == nil {
		t.Fatalf("expected update of unknown conversation to fail")
	}
	if err := d.Remove(ctx, 999); err == nil {
		t.Fatalf("expected delete of unknown conversation to fail")
	} else if api.StatusOf(err) != 404 {
		t.Fatalf("expected 404 to surface, got %v", err)
	}
	if _, err := d.Get(ctx, 999); err == nil {
		t.Fatalf("expected get of unknown conversation to fail")
	}

	after := d.Cached()
	if len(after) != len(before) || after[0] != before[0] || after[0].ID != a.ID {
		t.Fatalf("cache changed on failure: before %v after %v", before, after)
	}
}

func TestSearch(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	client := signedIn(t, srv)
	ctx := context.Background()

	d := conversation.NewDirectory(client, nil)
	for _, title := range []string{"Headache", "Sleep trouble", "headache again"} {
		if _, err := d.Create(ctx, title); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	if got := d.Search("HEADACHE"); len(got) != 2 {
		t.Fatalf("expected 2 matches, got %v", got)
	}
	if got := d.Search("  "); len(got) != 3 {
		t.Fatalf("blank search should return everything, got %d", len(got))
	}
	if got := d.Search("fever"); len(got) != 0 {
		t.Fatalf("expected no matches, got %v", got)
	}
}

// blockingBackend hands each list call's reply channel to the test
type blockingBackend struct {
	conversation.Backend
	pending chan chan json.RawMessage
}

func (b *blockingBackend) ListConversations(ctx context.Context) (json.RawMessage, error) {
	reply := make(chan json.RawMessage)
	b.pending <- reply
	return <-reply, nil
}

func TestStaleListIsDiscarded(t *testing.T) {
	stub := &blockingBackend{pending: make(chan chan json.RawMessage)}
	d := conversation.NewDirectory(stub, nil)
	ctx := context.Background()

	slowDone := make(chan []conversation.Conversation)
	go func() {
		list, _ := d.List(ctx)
		slowDone <- list
	}()
	slow := <-stub.pending

	fastDone := make(chan struct{})
	go func() {
		d.List(ctx)
		close(fastDone)
	}()
	fast := <-stub.pending

	fast <- json.RawMessage(`[{"conversationId":2,"name":"fresh"}]`)
	<-fastDone

	slow <- json.RawMessage(`[{"conversationId":1,"name":"stale"}]`)
	returned := <-slowDone

	if len(returned) != 1 || returned[0].Name != "stale" {
		t.Fatalf("caller should still see its own response, got %v", returned)
	}
	cached := d.Cached()
	if len(cached) != 1 || cached[0].Name != "fresh" {
		t.Fatalf("stale response overwrote newer list: %v", cached)
	}
}

func TestDefaultTitle(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	if got, want := conversation.DefaultTitle(at), "Doctor AI Conversation - 3/9/2024, 2:05:07 PM"; got != want {
		t.Fatalf("DefaultTitle = %q, want %q", got, want)
	}
}

func TestListMalformedBodyIsEmpty(t *testing.T) {
	bodies := []string{
		`<html>gateway</html>`,
		`[{"conversationId":1`,
		`{"conversationId":`,
	}

	for _, body := range bodies {
		t.Run(body, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(body))
			}))
			defer srv.Close()

			d := conversation.NewDirectory(api.New(srv.URL), nil)
			list, err := d.List(context.Background())
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if list == nil || len(list) != 0 {
				t.Errorf("List = %#v, want empty non-nil list", list)
			}
			if got := d.Cached(); len(got) != 0 {
				t.Errorf("cache holds %d conversations, want 0", len(got))
			}
		})
	}
}
