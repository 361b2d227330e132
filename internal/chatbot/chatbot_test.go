package chatbot_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"AldebaranChat/internal/backendtest"
	"AldebaranChat/internal/chatbot"
	"AldebaranChat/internal/config"
	"AldebaranChat/internal/store"
)

// syncBuffer is shared by the REPL and its spinner goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(t *testing.T, apiURL string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.APIURL = apiURL
	cfg.DataDir = t.TempDir()
	cfg.LogDir = t.TempDir()
	return cfg
}

func run(t *testing.T, cfg config.Config, st store.Store, script ...string) string {
	t.Helper()
	var out syncBuffer
	in := strings.NewReader(strings.Join(script, "\n") + "\n")

	bot, err := chatbot.NewChatBot(cfg, chatbot.WithIO(in, &out), chatbot.WithStore(st))
	if err != nil {
		t.Fatalf("NewChatBot failed: %v", err)
	}
	if err := bot.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return out.String()
}

func expect(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q\n--- output ---\n%s", w, out)
		}
	}
}

func TestConversationSession(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()

	out := run(t, testConfig(t, srv.URL), store.NewMemoryStore(),
		"/conversations",
		"/signup", "ana", "ana@example.com", "pw", "pw",
		"/conversations",
		"/login ana@example.com", "pw",
		"/new Headache",
		"hello",
		"/conversations",
		"/logout",
		"/open 1",
		"/quit",
	)

	expect(t, out,
		"Not signed in",
		"Please log in to open /conversation (use /login)",
		"Successfully create an account!",
		"Welcome, ana",
		"New conversation created!",
		"--- Headache ---",
		"You said: hello",
		"1. Headache (doctor)",
		"You have been logged out",
		"Please log in to open /conversation/1",
		"Goodbye!",
	)
	if n := strings.Count(out, "Please log in to open /conversation"); n != 3 {
		t.Errorf("expected 3 denials, got %d", n)
	}
}

func TestSessionSurvivesRestart(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	cfg := testConfig(t, srv.URL)

	db, err := store.OpenSQLite(cfg.DataDir)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	run(t, cfg, db,
		"/signup", "bo", "bo@example.com", "pw", "pw",
		"/login bo@example.com", "pw",
		"/quit",
	)

	db, err = store.OpenSQLite(cfg.DataDir)
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	out := run(t, cfg, db, "/whoami", "/conversations", "/quit")
	expect(t, out, "Signed in as bo", "bo <bo@example.com>", "No conversations")
}

func TestFailedSendKeepsDraft(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	srv.FailSends(true)

	out := run(t, testConfig(t, srv.URL), store.NewMemoryStore(),
		"/signup", "cy", "cy@example.com", "pw", "pw",
		"/login cy@example.com", "pw",
		"/new",
		"hello",
		"/quit",
	)
	expect(t, out,
		"--- Doctor AI Conversation - ",
		"Failed to process message request (your message was kept, use /retry to send it again)",
	)
	if strings.Contains(out, "You said: hello") {
		t.Errorf("failed send should not produce a reply")
	}
}

func TestSignupValidation(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()

	out := run(t, testConfig(t, srv.URL), store.NewMemoryStore(),
		"/signup", "dee", "not-an-email", "pw", "pw",
		"/signup", "dee", "dee@example.com", "pw", "other",
		"/quit",
	)
	expect(t, out, "[warn] Please input a valid email address", "[warn] Passwords do not match")
	if got := len(srv.Requests()); got != 0 {
		t.Errorf("invalid forms should not reach the backend, saw %d requests", got)
	}
}

func TestHospitals(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	geo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"display_name":"Far Clinic, Town","lat":"0","lon":"5"},{"display_name":"Near Clinic, Town","lat":"0","lon":"1"}]`))
	}))
	defer geo.Close()

	cfg := testConfig(t, srv.URL)
	cfg.GeocoderURL = geo.URL
	zero := 0.0
	cfg.OriginLat, cfg.OriginLon = &zero, &zero

	out := run(t, cfg, store.NewMemoryStore(), "/hospitals", "/hospitals Town", "/quit")
	expect(t, out, "[error] Please enter a location", "Found 2 hospitals", "1. Near Clinic (111.2 km)", "2. Far Clinic",
		"https://www.google.com/maps/search/?api=1&query=0,1")
}

func TestStressFallsBackToLocalScore(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	cfg := testConfig(t, srv.URL)
	cfg.StressURL = deadURL

	script := []string{"/stress", "7"}
	for i := 0; i < 10; i++ {
		script = append(script, "2")
	}
	script = append(script, "/quit")

	out := run(t, cfg, store.NewMemoryStore(), script...)
	expect(t, out,
		"4 = Very Often",
		"Please answer with a number from 0 to 4",
		"10/10 In the last month",
		"Stress service unavailable",
		"PSS-10 score: 20/40 (50.0%) - Moderate perceived stress",
		"Risk: moderate",
	)
}

func TestCancelWhileWaitingForInput(t *testing.T) {
	srv := backendtest.New()
	defer srv.Close()

	in, w := io.Pipe()
	defer w.Close()
	var out syncBuffer
	bot, err := chatbot.NewChatBot(testConfig(t, srv.URL), chatbot.WithIO(in, &out), chatbot.WithStore(store.NewMemoryStore()))
	if err != nil {
		t.Fatalf("NewChatBot failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept waiting for input after cancellation")
	}
	expect(t, out.String(), "Goodbye!")
}
