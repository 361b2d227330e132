package chatbot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"AldebaranChat/internal/api"
	"AldebaranChat/internal/auth"
	"AldebaranChat/internal/config"
	"AldebaranChat/internal/conversation"
	"AldebaranChat/internal/guard"
	"AldebaranChat/internal/locator"
	"AldebaranChat/internal/message"
	"AldebaranChat/internal/notify"
	"AldebaranChat/internal/store"
	"AldebaranChat/internal/stress"
	"AldebaranChat/internal/telemetry"

	"github.com/charmbracelet/glamour"
)

// ChatBot represents the main application
type ChatBot struct {
	config   config.Config
	logger   *slog.Logger
	shutdown func()

	in  *bufio.Scanner
	out io.Writer

	readOnce sync.Once
	lines    chan string
	readErr  error
	quit     chan struct{}

	store     store.Store
	client    *api.Client
	auth      *auth.Coordinator
	guard     *guard.Guard
	directory *conversation.Directory
	channel   *message.Channel
	composer  *message.Composer
	locator   *locator.Client
	stress    *stress.Client
	notifier  *notify.Notifier
	renderer  *glamour.TermRenderer
}

// Option customizes a ChatBot
type Option func(*ChatBot)

// WithIO replaces stdin and stdout
func WithIO(in io.Reader, out io.Writer) Option {
	return func(cb *ChatBot) {
		cb.in = bufio.NewScanner(in)
		cb.out = out
	}
}

// WithStore replaces the SQLite local storage
func WithStore(s store.Store) Option {
	return func(cb *ChatBot) { cb.store = s }
}

// NewChatBot creates a new ChatBot instance
func NewChatBot(cfg config.Config, opts ...Option) (*ChatBot, error) {
	logger, err := telemetry.InitLogger(cfg.LogDir, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx := context.Background()
	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	cb := &ChatBot{
		config:   cfg,
		logger:   logger,
		shutdown: shutdown,
		in:       bufio.NewScanner(os.Stdin),
		out:      os.Stdout,
		quit:     make(chan struct{}),
		composer: message.NewComposer(""),
	}
	for _, opt := range opts {
		opt(cb)
	}

	if cb.store == nil {
		db, err := store.OpenSQLite(cfg.DataDir)
		if err != nil {
			shutdown()
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		cb.store = db
	}

	inst := telemetry.NewInstruments(tracer, meter)
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	common := []api.Option{
		api.WithHTTPClient(httpClient),
		api.WithLogger(logger),
		api.WithInstruments(inst),
	}

	cb.client = api.New(cfg.APIURL, common...)
	cb.auth = auth.NewCoordinator(cb.client, cb.store, logger, meter)
	cb.client.SetTokenSource(cb.auth)

	cb.guard = guard.New(cb.auth, cfg.ProtectedPaths)
	cb.guard.OnChange(cb.onGuardChange)

	cb.directory = conversation.NewDirectory(cb.client, logger)
	cb.channel = message.NewChannel(cb.client, logger)
	cb.locator = locator.New(locator.NewHTTP(cfg.GeocoderURL, common...), logger)
	cb.stress = stress.New(stress.NewHTTP(cfg.StressURL, common...), logger)
	cb.notifier = notify.New(cb.out)

	cb.renderer, err = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		logger.Warn("markdown rendering disabled", "error", err)
	}

	return cb, nil
}

// onGuardChange closes the open conversation once it may no longer be shown
func (cb *ChatBot) onGuardChange(d guard.Decision) {
	if d.Allow || d.RedirectTo == "" {
		return
	}
	if cb.channel.ConversationID() != 0 {
		cb.channel.Close()
	}
	cb.directory.Clear()
	cb.logger.Info("navigation denied", "from", d.From, "redirect", d.RedirectTo)
}

// enter runs path through the route guard and explains a denial
func (cb *ChatBot) enter(path string) bool {
	d := cb.guard.Navigate(path)
	switch {
	case d.Allow:
		return true
	case d.Pending():
		cb.notifier.Info("Still loading, please wait")
	default:
		cb.notifier.Warning(fmt.Sprintf("Please log in to open %s (use /login)", d.From))
	}
	return false
}

// render formats assistant markdown for the terminal
func (cb *ChatBot) render(text string) string {
	if cb.renderer == nil {
		return text
	}
	out, err := cb.renderer.Render(text)
	if err != nil {
		cb.logger.Warn("failed to render markdown", "error", err)
		return text
	}
	return strings.TrimRight(out, "\n")
}

// startReader moves the blocking input scan onto its own goroutine so a
// cancelled context is noticed while waiting at a prompt
func (cb *ChatBot) startReader() {
	cb.readOnce.Do(func() {
		cb.lines = make(chan string)
		go func() {
			defer close(cb.lines)
			for cb.in.Scan() {
				select {
				case cb.lines <- cb.in.Text():
				case <-cb.quit:
					return
				}
			}
			cb.readErr = cb.in.Err()
		}()
	})
}

// readLine waits for the next input line. It reports false at end of input
// or once ctx is done.
func (cb *ChatBot) readLine(ctx context.Context) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	cb.startReader()
	select {
	case <-ctx.Done():
		return "", false
	case text, ok := <-cb.lines:
		return strings.TrimSpace(text), ok
	}
}

// ask prints label and reads one line
func (cb *ChatBot) ask(ctx context.Context, label string) (string, bool) {
	fmt.Fprint(cb.out, label)
	return cb.readLine(ctx)
}

// busy shows a spinner while fn runs
func (cb *ChatBot) busy(label string, fn func() error) error {
	stop := cb.notifier.Spin(label)
	defer stop()
	return fn()
}

func (cb *ChatBot) prompt() string {
	if id := cb.channel.ConversationID(); id != 0 {
		return fmt.Sprintf("[#%d] You: ", id)
	}
	return "> "
}

// Close releases storage and flushes telemetry
func (cb *ChatBot) Close() {
	close(cb.quit)
	cb.guard.Close()
	if err := cb.store.Close(); err != nil {
		cb.logger.Error("failed to close local storage", "error", err)
	}
	if cb.shutdown != nil {
		cb.shutdown()
	}
}

// Run starts the chat bot
func (cb *ChatBot) Run(ctx context.Context) error {
	defer cb.Close()

	state := cb.auth.Hydrate()

	fmt.Fprintln(cb.out, "=== Aldebaran Health ===")
	if state.Status == auth.StatusAuthenticated {
		fmt.Fprintf(cb.out, "Signed in as %s\n", state.User.UserName)
	} else {
		fmt.Fprintln(cb.out, "Not signed in. Use /login or /signup")
	}
	fmt.Fprintln(cb.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(cb.out)

	for {
		fmt.Fprint(cb.out, cb.prompt())
		input, ok := cb.readLine(ctx)
		if !ok {
			if ctx.Err() != nil {
				fmt.Fprintln(cb.out)
			} else if err := cb.readErr; err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			break
		}
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(ctx, input)
			if err != nil {
				cb.notifier.Error(err.Error())
				cb.logger.Error("command error", "command", strings.Fields(input)[0], "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		cb.composer.SetInput(input)
		if err := cb.send(ctx); err != nil {
			cb.notifier.Error(err.Error())
		}
	}

	fmt.Fprintln(cb.out, "Goodbye!")
	return nil
}
