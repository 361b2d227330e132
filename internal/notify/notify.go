// Package notify prints transient notifications and a loading indicator to
// the terminal.
package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/spinner"
)

// Kind is the severity of a notification
type Kind int

const (
	KindSuccess Kind = iota
	KindError
	KindInfo
	KindWarning
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	case KindWarning:
		return "warning"
	default:
		return "info"
	}
}

func (k Kind) prefix() string {
	switch k {
	case KindSuccess:
		return "[ok]"
	case KindError:
		return "[error]"
	case KindWarning:
		return "[warn]"
	default:
		return "[info]"
	}
}

// DefaultTTL is how long a notification stays relevant
const DefaultTTL = 3 * time.Second

// Notification is one message shown to the user
type Notification struct {
	Kind    Kind
	Message string
	At      time.Time
	TTL     time.Duration
}

// Expired reports whether the notification would have been dismissed by now
func (n Notification) Expired(now time.Time) bool {
	return !now.Before(n.At.Add(n.TTL))
}

// Notifier writes notifications and spinners to one terminal
type Notifier struct {
	mu       sync.Mutex
	w        io.Writer
	ttl      time.Duration
	now      func() time.Time
	spinner  spinner.Spinner
	last     Notification
	spinning int
}

type Option func(*Notifier)

func WithTTL(d time.Duration) Option {
	return func(n *Notifier) { n.ttl = d }
}

func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// WithSpinner picks the frame set drawn by Spin
func WithSpinner(sp spinner.Spinner) Option {
	return func(n *Notifier) { n.spinner = sp }
}

// WithInterval overrides the spinner frame interval
func WithInterval(d time.Duration) Option {
	return func(n *Notifier) { n.spinner.FPS = d }
}

func New(w io.Writer, opts ...Option) *Notifier {
	n := &Notifier{
		w:        w,
		ttl:      DefaultTTL,
		now:      time.Now,
		spinner:  spinner.Line,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Show prints message with its severity and remembers it as the current
// notification, replacing the previous one
func (n *Notifier) Show(kind Kind, message string) Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	note := Notification{Kind: kind, Message: message, At: n.now(), TTL: n.ttl}
	n.last = note
	if n.spinning > 0 {
		fmt.Fprint(n.w, "\r\033[K")
	}
	fmt.Fprintf(n.w, "%s %s\n", kind.prefix(), message)
	return note
}

func (n *Notifier) Success(message string) Notification { return n.Show(KindSuccess, message) }
func (n *Notifier) Error(message string) Notification { return n.Show(KindError, message) }
func (n *Notifier) Info(message string) Notification { return n.Show(KindInfo, message) }
func (n *Notifier) Warning(message string) Notification { return n.Show(KindWarning, message) }

// Current returns the latest notification unless it has expired
func (n *Notifier) Current() (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last.Message == "" || n.last.Expired(n.now()) {
		return Notification{}, false
	}
	return n.last, true
}

// Spin draws a loading indicator labelled label until the returned func is
// called. The stop func is safe to call more than once.
func (n *Notifier) Spin(label string) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	frames, interval := n.spinner.Frames, n.spinner.FPS
	if len(frames) == 0 {
		frames = spinner.Line.Frames
	}
	if interval <= 0 {
		interval = spinner.Line.FPS
	}
	width := 0
	for _, f := range frames {
		width = max(width, utf8.RuneCountInString(f))
	}

	n.mu.Lock()
	n.spinning++
	fmt.Fprintf(n.w, "\r%s %s", frames[0], label)
	n.mu.Unlock()

	go func() {
		defer close(finished)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for i := 1; ; i++ {
			select {
			case <-done:
				return
			case <-ticker.C:
				n.mu.Lock()
				fmt.Fprintf(n.w, "\r%s %s", frames[i%len(frames)], label)
				n.mu.Unlock()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-finished
			n.mu.Lock()
			n.spinning--
			fmt.Fprint(n.w, "\r"+strings.Repeat(" ", width+1+utf8.RuneCountInString(label))+"\r")
			n.mu.Unlock()
		})
	}
}
