package message

import (
	"strings"
	"sync"
)

// Composer is the input state of a conversation view: the text being typed
// and whether the send control is disabled
type Composer struct {
	mu      sync.Mutex
	input   string
	sending bool
}

// NewComposer returns a composer holding input
func NewComposer(input string) *Composer {
	return &Composer{input: input}
}

// SetInput replaces the text being typed
func (c *Composer) SetInput(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = s
}

// Input is the text currently in the input field
func (c *Composer) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// Sending reports whether a send is in flight
func (c *Composer) Sending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sending
}

// take clears the input and disables sending. It returns the raw text and
// the trimmed draft, or ok=false when there is nothing to send.
func (c *Composer) take() (raw, draft string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sending {
		return "", "", false
	}
	draft = strings.TrimSpace(c.input)
	if draft == "" {
		return "", "", false
	}
	raw = c.input
	c.input = ""
	c.sending = true
	return raw, draft, true
}

func (c *Composer) restore(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = raw
	c.sending = false
}

func (c *Composer) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sending = false
}
