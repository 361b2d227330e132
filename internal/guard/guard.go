// Package guard gates navigation to protected views on authentication status.
package guard

import (
	"strings"
	"sync"

	"AldebaranChat/internal/auth"
)

// LoginPath is the login entry point denied navigation is sent to
const LoginPath = "/login"

// StatusSource is what the guard watches
type StatusSource interface {
	State() auth.State
	Subscribe(fn func(auth.State)) func()
}

// Decision is the outcome of evaluating one path
type Decision struct {
	Path       string
	Allow      bool
	Status     auth.Status
	RedirectTo string // set when the caller must go to the login entry point
	From       string // the path originally requested
}

// Pending reports whether the guard is still waiting for hydration
func (d Decision) Pending() bool {
	return d.Status == auth.StatusLoading && !d.Allow
}

// Guard decides whether a path may render
type Guard struct {
	source    StatusSource
	protected []string

	mu          sync.Mutex
	current     string
	lastDenied  string
	onChange    func(Decision)
	unsubscribe func()
}

// New watches source and protects every path under the given prefixes
func New(source StatusSource, protected []string) *Guard {
	g := &Guard{
		source:    source,
		protected: normalize(protected),
	}
	g.unsubscribe = source.Subscribe(g.reevaluate)
	return g
}

func normalize(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = "/" + strings.Trim(p, "/")
		if p != "/" {
			out = append(out, p)
		}
	}
	return out
}

// IsProtected reports whether path requires authentication
func (g *Guard) IsProtected(path string) bool {
	for _, prefix := range g.protected {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// Check evaluates path against the current status without navigating
func (g *Guard) Check(path string) Decision {
	status := g.source.State().Status
	d := Decision{Path: path, Status: status}

	if !g.IsProtected(path) {
		d.Allow = true
		return d
	}

	switch status {
	case auth.StatusAuthenticated:
		d.Allow = true
	case auth.StatusUnauthenticated:
		d.RedirectTo = LoginPath
		d.From = path
	}
	return d
}

// Navigate makes path the current view and evaluates it
func (g *Guard) Navigate(path string) Decision {
	d := g.Check(path)

	g.mu.Lock()
	defer g.mu.Unlock()
	if d.RedirectTo != "" {
		g.lastDenied = d.From
		g.current = d.RedirectTo
	} else {
		g.current = path
	}
	return d
}

// Current is the path of the view being shown
func (g *Guard) Current() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Resume returns the last path denied for lack of authentication. The
// client keeps it but does not navigate back to it after login.
func (g *Guard) Resume() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastDenied
}

// OnChange registers fn to receive the re-evaluated decision for the current
// view whenever the authentication status changes
func (g *Guard) OnChange(fn func(Decision)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = fn
}

func (g *Guard) reevaluate(auth.State) {
	g.mu.Lock()
	current := g.current
	fn := g.onChange
	g.mu.Unlock()

	if current == "" {
		return
	}
	d := g.Navigate(current)
	if fn != nil {
		fn(d)
	}
}

// Close stops watching the status source
func (g *Guard) Close() {
	if g.unsubscribe != nil {
		g.unsubscribe()
	}
}
