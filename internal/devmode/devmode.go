// Package devmode implements the development mode of the frontend server.
// Live reload is handled by the livereload package; server console output is
// mirrored to the browser over a server-sent event stream.
package devmode

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/matthewmueller/livereload"
)

// EventsPath is where dev clients subscribe to the console stream
const EventsPath = "/_dev/events"

// heartbeatInterval keeps idle streams open through proxies
const heartbeatInterval = 15 * time.Second

//go:embed client.js
var clientJS string

// Options selects the development features to enable
type Options struct {
	HMR     bool
	Console bool
}

// Mode bundles the running development mode components. Console is nil
// when console passthrough is off.
type Mode struct {
	Hub     *Hub
	Console *ConsoleWriter

	opts  Options
	wrap  func(http.Handler) http.Handler
	watch func(ctx context.Context)
}

// New prepares development mode for the assets under root
func New(root string, opts Options) (*Mode, error) {
	m := &Mode{
		Hub:  NewHub(),
		opts: opts,
	}

	if opts.HMR {
		if _, err := os.Stat(root); err != nil {
			return nil, fmt.Errorf("failed to watch %s: %w", root, err)
		}
		lr := livereload.New(slog.Default())
		m.wrap = func(next http.Handler) http.Handler {
			return lr.Middleware(next)
		}
		m.watch = func(ctx context.Context) {
			lr.Watch(ctx, root)
		}
	}

	if opts.Console {
		m.Console = NewConsoleWriter(m.Hub)
	}

	return m, nil
}

// Middleware adds live reload to next when HMR is on
func (m *Mode) Middleware(next http.Handler) http.Handler {
	if m.wrap == nil {
		return next
	}
	return m.wrap(next)
}

// Script returns the console client injected into the entry document, or nil
// when console passthrough is off
func (m *Mode) Script() []byte {
	if !m.opts.Console {
		return nil
	}
	return []byte(fmt.Sprintf(
		"<script data-endpoint=%q>\n%s</script>\n",
		EventsPath, clientJS,
	))
}

// Run keeps the file watch and heartbeat going until ctx is cancelled
func (m *Mode) Run(ctx context.Context) error {
	go m.Hub.RunHeartbeat(ctx, heartbeatInterval)

	if m.watch != nil {
		m.watch(ctx)
	}
	<-ctx.Done()
	return nil
}

// Close ends every open console stream
func (m *Mode) Close() error {
	m.Hub.CloseAll()
	return nil
}
