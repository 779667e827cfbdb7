package devmode

import (
	"strings"
	"sync"
)

// ConsoleLine is the payload of a console event
type ConsoleLine struct {
	Line string `json:"line"`
}

// ConsoleWriter mirrors server console output to dev clients, one event per
// line. It is meant to sit behind log.SetOutput next to the real output.
type ConsoleWriter struct {
	hub Broadcaster

	mu      sync.Mutex
	partial string
}

// NewConsoleWriter creates a writer broadcasting through hub
func NewConsoleWriter(hub Broadcaster) *ConsoleWriter {
	return &ConsoleWriter{hub: hub}
}

// Write buffers p and broadcasts every completed line
func (c *ConsoleWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	lines, rest := splitLines(c.partial + string(p))
	c.partial = rest
	c.mu.Unlock()

	for _, line := range lines {
		c.hub.Broadcast(EventConsole, ConsoleLine{Line: line})
	}
	return len(p), nil
}

// splitLines separates complete lines from a trailing partial line
func splitLines(buf string) (lines []string, rest string) {
	for {
		i := strings.IndexByte(buf, '\n')
		if i < 0 {
			return lines, buf
		}
		lines = append(lines, strings.TrimRight(buf[:i], "\r"))
		buf = buf[i+1:]
	}
}
