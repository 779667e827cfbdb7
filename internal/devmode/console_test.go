package devmode

import (
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// recorder captures broadcasts
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Broadcast(eventType string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Type: eventType, Data: data})
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestConsoleWriter_Lines(t *testing.T) {
	tests := []struct {
		name   string
		writes []string
		want   []string
	}{
		{name: "single line", writes: []string{"hello\n"}, want: []string{"hello"}},
		{name: "two lines in one write", writes: []string{"a\nb\n"}, want: []string{"a", "b"}},
		{name: "line split across writes", writes: []string{"hel", "lo\nwor", "ld\n"}, want: []string{"hello", "world"}},
		{name: "partial line held back", writes: []string{"pending"}, want: nil},
		{name: "crlf", writes: []string{"dos\r\n"}, want: []string{"dos"}},
		{name: "empty line", writes: []string{"\n"}, want: []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			writer := NewConsoleWriter(rec)

			for _, chunk := range tt.writes {
				n, err := writer.Write([]byte(chunk))
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if n != len(chunk) {
					t.Errorf("expected %d bytes written, got %d", len(chunk), n)
				}
			}

			var got []string
			for _, event := range rec.snapshot() {
				if event.Type != EventConsole {
					t.Errorf("unexpected event type %q", event.Type)
				}
				got = append(got, event.Data.(ConsoleLine).Line)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("lines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConsoleWriter_BehindLogger(t *testing.T) {
	// GIVEN
	hub := NewHub()
	client := NewClient()
	hub.Register(client)
	logger := log.New(io.MultiWriter(io.Discard, NewConsoleWriter(hub)), "", 0)

	// WHEN
	logger.Printf("Server listening on %s", ":5173")

	// THEN
	select {
	case message := <-client.Messages:
		want := `"line":"Server listening on :5173"`
		if !strings.Contains(message, want) {
			t.Errorf("expected %s in %q", want, message)
		}
	default:
		t.Fatal("no console event delivered")
	}
}
