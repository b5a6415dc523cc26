package testing

import (
	"strings"
	"sync"

	"github.com/lrstanley/girc"
)

// RecordingSender captures outbound lines instead of writing them to a socket.
type RecordingSender struct {
	mu     sync.Mutex
	events []*girc.Event
}

func NewRecordingSender() *RecordingSender {
	return &RecordingSender{}
}

func (r *RecordingSender) Send(e *girc.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, &girc.Event{Command: e.Command, Params: append([]string(nil), e.Params...)})
}

// Events returns every recorded line in send order.
func (r *RecordingSender) Events() []*girc.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*girc.Event(nil), r.events...)
}

// Lines renders the recorded lines as "COMMAND param param...".
func (r *RecordingSender) Lines() []string {
	var out []string
	for _, e := range r.Events() {
		out = append(out, strings.Join(append([]string{e.Command}, e.Params...), " "))
	}
	return out
}

// Commands returns the lines whose command matches cmd.
func (r *RecordingSender) Commands(cmd string) []*girc.Event {
	var out []*girc.Event
	for _, e := range r.Events() {
		if e.Command == cmd {
			out = append(out, e)
		}
	}
	return out
}

func (r *RecordingSender) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
