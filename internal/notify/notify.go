// Package notify holds user-facing notifications (toasts) raised by the
// application controller and drained by whatever renders them.
package notify

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDuration is how long a notification stays visible
const DefaultDuration = 3 * time.Second

// MaxPending is how many undrained notifications a Queue keeps.
// Older ones are dropped first.
const MaxPending = 50

// Kind is the notification variant
type Kind int

const (
	Success Kind = iota
	Error
	Info
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Error:
		return "error"
	case Info:
		return "info"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// MarshalJSON encodes the kind by name
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Notification is a single message for the user
type Notification struct {
	ID       string        `json:"id"`
	Kind     Kind          `json:"type"`
	Message  string        `json:"message"`
	Duration time.Duration `json:"-"`
}

// MarshalJSON adds the duration in milliseconds, which is what renderers use
func (n Notification) MarshalJSON() ([]byte, error) {
	type plain Notification
	return json.Marshal(struct {
		plain
		DurationMS int64 `json:"duration"`
	}{plain(n), n.Duration.Milliseconds()})
}

// Notifier is the capability handed to components that report to the user
type Notifier interface {
	Notify(kind Kind, message string)
}

// Queue is an ordered, concurrency-safe notification queue
type Queue struct {
	mu      sync.Mutex
	pending []Notification
}

// NewQueue creates an empty Queue
func NewQueue() *Queue {
	return &Queue{}
}

// Notify appends a notification with the default duration
func (q *Queue) Notify(kind Kind, message string) {
	q.Push(kind, message, DefaultDuration)
}

// Push appends a notification and returns it
func (q *Queue) Push(kind Kind, message string, duration time.Duration) Notification {
	n := Notification{
		ID:       uuid.NewString(),
		Kind:     kind,
		Message:  message,
		Duration: duration,
	}
	q.mu.Lock()
	q.pending = append(q.pending, n)
	if over := len(q.pending) - MaxPending; over > 0 {
		q.pending = append(q.pending[:0:0], q.pending[over:]...)
	}
	q.mu.Unlock()
	return n
}

// Pending returns a copy of the queued notifications, oldest first
func (q *Queue) Pending() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, len(q.pending))
	copy(out, q.pending)
	return out
}

// Drain returns and clears the queued notifications
func (q *Queue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Dismiss removes the notification with the given id.
// It reports whether one was removed.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.pending {
		if n.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}
