// Package notifications decides who hears about inspection lifecycle events
// and hands the messages to a Hub. Delivery transports live outside this repo.
package notifications

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Kind identifies the lifecycle event behind a notification.
type Kind string

const (
	KindCreated        Kind = "inspection_created"
	KindReprogrammed   Kind = "inspection_reprogrammed"
	KindCutoffReminder Kind = "cutoff_reminder"
)

// Notification is a message about one inspection.
type Notification struct {
	Kind         Kind      `json:"kind"`
	InspectionID string    `json:"inspectionId"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	Link         string    `json:"link,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (n Notification) key() string {
	return string(n.Kind) + "|" + n.InspectionID
}

// Hub accepts notifications for recipients.
type Hub interface {
	Dispatch(ctx context.Context, recipients []string, n Notification) error
	Consume(recipient string) []Notification
}

// MemoryHub keeps undelivered notifications per recipient. A second
// notification of the same kind for the same inspection replaces the first.
type MemoryHub struct {
	mu      sync.Mutex
	pending map[string][]Notification
}

// NewMemoryHub creates an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{pending: make(map[string][]Notification)}
}

// Dispatch queues n for every non-blank recipient.
func (h *MemoryHub) Dispatch(ctx context.Context, recipients []string, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, r := range recipients {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		queue := h.pending[r]
		replaced := false
		for i := range queue {
			if queue[i].key() == n.key() {
				queue[i] = n
				replaced = true
				break
			}
		}
		if !replaced {
			queue = append(queue, n)
		}
		h.pending[r] = queue
	}
	return nil
}

// Consume returns and clears the queue of recipient.
func (h *MemoryHub) Consume(recipient string) []Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.pending[recipient]
	delete(h.pending, recipient)
	return out
}

// Pending reports the queue length of recipient without consuming it.
func (h *MemoryHub) Pending(recipient string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending[recipient])
}
