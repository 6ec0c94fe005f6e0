package push

import (
	"sync"
	"time"
)

// trackedTicket remembers who an accepted ticket was sent to
type trackedTicket struct {
	userID    string
	token     string
	trackedAt time.Time
}

// ReceiptTracker is a TTL set of accepted ticket ids awaiting receipts
type ReceiptTracker struct {
	tickets map[string]trackedTicket
	ttl     time.Duration
	delay   time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

// NewReceiptTracker creates a tracker. Tickets become due after delay and
// are forgotten after ttl.
func NewReceiptTracker(delay, ttl time.Duration) *ReceiptTracker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ReceiptTracker{
		tickets: make(map[string]trackedTicket),
		ttl:     ttl,
		delay:   delay,
		now:     time.Now,
	}
}

// Track remembers an accepted ticket
func (r *ReceiptTracker) Track(ticketID, userID, token string) {
	if ticketID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets[ticketID] = trackedTicket{userID: userID, token: token, trackedAt: r.now()}
}

// Due returns ticket ids old enough to have receipts and evicts expired ones
func (r *ReceiptTracker) Due() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var due []string
	for id, t := range r.tickets {
		age := now.Sub(t.trackedAt)
		if age >= r.ttl {
			delete(r.tickets, id)
			continue
		}
		if age >= r.delay {
			due = append(due, id)
		}
	}
	return due
}

// Lookup returns the recipient of a tracked ticket
func (r *ReceiptTracker) Lookup(ticketID string) (userID, token string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[ticketID]
	return t.userID, t.token, ok
}

// Forget drops a ticket once its receipt is handled
func (r *ReceiptTracker) Forget(ticketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tickets, ticketID)
}

// Len returns the number of tracked tickets
func (r *ReceiptTracker) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tickets)
}
