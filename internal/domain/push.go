package domain

import "time"

// PushToken is the live device token of a user
type PushToken struct {
	UserID       string    `json:"user_id"`
	Token        string    `json:"token"`
	RegisteredAt time.Time `json:"registered_at"`
}

// PushMessage is one push addressed to a user, resolved to a token at send time
type PushMessage struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// PushJob is the unit of work on the push queue
type PushJob struct {
	ID         string        `json:"id"`
	EventID    string        `json:"event_id,omitempty"`
	Messages   []PushMessage `json:"messages"`
	Attempt    int           `json:"attempt"`
	EnqueuedAt time.Time     `json:"enqueued_at"`
}
