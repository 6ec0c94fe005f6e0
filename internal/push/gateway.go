package push

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// Ticket statuses
const (
	TicketStatusOK    = "ok"
	TicketStatusError = "error"
)

// Gateway error codes reported in tickets and receipts
const (
	ErrorDeviceNotRegistered = "DeviceNotRegistered"
	ErrorMessageTooBig       = "MessageTooBig"
	ErrorMessageRateExceeded = "MessageRateExceeded"
	ErrorMismatchSenderID    = "MismatchSenderId"
	ErrorInvalidCredentials  = "InvalidCredentials"
)

// Gateway is a push delivery service
type Gateway interface {
	// IsValidToken checks the token format without a network call
	IsValidToken(token string) bool

	// Send delivers one chunk and returns exactly one ticket per message, in order
	Send(ctx context.Context, messages []OutboundMessage) ([]Ticket, error)

	// Receipts fetches delivery receipts for accepted ticket ids. Ids that
	// are not ready yet are absent from the result.
	Receipts(ctx context.Context, ids []string) (map[string]Receipt, error)
}

// OutboundMessage is a single push addressed to a device token
type OutboundMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title,omitempty"`
	Body  string            `json:"body,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

// ErrorDetails carries the machine-readable error code
type ErrorDetails struct {
	Error string `json:"error,omitempty"`
}

// Ticket is the gateway's immediate answer for one message
type Ticket struct {
	Status  string        `json:"status"`
	ID      string        `json:"id,omitempty"`
	Message string        `json:"message,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorCode returns the ticket error code, or "" for accepted tickets
func (t Ticket) ErrorCode() string {
	if t.Details == nil {
		return ""
	}
	return t.Details.Error
}

// Err converts a rejected ticket into an error
func (t Ticket) Err() error {
	if t.Status == TicketStatusOK {
		return nil
	}
	switch code := t.ErrorCode(); code {
	case ErrorDeviceNotRegistered:
		return fmt.Errorf("%w: %s", domain.ErrDeviceNotRegistered, t.Message)
	case "":
		return fmt.Errorf("push ticket rejected: %s", t.Message)
	default:
		return fmt.Errorf("push ticket rejected (%s): %s", code, t.Message)
	}
}

// Receipt is the final delivery outcome of an accepted ticket
type Receipt struct {
	Status  string        `json:"status"`
	Message string        `json:"message,omitempty"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorCode returns the receipt error code, or "" for delivered receipts
func (r Receipt) ErrorCode() string {
	if r.Details == nil {
		return ""
	}
	return r.Details.Error
}
