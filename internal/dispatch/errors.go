package dispatch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a delivery failure.
type ErrorKind string

const (
	// ChatNotFound means the recipient is unreachable (blocked the bot or
	// never started a chat). The recipient is dropped and not retried.
	ChatNotFound ErrorKind = "chat_not_found"
	// MessageRejected means the platform refused the message itself.
	MessageRejected ErrorKind = "message_rejected"
	// Transient covers network errors and rate limits; the next sweep retries.
	Transient ErrorKind = "transient"
)

// ErrNotFound is returned by DeleteMessage/EditMessage when the referenced
// message no longer exists. Callers treat it as success.
var ErrNotFound = errors.New("message not found")

// DeliveryError is a classified failure from the chat-delivery channel.
type DeliveryError struct {
	Kind ErrorKind
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from err, defaulting to Transient for
// unclassified errors so the next sweep retries them.
func KindOf(err error) ErrorKind {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	return Transient
}
