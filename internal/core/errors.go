package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrInternal        = errors.New("internal error")
)

func invalidArgument(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, msg)
}

func internalError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInternal, err)
}

// DeliveryError reports a reply that was written to the chat log but never
// reached the user's channel. The reply can be recovered by ChatLogID.
type DeliveryError struct {
	ChatLogID string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("reply saved as %s but not delivered: %v", e.ChatLogID, e.Err)
}

func (e *DeliveryError) Unwrap() []error {
	return []error{ErrInternal, e.Err}
}
