package notification

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownChannel is returned when a job names a channel that is not configured.
var ErrUnknownChannel = errors.New("unknown notification channel")

// ChannelFailure records a failed delivery on one channel for one recipient.
type ChannelFailure struct {
	Channel   ChannelKind
	Recipient Recipient
	Err       error
}

func (f ChannelFailure) Error() string {
	return fmt.Sprintf("%s delivery to %s failed: %v", f.Channel, f.Recipient.Email, f.Err)
}

func (f ChannelFailure) Unwrap() error {
	return f.Err
}

// DeliveryError aggregates every channel failure of one job execution.
type DeliveryError struct {
	JobID    string
	Failures []ChannelFailure
}

func (e *DeliveryError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("notification job %s: %d channel deliveries failed: %s",
		e.JobID, len(e.Failures), strings.Join(msgs, "; "))
}

// Unwrap exposes each failure to errors.Is and errors.As.
func (e *DeliveryError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
