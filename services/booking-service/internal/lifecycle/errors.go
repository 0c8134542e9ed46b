package lifecycle

import (
	"errors"
	"fmt"

	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/model"
)

// ValidationError reports malformed create/update input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports an illegal lifecycle transition. It carries the
// observed status and the attempted target so callers can render a message.
type InvalidStateError struct {
	Current   model.Status
	Attempted model.Status
	Action    Action
}

func (e *InvalidStateError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("action %s not allowed in status %s", e.Action, e.Current)
	}
	return fmt.Sprintf("transition %s -> %s not allowed", e.Current, e.Attempted)
}

// NotFoundError reports an unknown booking, vendor, or beautician reference.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsInvalidState(err error) bool {
	var se *InvalidStateError
	return errors.As(err, &se)
}

func IsNotFound(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}
