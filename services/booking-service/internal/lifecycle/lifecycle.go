// Package lifecycle owns the booking state machine: which actor actions are
// legal in which status, and what status they lead to. It does no I/O, so an
// illegal transition can be rejected before a transaction is opened, and
// rejecting it twice yields the same error twice.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/model"
)

type Action string

const (
	ActionAssignVendor         Action = "assign_vendor"
	ActionVendorAccept         Action = "vendor_accept"
	ActionVendorAcceptEmployee Action = "vendor_accept_employee"
	ActionVendorReject         Action = "vendor_reject"
	ActionAssignBeautician     Action = "assign_beautician"
)

// transitions is the complete edge set for actor actions. Terminal states and
// IN_PROGRESS are reached through ForceStatus, not through an action edge.
var transitions = map[model.Status]map[Action]model.Status{
	model.StatusPending: {
		ActionAssignVendor: model.StatusAwaitingVendorResponse,
	},
	model.StatusAwaitingManager: {
		ActionAssignVendor: model.StatusAwaitingVendorResponse,
	},
	model.StatusAwaitingVendorResponse: {
		ActionVendorAccept:         model.StatusAwaitingBeautician,
		ActionVendorAcceptEmployee: model.StatusBeauticianAssigned,
		ActionVendorReject:         model.StatusAwaitingManager,
	},
	model.StatusAwaitingBeautician: {
		ActionAssignBeautician: model.StatusConfirmed,
	},
	model.StatusBeauticianAssigned: {
		ActionAssignBeautician: model.StatusConfirmed,
	},
}

// Next returns the status an action leads to from current, or an
// InvalidStateError when no such edge exists.
func Next(current model.Status, action Action) (model.Status, error) {
	if edges, ok := transitions[current]; ok {
		if next, ok := edges[action]; ok {
			return next, nil
		}
	}
	return "", &InvalidStateError{Current: current, Action: action}
}

// ForceStatus validates the explicit status escape hatch: any authorized actor
// may force a terminal state from any non-terminal one, IN_PROGRESS is
// reachable once a beautician is locked in, and a refund may follow a
// cancellation or completion.
func ForceStatus(current, target model.Status) error {
	if !model.ValidStatus(target) {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", target)}
	}
	if target == current {
		return &InvalidStateError{Current: current, Attempted: target}
	}

	switch target {
	case model.StatusCompleted, model.StatusCancelled:
		if current.Terminal() {
			return &InvalidStateError{Current: current, Attempted: target}
		}
		return nil
	case model.StatusRefunded:
		if current.Terminal() && current != model.StatusCancelled && current != model.StatusCompleted {
			return &InvalidStateError{Current: current, Attempted: target}
		}
		return nil
	case model.StatusInProgress:
		if current == model.StatusConfirmed || current == model.StatusBeauticianAssigned {
			return nil
		}
		return &InvalidStateError{Current: current, Attempted: target}
	default:
		// Non-terminal targets other than IN_PROGRESS are never forced; they
		// are only reachable through their action edges.
		return &InvalidStateError{Current: current, Attempted: target}
	}
}

// CreateInput is the validated shape of a booking creation request.
type CreateInput struct {
	CustomerID    string
	Items         []model.ServiceItem
	ScheduledDate string
	ScheduledTime string
	SalonVisit    bool
	Address       model.Address
	Notes         string
	PaymentMethod string
	TotalOverride *int64
}

// SameDayCutoffHour is the default local hour after which same-day bookings
// are rejected.
const SameDayCutoffHour = 18

// ValidateCreate checks a creation request and returns the booking-to-be in
// status PENDING, with the total computed from line items unless overridden.
func ValidateCreate(in CreateInput, now time.Time, cutoffHour int) (*model.Booking, error) {
	if strings.TrimSpace(in.CustomerID) == "" {
		return nil, &ValidationError{Field: "customer_id", Reason: "required"}
	}
	if len(in.Items) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "at least one service line item is required"}
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.ServiceID) == "" {
			return nil, &ValidationError{Field: "items", Reason: fmt.Sprintf("item %d missing service_id", i)}
		}
		if item.Quantity < 1 {
			return nil, &ValidationError{Field: "items", Reason: fmt.Sprintf("item %d quantity must be >= 1", i)}
		}
		if item.UnitPrice < 0 {
			return nil, &ValidationError{Field: "items", Reason: fmt.Sprintf("item %d unit price must be >= 0", i)}
		}
	}

	if !in.SalonVisit && in.Address.Empty() {
		return nil, &ValidationError{Field: "address", Reason: "address required unless salon visit"}
	}

	if err := validateSchedule(in.ScheduledDate, in.ScheduledTime, now, cutoffHour); err != nil {
		return nil, err
	}

	booking := &model.Booking{
		CustomerID:    strings.TrimSpace(in.CustomerID),
		Items:         in.Items,
		ScheduledDate: in.ScheduledDate,
		ScheduledTime: in.ScheduledTime,
		SalonVisit:    in.SalonVisit,
		Address:       in.Address,
		Notes:         strings.TrimSpace(in.Notes),
		PaymentMethod: strings.TrimSpace(in.PaymentMethod),
		Status:        model.StatusPending,
	}

	booking.TotalCents = booking.ItemsTotal()
	if in.TotalOverride != nil {
		if *in.TotalOverride < 0 {
			return nil, &ValidationError{Field: "total", Reason: "total must be >= 0"}
		}
		booking.TotalCents = *in.TotalOverride
	}
	if booking.TotalCents < 0 {
		return nil, &ValidationError{Field: "total", Reason: "total must be >= 0"}
	}
	return booking, nil
}

func validateSchedule(dateStr, timeStr string, now time.Time, cutoffHour int) error {
	if cutoffHour <= 0 || cutoffHour > 23 {
		cutoffHour = SameDayCutoffHour
	}
	day, err := time.ParseInLocation("2006-01-02", dateStr, now.Location())
	if err != nil {
		return &ValidationError{Field: "scheduled_date", Reason: "must be YYYY-MM-DD"}
	}
	if _, err := time.Parse("15:04", timeStr); err != nil {
		return &ValidationError{Field: "scheduled_time", Reason: "must be HH:MM"}
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if day.Before(today) {
		return &ValidationError{Field: "scheduled_date", Reason: "must not be in the past"}
	}
	if day.Equal(today) && now.Hour() >= cutoffHour {
		return &ValidationError{Field: "scheduled_date", Reason: "same-day bookings are closed for today"}
	}
	return nil
}
