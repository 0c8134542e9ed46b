package outbox

import (
	"encoding/json"

	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/model"
)

// Kafka topic name equals EventType, one topic per lifecycle event.
const (
	EventBookingCreated     = "booking.created.v1"
	EventVendorAssigned     = "booking.vendor_assigned.v1"
	EventVendorAccepted     = "booking.vendor_accepted.v1"
	EventVendorRejected     = "booking.vendor_rejected.v1"
	EventBeauticianAssigned = "booking.beautician_assigned.v1"
	EventStatusChanged      = "booking.status_changed.v1"
)

// Event is the domain event envelope written to the outbox table.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type bookingPayload struct {
	BookingID  string       `json:"booking_id"`
	CustomerID string       `json:"customer_id"`
	VendorID   string       `json:"vendor_id,omitempty"`
	Status     model.Status `json:"status"`
	Total      int64        `json:"total"`
	Reason     string       `json:"reason,omitempty"`
	Version    int64        `json:"version"`
}

// BookingEvent builds the outbox event for a booking after a state change.
func BookingEvent(eventType string, b *model.Booking) (Event, error) {
	payload, err := json.Marshal(bookingPayload{
		BookingID:  b.ID,
		CustomerID: b.CustomerID,
		VendorID:   b.VendorID,
		Status:     b.Status,
		Total:      b.TotalCents,
		Reason:     b.RejectionReason,
		Version:    b.Version,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: "booking",
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
