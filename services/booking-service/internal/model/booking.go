package model

import "time"

// Status is the booking lifecycle state. Transitions between statuses are
// owned by the lifecycle package; nothing else may invent an edge.
type Status string

const (
	StatusPending                Status = "PENDING"
	StatusAwaitingManager        Status = "AWAITING_MANAGER"
	StatusAwaitingVendorResponse Status = "AWAITING_VENDOR_RESPONSE"
	StatusAwaitingBeautician     Status = "AWAITING_BEAUTICIAN"
	StatusBeauticianAssigned     Status = "BEAUTICIAN_ASSIGNED"
	StatusConfirmed              Status = "CONFIRMED"
	StatusInProgress             Status = "IN_PROGRESS"
	StatusCompleted              Status = "COMPLETED"
	StatusCancelled              Status = "CANCELLED"
	StatusRefunded               Status = "REFUNDED"
)

// AllStatuses lists every lifecycle state, used for input validation and for
// exhaustive transition tests.
var AllStatuses = []Status{
	StatusPending,
	StatusAwaitingManager,
	StatusAwaitingVendorResponse,
	StatusAwaitingBeautician,
	StatusBeauticianAssigned,
	StatusConfirmed,
	StatusInProgress,
	StatusCompleted,
	StatusCancelled,
	StatusRefunded,
}

func ValidStatus(s Status) bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal statuses are retained forever; a terminal booking admits no further
// lifecycle edges except CANCELLED/COMPLETED -> REFUNDED.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRefunded
}

type ServiceItem struct {
	ServiceID string `json:"service_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"` // cents
}

func (i ServiceItem) Subtotal() int64 {
	return int64(i.Quantity) * i.UnitPrice
}

type Address struct {
	Street string   `json:"street"`
	City   string   `json:"city"`
	State  string   `json:"state"`
	Zip    string   `json:"zip"`
	Lat    *float64 `json:"lat,omitempty"`
	Lng    *float64 `json:"lng,omitempty"`
}

func (a Address) Empty() bool {
	return a.Street == "" && a.City == "" && a.State == "" && a.Zip == ""
}

type Beautician struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type Booking struct {
	ID              string        `json:"id"`
	CustomerID      string        `json:"customer_id"`
	VendorID        string        `json:"vendor_id,omitempty"`
	Beautician      *Beautician   `json:"beautician,omitempty"`
	Items           []ServiceItem `json:"items"`
	ScheduledDate   string        `json:"scheduled_date"` // YYYY-MM-DD
	ScheduledTime   string        `json:"scheduled_time"` // HH:MM
	SalonVisit      bool          `json:"salon_visit"`
	Address         Address       `json:"address"`
	Notes           string        `json:"notes,omitempty"`
	PaymentMethod   string        `json:"payment_method"`
	PaymentRef      string        `json:"payment_ref,omitempty"`
	TotalCents      int64         `json:"total"`
	Status          Status        `json:"status"`
	RejectionReason string        `json:"rejection_reason,omitempty"`
	Version         int64         `json:"version"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// ItemsTotal is the line-item sum; Booking.TotalCents equals this unless the
// creation request carried an explicit override.
func (b *Booking) ItemsTotal() int64 {
	var total int64
	for _, item := range b.Items {
		total += item.Subtotal()
	}
	return total
}

// Vendor is a directory entry: a salon or at-home service business that can
// accept or reject assignments.
type Vendor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"` // "salon" or "home"
	Active bool   `json:"active"`
}
