package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/lifecycle"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/model"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/outbox"
)

type vendorApproveRequest struct {
	BookingID string            `json:"booking_id"`
	Version   int64             `json:"version"`
	Employee  *model.Beautician `json:"employee"`
}

// Approve accepts a booking on behalf of the calling vendor. When the vendor
// names an employee in the same call the booking skips the beautician queue.
func (h *BookingHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	vendorID := strings.TrimSpace(r.Header.Get(headerVendorID))
	var req vendorApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json body")
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "booking_id is required")
		return
	}

	action := lifecycle.ActionVendorAccept
	eventType := outbox.EventVendorAccepted
	if req.Employee != nil {
		if strings.TrimSpace(req.Employee.Name) == "" {
			writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "employee.name is required")
			return
		}
		action = lifecycle.ActionVendorAcceptEmployee
		eventType = outbox.EventBeauticianAssigned
	}

	booking, err := h.applyMutation(r.Context(), mutation{
		bookingID: strings.TrimSpace(req.BookingID),
		version:   req.Version,
		eventType: eventType,
		apply: func(b *model.Booking) error {
			if err := h.ownedBy(b, vendorID); err != nil {
				return err
			}
			next, err := lifecycle.Next(b.Status, action)
			if err != nil {
				return err
			}
			b.Status = next
			if req.Employee != nil {
				emp := *req.Employee
				if emp.ID == "" {
					emp.ID = uuid.NewString()
				}
				b.Beautician = &emp
			}
			return nil
		},
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("vendor approved booking", "booking_id", booking.ID, "vendor_id", vendorID, "status", booking.Status)
	writeData(w, http.StatusOK, booking)
}

type vendorRejectRequest struct {
	BookingID string `json:"booking_id"`
	Version   int64  `json:"version"`
	Reason    string `json:"reason"`
}

// Reject sends the booking back to the manager queue for reassignment.
func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	vendorID := strings.TrimSpace(r.Header.Get(headerVendorID))
	var req vendorRejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json body")
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "booking_id is required")
		return
	}

	booking, err := h.applyMutation(r.Context(), mutation{
		bookingID: strings.TrimSpace(req.BookingID),
		version:   req.Version,
		eventType: outbox.EventVendorRejected,
		apply: func(b *model.Booking) error {
			if err := h.ownedBy(b, vendorID); err != nil {
				return err
			}
			next, err := lifecycle.Next(b.Status, lifecycle.ActionVendorReject)
			if err != nil {
				return err
			}
			b.Status = next
			b.VendorID = ""
			b.RejectionReason = strings.TrimSpace(req.Reason)
			return nil
		},
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("vendor rejected booking", "booking_id", booking.ID, "vendor_id", vendorID, "reason", booking.RejectionReason)
	writeData(w, http.StatusOK, booking)
}

type assignBeauticianRequest struct {
	BookingID  string           `json:"booking_id"`
	Version    int64            `json:"version"`
	Beautician model.Beautician `json:"beautician"`
}

// AssignBeautician locks in the person doing the work and confirms the
// booking. Managers and admins may assign on any booking; vendors only on
// bookings routed to them.
func (h *BookingHandler) AssignBeautician(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	role := r.Header.Get(headerRole)
	vendorID := strings.TrimSpace(r.Header.Get(headerVendorID))
	var req assignBeauticianRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json body")
		return
	}
	if strings.TrimSpace(req.BookingID) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "booking_id is required")
		return
	}
	if strings.TrimSpace(req.Beautician.Name) == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "beautician.name is required")
		return
	}

	booking, err := h.applyMutation(r.Context(), mutation{
		bookingID: strings.TrimSpace(req.BookingID),
		version:   req.Version,
		eventType: outbox.EventBeauticianAssigned,
		apply: func(b *model.Booking) error {
			if err := canAssignBeautician(role, vendorID, b); err != nil {
				return err
			}
			next, err := lifecycle.Next(b.Status, lifecycle.ActionAssignBeautician)
			if err != nil {
				return err
			}
			b.Status = next
			beautician := req.Beautician
			if beautician.ID == "" {
				beautician.ID = uuid.NewString()
			}
			b.Beautician = &beautician
			return nil
		},
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("beautician assigned", "booking_id", booking.ID, "vendor_id", vendorID, "beautician", booking.Beautician.Name)
	writeData(w, http.StatusOK, booking)
}

// ownedBy rejects vendor actions on bookings routed to somebody else.
// Accept and reject stay vendor-only: they are the vendor's answer to an
// assignment, and managers reroute through assign-vendor instead.
func (h *BookingHandler) ownedBy(b *model.Booking, vendorID string) error {
	if vendorID == "" || b.VendorID != vendorID {
		return &lifecycle.NotFoundError{Kind: "booking", ID: b.ID}
	}
	return nil
}

// canAssignBeautician scopes beautician assignment: managers and admins may
// act on any booking, vendors only on their own.
func canAssignBeautician(role, vendorID string, b *model.Booking) error {
	if role == "manager" || role == "admin" {
		return nil
	}
	if vendorID == "" || b.VendorID != vendorID {
		return &lifecycle.NotFoundError{Kind: "booking", ID: b.ID}
	}
	return nil
}
