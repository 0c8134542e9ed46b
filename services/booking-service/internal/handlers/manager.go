package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/lifecycle"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/model"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/outbox"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/storage"
)

type assignVendorRequest struct {
	BookingID string `json:"booking_id"`
	VendorID  string `json:"vendor_id"`
	Version   int64  `json:"version"`
}

// AssignVendor routes a PENDING or re-queued booking to a vendor for review.
func (h *BookingHandler) AssignVendor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req assignVendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json body")
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	req.VendorID = strings.TrimSpace(req.VendorID)
	if req.BookingID == "" || req.VendorID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "booking_id and vendor_id are required")
		return
	}

	ctx := r.Context()
	vendor, err := h.vendors.Get(ctx, req.VendorID)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "vendor not found")
			return
		}
		h.logger.Error("vendor lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "vendor lookup failed")
		return
	}
	if !vendor.Active {
		writeError(w, http.StatusUnprocessableEntity, "VENDOR_INACTIVE", "vendor is not accepting bookings")
		return
	}

	booking, err := h.applyMutation(ctx, mutation{
		bookingID: req.BookingID,
		version:   req.Version,
		eventType: outbox.EventVendorAssigned,
		apply: func(b *model.Booking) error {
			next, err := lifecycle.Next(b.Status, lifecycle.ActionAssignVendor)
			if err != nil {
				return err
			}
			b.Status = next
			b.VendorID = vendor.ID
			b.RejectionReason = ""
			return nil
		},
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.Info("vendor assigned", "booking_id", booking.ID, "vendor_id", vendor.ID)
	writeData(w, http.StatusOK, booking)
}
