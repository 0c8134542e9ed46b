package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/lifecycle"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/model"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/outbox"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/payments"
)

func payable(b *model.Booking) bool {
	return payments.CardMethod(b.PaymentMethod) && b.TotalCents > 0
}

type setStatusRequest struct {
	BookingID string `json:"booking_id"`
	Version   int64  `json:"version"`
	Status    string `json:"status"`
	Notes     string `json:"notes"`
}

var errPayment = errors.New("payment settlement failed")

// SetStatus is the explicit status override: terminal states, IN_PROGRESS,
// and refunds. Completion captures payment for card methods; a refund pays
// the money back before the transition commits.
func (h *BookingHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json body")
		return
	}
	req.BookingID = strings.TrimSpace(req.BookingID)
	if req.BookingID == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "booking_id is required")
		return
	}
	target := model.Status(strings.TrimSpace(req.Status))

	role := r.Header.Get(headerRole)
	userID := strings.TrimSpace(r.Header.Get(headerUserID))
	vendorID := strings.TrimSpace(r.Header.Get(headerVendorID))

	booking, err := h.applyMutation(r.Context(), mutation{
		bookingID: req.BookingID,
		version:   req.Version,
		eventType: outbox.EventStatusChanged,
		apply: func(b *model.Booking) error {
			if err := allowStatusChange(role, userID, vendorID, b, target); err != nil {
				return err
			}
			if err := lifecycle.ForceStatus(b.Status, target); err != nil {
				return err
			}
			b.Status = target
			b.Notes = appendNote(b.Notes, req.Notes)
			return nil
		},
		settle: h.settle(target),
	})
	if err != nil {
		if errors.Is(err, errPayment) {
			writeError(w, http.StatusBadGateway, "PAYMENT_FAILED", "payment provider rejected the operation")
			return
		}
		writeDomainError(w, err)
		return
	}

	h.logger.Info("booking status changed", "booking_id", booking.ID, "status", booking.Status, "role", role)
	writeData(w, http.StatusOK, booking)
}

// allowStatusChange scopes the override per role: customers may cancel their
// own booking, vendors may run their own bookings through to completion,
// managers and admins may do anything including refunds.
func allowStatusChange(role, userID, vendorID string, b *model.Booking, target model.Status) error {
	switch role {
	case "manager", "admin":
		return nil
	case "vendor":
		if vendorID == "" || b.VendorID != vendorID {
			return &lifecycle.NotFoundError{Kind: "booking", ID: b.ID}
		}
		switch target {
		case model.StatusInProgress, model.StatusCompleted, model.StatusCancelled:
			return nil
		}
		return &lifecycle.ValidationError{Field: "status", Reason: fmt.Sprintf("vendors cannot set status %s", target)}
	default:
		if b.CustomerID != userID {
			return &lifecycle.NotFoundError{Kind: "booking", ID: b.ID}
		}
		if target != model.StatusCancelled {
			return &lifecycle.ValidationError{Field: "status", Reason: "customers may only cancel"}
		}
		return nil
	}
}

// appendNote adds a transition note below the existing notes so the
// customer's creation notes survive a cancellation or completion remark.
func appendNote(existing, note string) string {
	note = strings.TrimSpace(note)
	if note == "" {
		return existing
	}
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}

func (h *BookingHandler) settle(target model.Status) func(ctx context.Context, b *model.Booking) error {
	switch target {
	case model.StatusCompleted:
		return func(ctx context.Context, b *model.Booking) error {
			if !payable(b) {
				return nil
			}
			ref, err := h.processor.Capture(ctx, b.ID, b.TotalCents)
			if err != nil {
				h.logger.Error("payment capture failed", "err", err, "booking_id", b.ID)
				return errPayment
			}
			b.PaymentRef = ref
			return nil
		}
	case model.StatusRefunded:
		return func(ctx context.Context, b *model.Booking) error {
			if !payable(b) || b.PaymentRef == "" {
				return nil
			}
			ref, err := h.processor.Refund(ctx, b.ID, b.PaymentRef, b.TotalCents)
			if err != nil {
				h.logger.Error("payment refund failed", "err", err, "booking_id", b.ID)
				return errPayment
			}
			b.PaymentRef = ref
			return nil
		}
	default:
		return nil
	}
}
