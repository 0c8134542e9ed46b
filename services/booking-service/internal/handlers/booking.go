package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/lifecycle"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/model"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/outbox"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/payments"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/storage"
)

type BookingHandler struct {
	repo       *storage.BookingRepository
	vendors    *storage.VendorRepository
	outboxRepo *outbox.Repository
	processor  payments.Processor
	logger     *slog.Logger
	cutoffHour int
	now        func() time.Time
}

func NewBookingHandler(repo *storage.BookingRepository, vendors *storage.VendorRepository, outboxRepo *outbox.Repository, processor payments.Processor, logger *slog.Logger, cutoffHour int) *BookingHandler {
	return &BookingHandler{
		repo:       repo,
		vendors:    vendors,
		outboxRepo: outboxRepo,
		processor:  processor,
		logger:     logger,
		cutoffHour: cutoffHour,
		now:        time.Now,
	}
}

type createBookingRequest struct {
	Items         []model.ServiceItem `json:"items"`
	ScheduledDate string              `json:"scheduled_date"`
	ScheduledTime string              `json:"scheduled_time"`
	SalonVisit    bool                `json:"salon_visit"`
	Address       model.Address       `json:"address"`
	Notes         string              `json:"notes"`
	PaymentMethod string              `json:"payment_method"`
	Total         *int64              `json:"total"`
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID := strings.TrimSpace(r.Header.Get(headerUserID))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing user identity")
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid json body")
		return
	}

	booking, err := lifecycle.ValidateCreate(lifecycle.CreateInput{
		CustomerID:    userID,
		Items:         req.Items,
		ScheduledDate: strings.TrimSpace(req.ScheduledDate),
		ScheduledTime: strings.TrimSpace(req.ScheduledTime),
		SalonVisit:    req.SalonVisit,
		Address:       req.Address,
		Notes:         req.Notes,
		PaymentMethod: req.PaymentMethod,
		TotalOverride: req.Total,
	}, h.now(), h.cutoffHour)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := h.repo.Create(ctx, tx, booking); err != nil {
		h.logger.Error("booking insert failed", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to create booking")
		return
	}

	evt, err := outbox.BookingEvent(outbox.EventBookingCreated, booking)
	if err == nil {
		err = h.outboxRepo.Insert(ctx, tx, evt)
	}
	if err != nil {
		h.logger.Error("outbox insert failed", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to record event")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL", "db error")
		return
	}

	h.logger.Info("booking created", "booking_id", booking.ID, "customer_id", userID, "total", booking.TotalCents)
	writeData(w, http.StatusCreated, booking)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter := storage.ListFilter{
		Status:     model.Status(strings.TrimSpace(q.Get("status"))),
		VendorType: strings.TrimSpace(q.Get("vendor_type")),
	}
	if filter.Status != "" && !model.ValidStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "unknown status filter")
		return
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	// Role scoping: customers see their own bookings, vendors theirs,
	// managers and admins everything.
	switch r.Header.Get(headerRole) {
	case "manager", "admin":
	case "vendor":
		filter.VendorID = strings.TrimSpace(r.Header.Get(headerVendorID))
		if filter.VendorID == "" {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "vendor identity missing")
			return
		}
	default:
		filter.CustomerID = strings.TrimSpace(r.Header.Get(headerUserID))
		if filter.CustomerID == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "missing user identity")
			return
		}
	}

	bookings, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("booking list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to list bookings")
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "id is required")
		return
	}

	booking, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeDomainError(w, err)
			return
		}
		h.logger.Error("booking fetch failed", "err", err, "booking_id", id)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to fetch booking")
		return
	}

	if !h.visible(r, &booking) {
		// Hide existence from other customers and vendors.
		writeError(w, http.StatusNotFound, "NOT_FOUND", "booking not found")
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) visible(r *http.Request, b *model.Booking) bool {
	switch r.Header.Get(headerRole) {
	case "manager", "admin":
		return true
	case "vendor":
		vendorID := strings.TrimSpace(r.Header.Get(headerVendorID))
		return vendorID != "" && b.VendorID == vendorID
	default:
		return b.CustomerID == strings.TrimSpace(r.Header.Get(headerUserID))
	}
}

// Vendors serves the anonymous public directory.
func (h *BookingHandler) Vendors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	vendors, err := h.vendors.List(r.Context(), strings.TrimSpace(q.Get("type")), limit, offset)
	if err != nil {
		h.logger.Error("vendor list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "failed to list vendors")
		return
	}
	if vendors == nil {
		vendors = []model.Vendor{}
	}
	writeJSON(w, http.StatusOK, vendors)
}

// mutation is one lifecycle step applied under a row lock with a version
// guard. apply mutates the booking in place; settle, when set, runs after
// apply but before the write so a payment failure aborts the transition.
type mutation struct {
	bookingID string
	version   int64
	eventType string
	apply     func(b *model.Booking) error
	settle    func(ctx context.Context, b *model.Booking) error
}

func (h *BookingHandler) applyMutation(ctx context.Context, m mutation) (*model.Booking, error) {
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	booking, err := h.repo.GetForUpdate(ctx, tx, m.bookingID)
	if err != nil {
		return nil, err
	}
	if err := m.apply(&booking); err != nil {
		return nil, err
	}
	if m.settle != nil {
		if err := m.settle(ctx, &booking); err != nil {
			return nil, err
		}
	}
	if err := h.repo.Update(ctx, tx, &booking, m.version); err != nil {
		return nil, err
	}

	evt, err := outbox.BookingEvent(m.eventType, &booking)
	if err != nil {
		return nil, err
	}
	if err := h.outboxRepo.Insert(ctx, tx, evt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &booking, nil
}
