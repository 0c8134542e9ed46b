package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/lifecycle"
	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/model"
)

func TestAllowStatusChange(t *testing.T) {
	booking := &model.Booking{ID: "bk-1", CustomerID: "cust-1", VendorID: "vend-1", Status: model.StatusConfirmed}

	if err := allowStatusChange("manager", "", "", booking, model.StatusRefunded); err != nil {
		t.Fatalf("manager should pass: %v", err)
	}
	if err := allowStatusChange("vendor", "", "vend-1", booking, model.StatusInProgress); err != nil {
		t.Fatalf("owning vendor should pass: %v", err)
	}
	if err := allowStatusChange("vendor", "", "vend-2", booking, model.StatusInProgress); !lifecycle.IsNotFound(err) {
		t.Fatalf("foreign vendor should see not found, got %v", err)
	}
	if err := allowStatusChange("vendor", "", "vend-1", booking, model.StatusRefunded); !lifecycle.IsValidation(err) {
		t.Fatalf("vendors must not refund, got %v", err)
	}
	if err := allowStatusChange("customer", "cust-1", "", booking, model.StatusCancelled); err != nil {
		t.Fatalf("customer cancel should pass: %v", err)
	}
	if err := allowStatusChange("customer", "cust-1", "", booking, model.StatusCompleted); !lifecycle.IsValidation(err) {
		t.Fatalf("customers may only cancel, got %v", err)
	}
	if err := allowStatusChange("customer", "cust-2", "", booking, model.StatusCancelled); !lifecycle.IsNotFound(err) {
		t.Fatalf("foreign customer should see not found, got %v", err)
	}
}

func TestPayable(t *testing.T) {
	card := &model.Booking{PaymentMethod: "card", TotalCents: 15000}
	if !payable(card) {
		t.Fatal("card booking with a total should settle")
	}
	cash := &model.Booking{PaymentMethod: "cash", TotalCents: 15000}
	if payable(cash) {
		t.Fatal("cash booking must not settle")
	}
	free := &model.Booking{PaymentMethod: "card", TotalCents: 0}
	if payable(free) {
		t.Fatal("zero-total booking must not settle")
	}
}

func TestVisibleScoping(t *testing.T) {
	h := &BookingHandler{}
	booking := &model.Booking{ID: "bk-1", CustomerID: "cust-1", VendorID: "vend-1"}

	cases := []struct {
		role, user, vendor string
		want               bool
	}{
		{"admin", "", "", true},
		{"manager", "", "", true},
		{"vendor", "", "vend-1", true},
		{"vendor", "", "vend-2", false},
		{"vendor", "", "", false},
		{"customer", "cust-1", "", true},
		{"customer", "cust-2", "", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/api/v1/bookings/get?id=bk-1", nil)
		r.Header.Set(headerRole, tc.role)
		r.Header.Set(headerUserID, tc.user)
		r.Header.Set(headerVendorID, tc.vendor)
		if got := h.visible(r, booking); got != tc.want {
			t.Fatalf("role=%s user=%s vendor=%s: visible=%v, want %v", tc.role, tc.user, tc.vendor, got, tc.want)
		}
	}
}

func TestOwnedBy(t *testing.T) {
	h := &BookingHandler{}
	booking := &model.Booking{ID: "bk-1", VendorID: "vend-1"}
	if err := h.ownedBy(booking, "vend-1"); err != nil {
		t.Fatalf("owner should pass: %v", err)
	}
	if err := h.ownedBy(booking, "vend-2"); !lifecycle.IsNotFound(err) {
		t.Fatalf("foreign vendor should see not found, got %v", err)
	}
	if err := h.ownedBy(booking, ""); !lifecycle.IsNotFound(err) {
		t.Fatalf("blank vendor id should see not found, got %v", err)
	}
}

func TestAppendNote(t *testing.T) {
	cases := []struct {
		existing string
		note     string
		want     string
	}{
		{"", "vendor was late", "vendor was late"},
		{"ring the bell twice", "", "ring the bell twice"},
		{"ring the bell twice", "cancelled by customer", "ring the bell twice\ncancelled by customer"},
		{"ring the bell twice", "  cancelled by customer  ", "ring the bell twice\ncancelled by customer"},
	}
	for _, tc := range cases {
		if got := appendNote(tc.existing, tc.note); got != tc.want {
			t.Fatalf("appendNote(%q, %q) = %q, want %q", tc.existing, tc.note, got, tc.want)
		}
	}
}

func TestCanAssignBeautician(t *testing.T) {
	booking := &model.Booking{ID: "bk-1", VendorID: "vend-1"}
	cases := []struct {
		role   string
		vendor string
		ok     bool
	}{
		{"vendor", "vend-1", true},
		{"vendor", "vend-2", false},
		{"vendor", "", false},
		{"manager", "", true},
		{"admin", "", true},
		{"customer", "", false},
	}
	for _, tc := range cases {
		err := canAssignBeautician(tc.role, tc.vendor, booking)
		if tc.ok && err != nil {
			t.Fatalf("role=%s vendor=%s: expected pass, got %v", tc.role, tc.vendor, err)
		}
		if !tc.ok && !lifecycle.IsNotFound(err) {
			t.Fatalf("role=%s vendor=%s: expected not found, got %v", tc.role, tc.vendor, err)
		}
	}
}
