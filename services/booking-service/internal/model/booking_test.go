package model

import (
	"encoding/json"
	"testing"
)

func TestBookingWireShape(t *testing.T) {
	in := Booking{
		ID:         "bk-1",
		CustomerID: "cust-1",
		VendorID:   "vend-1",
		Items: []ServiceItem{
			{ServiceID: "svc-facial", Name: "Gold Facial", Quantity: 2, UnitPrice: 7500},
		},
		ScheduledDate: "2026-09-10",
		ScheduledTime: "11:00",
		Address:       Address{Street: "12 MG Road", City: "Hyderabad", State: "TS", Zip: "500001"},
		PaymentMethod: "card",
		TotalCents:    15000,
		Status:        StatusAwaitingManager,
		Version:       3,
	}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var out Booking
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if out.Status != StatusAwaitingManager {
		t.Fatalf("status lost on the wire: %s", out.Status)
	}
	if out.TotalCents != 15000 {
		t.Fatalf("total lost on the wire: %d", out.TotalCents)
	}
	if out.Version != 3 {
		t.Fatalf("version lost on the wire: %d", out.Version)
	}
	if out.ItemsTotal() != 15000 {
		t.Fatalf("items total mismatch: %d", out.ItemsTotal())
	}

	// Status serializes as the bare enum string, not an object.
	var probe map[string]any
	if err := json.Unmarshal(raw, &probe); err != nil {
		t.Fatalf("probe unmarshal failed: %v", err)
	}
	if probe["status"] != "AWAITING_MANAGER" {
		t.Fatalf("unexpected status encoding: %v", probe["status"])
	}
	if probe["total"] != float64(15000) {
		t.Fatalf("unexpected total encoding: %v", probe["total"])
	}
}

func TestStatusHelpers(t *testing.T) {
	for _, s := range AllStatuses {
		if !ValidStatus(s) {
			t.Fatalf("%s should be valid", s)
		}
	}
	if ValidStatus("SHIPPED") {
		t.Fatal("unknown status accepted")
	}

	terminal := map[Status]bool{StatusCompleted: true, StatusCancelled: true, StatusRefunded: true}
	for _, s := range AllStatuses {
		if s.Terminal() != terminal[s] {
			t.Fatalf("Terminal() wrong for %s", s)
		}
	}
}
