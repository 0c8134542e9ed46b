package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/vivekvardhan7/homesaloon/services/booking-service/internal/model"
)

var allActions = []Action{
	ActionAssignVendor,
	ActionVendorAccept,
	ActionVendorAcceptEmployee,
	ActionVendorReject,
	ActionAssignBeautician,
}

// legalEdges mirrors the documented edge set independently of the production
// table, so a table regression shows up as a test failure.
var legalEdges = map[model.Status]map[Action]model.Status{
	model.StatusPending:         {ActionAssignVendor: model.StatusAwaitingVendorResponse},
	model.StatusAwaitingManager: {ActionAssignVendor: model.StatusAwaitingVendorResponse},
	model.StatusAwaitingVendorResponse: {
		ActionVendorAccept:         model.StatusAwaitingBeautician,
		ActionVendorAcceptEmployee: model.StatusBeauticianAssigned,
		ActionVendorReject:         model.StatusAwaitingManager,
	},
	model.StatusAwaitingBeautician: {ActionAssignBeautician: model.StatusConfirmed},
	model.StatusBeauticianAssigned: {ActionAssignBeautician: model.StatusConfirmed},
}

func TestNext_FullProduct(t *testing.T) {
	for _, status := range model.AllStatuses {
		for _, action := range allActions {
			next, err := Next(status, action)
			want, legal := legalEdges[status][action]

			if legal {
				if err != nil {
					t.Fatalf("%s + %s: expected %s, got error %v", status, action, want, err)
				}
				if next != want {
					t.Fatalf("%s + %s: expected %s, got %s", status, action, want, next)
				}
				continue
			}

			if err == nil {
				t.Fatalf("%s + %s: expected InvalidStateError, got %s", status, action, next)
			}
			var ise *InvalidStateError
			if !errors.As(err, &ise) {
				t.Fatalf("%s + %s: expected InvalidStateError, got %T", status, action, err)
			}
			if ise.Current != status {
				t.Fatalf("error should carry current status %s, got %s", status, ise.Current)
			}

			// Idempotent failure: the same illegal call fails the same way again.
			_, err2 := Next(status, action)
			if err2 == nil || err2.Error() != err.Error() {
				t.Fatalf("%s + %s: repeated illegal call differs: %v vs %v", status, action, err, err2)
			}
		}
	}
}

func TestForceStatus_TerminalRules(t *testing.T) {
	for _, status := range model.AllStatuses {
		for _, target := range []model.Status{model.StatusCompleted, model.StatusCancelled} {
			err := ForceStatus(status, target)
			if status.Terminal() || status == target {
				if err == nil {
					t.Fatalf("ForceStatus(%s, %s) should fail", status, target)
				}
			} else if err != nil {
				t.Fatalf("ForceStatus(%s, %s) should succeed, got %v", status, target, err)
			}
		}
	}

	if err := ForceStatus(model.StatusCancelled, model.StatusRefunded); err != nil {
		t.Fatalf("refund after cancellation should be allowed, got %v", err)
	}
	if err := ForceStatus(model.StatusCompleted, model.StatusRefunded); err != nil {
		t.Fatalf("refund after completion should be allowed, got %v", err)
	}
	if err := ForceStatus(model.StatusRefunded, model.StatusCancelled); err == nil {
		t.Fatal("refunded booking must not move again")
	}
	if err := ForceStatus(model.StatusConfirmed, model.StatusInProgress); err != nil {
		t.Fatalf("confirmed booking may start, got %v", err)
	}
	if err := ForceStatus(model.StatusPending, model.StatusInProgress); err == nil {
		t.Fatal("pending booking must not start")
	}
	if err := ForceStatus(model.StatusPending, model.StatusAwaitingVendorResponse); err == nil {
		t.Fatal("non-terminal targets must not be forced")
	}
	if err := ForceStatus(model.StatusPending, "SHIPPED"); err == nil {
		t.Fatal("unknown status must be rejected")
	}
}

func validCreateInput() CreateInput {
	return CreateInput{
		CustomerID: "cust-1",
		Items: []model.ServiceItem{
			{ServiceID: "svc-facial", Name: "Gold Facial", Quantity: 1, UnitPrice: 15000},
		},
		ScheduledDate: "2026-09-10",
		ScheduledTime: "11:00",
		Address:       model.Address{Street: "12 MG Road", City: "Hyderabad", State: "TS", Zip: "500001"},
		PaymentMethod: "card",
	}
}

func testNow() time.Time {
	return time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
}

func TestValidateCreate(t *testing.T) {
	booking, err := ValidateCreate(validCreateInput(), testNow(), 0)
	if err != nil {
		t.Fatalf("ValidateCreate failed: %v", err)
	}
	if booking.Status != model.StatusPending {
		t.Fatalf("new booking must be PENDING, got %s", booking.Status)
	}
	if booking.TotalCents != 15000 {
		t.Fatalf("expected total 15000, got %d", booking.TotalCents)
	}
}

func TestValidateCreate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateInput)
	}{
		{"empty items", func(in *CreateInput) { in.Items = nil }},
		{"zero quantity", func(in *CreateInput) { in.Items[0].Quantity = 0 }},
		{"negative price", func(in *CreateInput) { in.Items[0].UnitPrice = -1 }},
		{"negative override", func(in *CreateInput) { v := int64(-500); in.TotalOverride = &v }},
		{"no address", func(in *CreateInput) { in.Address = model.Address{} }},
		{"past date", func(in *CreateInput) { in.ScheduledDate = "2026-08-31" }},
		{"bad date", func(in *CreateInput) { in.ScheduledDate = "31/08/2026" }},
		{"bad time", func(in *CreateInput) { in.ScheduledTime = "9am" }},
		{"no customer", func(in *CreateInput) { in.CustomerID = " " }},
	}
	for _, tc := range cases {
		in := validCreateInput()
		tc.mutate(&in)
		if _, err := ValidateCreate(in, testNow(), 0); !IsValidation(err) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, err)
		}
	}
}

func TestValidateCreate_SameDayCutoff(t *testing.T) {
	in := validCreateInput()
	in.ScheduledDate = "2026-09-01"

	if _, err := ValidateCreate(in, testNow(), 18); err != nil {
		t.Fatalf("same-day before cutoff should pass, got %v", err)
	}

	evening := time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC)
	if _, err := ValidateCreate(in, evening, 18); !IsValidation(err) {
		t.Fatal("same-day after cutoff should be rejected")
	}

	salon := validCreateInput()
	salon.SalonVisit = true
	salon.Address = model.Address{}
	if _, err := ValidateCreate(salon, testNow(), 0); err != nil {
		t.Fatalf("salon visit needs no address, got %v", err)
	}

	override := validCreateInput()
	v := int64(12000)
	override.TotalOverride = &v
	booking, err := ValidateCreate(override, testNow(), 0)
	if err != nil || booking.TotalCents != 12000 {
		t.Fatalf("explicit total override should win, got %d err %v", booking.TotalCents, err)
	}
}

// TestLifecycle_ManagerVendorFlow walks the reassignment scenario end to end:
// reject sends the booking back to the manager queue, a second vendor accepts,
// a beautician confirms it, and completion is terminal.
func TestLifecycle_ManagerVendorFlow(t *testing.T) {
	booking, err := ValidateCreate(validCreateInput(), testNow(), 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if booking.TotalCents != 15000 || booking.Status != model.StatusPending {
		t.Fatalf("unexpected created booking: %+v", booking)
	}

	step := func(action Action, want model.Status) {
		t.Helper()
		next, err := Next(booking.Status, action)
		if err != nil {
			t.Fatalf("%s from %s failed: %v", action, booking.Status, err)
		}
		if next != want {
			t.Fatalf("%s: expected %s, got %s", action, want, next)
		}
		booking.Status = next
	}

	step(ActionAssignVendor, model.StatusAwaitingVendorResponse)
	step(ActionVendorReject, model.StatusAwaitingManager)
	step(ActionAssignVendor, model.StatusAwaitingVendorResponse)
	step(ActionVendorAccept, model.StatusAwaitingBeautician)
	step(ActionAssignBeautician, model.StatusConfirmed)

	if err := ForceStatus(booking.Status, model.StatusCompleted); err != nil {
		t.Fatalf("completion failed: %v", err)
	}
	booking.Status = model.StatusCompleted

	if _, err := Next(booking.Status, ActionAssignVendor); !IsInvalidState(err) {
		t.Fatal("completed booking must reject further actions")
	}
}

func TestLifecycle_AcceptBeforeAssignment(t *testing.T) {
	booking, err := ValidateCreate(validCreateInput(), testNow(), 0)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err = Next(booking.Status, ActionVendorAccept)
	var ise *InvalidStateError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if booking.Status != model.StatusPending {
		t.Fatalf("status must be unchanged, got %s", booking.Status)
	}
}
