package payments

import (
	"context"
	"strings"
	"testing"
)

func TestCardMethod(t *testing.T) {
	for _, m := range []string{"card", "Card", " upi ", "wallet"} {
		if !CardMethod(m) {
			t.Fatalf("%q should settle through the processor", m)
		}
	}
	for _, m := range []string{"cash", "pay_at_salon", ""} {
		if CardMethod(m) {
			t.Fatalf("%q must not reach the processor", m)
		}
	}
}

func TestMockProcessorReferences(t *testing.T) {
	var p MockProcessor
	ref, err := p.Capture(context.Background(), "bk-1", 15000)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if !strings.HasPrefix(ref, "mock_pi_") {
		t.Fatalf("unexpected capture ref %q", ref)
	}

	ref2, err := p.Capture(context.Background(), "bk-1", 15000)
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if ref == ref2 {
		t.Fatal("references must be unique")
	}

	rref, err := p.Refund(context.Background(), "bk-1", ref, 15000)
	if err != nil {
		t.Fatalf("refund failed: %v", err)
	}
	if !strings.HasPrefix(rref, "mock_re_") {
		t.Fatalf("unexpected refund ref %q", rref)
	}
}
