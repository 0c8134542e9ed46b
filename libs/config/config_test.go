package config

import "testing"

func TestIntInRange(t *testing.T) {
	t.Setenv("CUTOFF", "18")
	n, err := IntInRange("CUTOFF", "12", 1, 23)
	if err != nil || n != 18 {
		t.Fatalf("expected 18, got %d err %v", n, err)
	}

	t.Setenv("CUTOFF", "")
	n, err = IntInRange("CUTOFF", "12", 1, 23)
	if err != nil || n != 12 {
		t.Fatalf("fallback expected 12, got %d err %v", n, err)
	}

	t.Setenv("CUTOFF", "99")
	if _, err := IntInRange("CUTOFF", "12", 1, 23); err == nil {
		t.Fatal("out-of-range value should fail")
	}

	t.Setenv("CUTOFF", "abc")
	if _, err := IntInRange("CUTOFF", "12", 1, 23); err == nil {
		t.Fatal("non-integer value should fail")
	}
}

func TestPort(t *testing.T) {
	t.Setenv("PORT", "8083")
	p, err := Port("PORT", "8080")
	if err != nil || p != "8083" {
		t.Fatalf("expected 8083, got %q err %v", p, err)
	}

	t.Setenv("PORT", "0")
	if _, err := Port("PORT", "8080"); err == nil {
		t.Fatal("port 0 should fail")
	}
}
