package handlers

import "testing"

func TestPasswordHashing(t *testing.T) {
	password := "pass123"
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := verifyPassword(hash, password); err != nil {
		t.Fatalf("verifyPassword should succeed: %v", err)
	}
	if err := verifyPassword(hash, "wrong-pass"); err == nil {
		t.Fatal("verifyPassword should fail for wrong password")
	}
}

func TestAllowedRole(t *testing.T) {
	for _, role := range []string{"customer", "vendor", "manager"} {
		if !allowedRole(role) {
			t.Fatalf("role %q should register", role)
		}
	}
	// Admins are provisioned out of band; everything unknown is rejected too.
	for _, role := range []string{"admin", "root", "Customer", ""} {
		if allowedRole(role) {
			t.Fatalf("role %q should be rejected", role)
		}
	}
}
