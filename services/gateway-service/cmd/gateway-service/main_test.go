package main

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vivekvardhan7/homesaloon/libs/auth"
	"github.com/vivekvardhan7/homesaloon/libs/upstream"
)

func TestRequireRole(t *testing.T) {
	h := requireRole(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), "manager", "admin")

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("X-Role", "customer")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rw.Code)
	}

	reqOK := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqOK.Header.Set("X-Role", "manager")
	rwOK := httptest.NewRecorder()
	h.ServeHTTP(rwOK, reqOK)
	if rwOK.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rwOK.Code)
	}
}

func TestRequireAuthHS256(t *testing.T) {
	secret := "test-secret"
	claims := auth.Claims{
		Sub:      "user-1",
		VendorID: "vend-1",
		Role:     "vendor",
		Iat:      time.Now().Unix(),
		Exp:      time.Now().Add(1 * time.Hour).Unix(),
	}
	token, err := auth.SignHS256(claims, secret)
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}

	h := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-Id") != claims.Sub {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("X-Vendor-Id") != claims.VendorID {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("X-Role") != claims.Role {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), secret, nil)

	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	// Spoofed identity headers must be replaced by the verified claims.
	req.Header.Set("X-User-Id", "attacker")
	req.Header.Set("X-Role", "admin")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	reqBad := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqBad.Header.Set("Authorization", "Bearer badtoken")
	rwBad := httptest.NewRecorder()
	h.ServeHTTP(rwBad, reqBad)
	if rwBad.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rwBad.Code)
	}
}

func TestRequireAuthWithJWKSConfigured(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey failed: %v", err)
	}
	kid := "kid-1"
	jwksSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]any{{
				"kty": "RSA",
				"kid": kid,
				"alg": "RS256",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
			}},
		})
	}))
	defer jwksSrv.Close()

	secret := "test-secret"
	jwksClient := auth.NewJWKSClient(jwksSrv.URL, time.Minute)
	h := requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-Id") != "user-2" || r.Header.Get("X-Role") != "manager" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}), secret, jwksClient)

	// An HS256 token signed with the wrong secret must come back 401, not
	// crash the handler.
	forged, err := auth.SignHS256(auth.Claims{
		Sub:  "user-2",
		Role: "manager",
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(1 * time.Hour).Unix(),
	}, "wrong-secret")
	if err != nil {
		t.Fatalf("SignHS256 failed: %v", err)
	}
	reqForged := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqForged.Header.Set("Authorization", "Bearer "+forged)
	rwForged := httptest.NewRecorder()
	h.ServeHTTP(rwForged, reqForged)
	if rwForged.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: expected 401, got %d", rwForged.Code)
	}

	reqGarbage := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	reqGarbage.Header.Set("Authorization", "Bearer not.a.jwt")
	rwGarbage := httptest.NewRecorder()
	h.ServeHTTP(rwGarbage, reqGarbage)
	if rwGarbage.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: expected 401, got %d", rwGarbage.Code)
	}

	// A valid RS256 token resolved through the JWKS endpoint passes.
	token, err := signRS256ForTest(auth.Claims{
		Sub:  "user-2",
		Role: "manager",
		Iat:  time.Now().Unix(),
		Exp:  time.Now().Add(1 * time.Hour).Unix(),
	}, key, kid)
	if err != nil {
		t.Fatalf("rs256 sign failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	if rw.Code != http.StatusOK {
		t.Fatalf("valid RS256 token: expected 200, got %d", rw.Code)
	}
}

func signRS256ForTest(claims auth.Claims, key *rsa.PrivateKey, kid string) (string, error) {
	headerJSON, err := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT", "kid": kid})
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)
	hash := sha256.Sum256([]byte(unsigned))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, hash[:])
	if err != nil {
		return "", err
	}
	return unsigned + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

func TestForwardRelaysFromFallback(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer primary.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-User-Id") != "user-1" {
			t.Errorf("identity header not forwarded")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"id":"bk-1"}}`))
	}))
	defer fallback.Close()

	client := upstream.NewClient(upstream.Config{
		Primary:  primary.URL,
		Fallback: fallback.URL,
		Logger:   slog.Default(),
	})
	h := forward(client, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "http://gateway/api/v1/bookings/get?id=bk-1", nil)
	req.Header.Set("X-User-Id", "user-1")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
	if rw.Body.String() != `{"id":"bk-1"}` {
		t.Fatalf("unexpected body: %s", rw.Body.String())
	}
	if rw.Header().Get("X-Upstream") != fallback.URL {
		t.Fatalf("expected fallback target, got %q", rw.Header().Get("X-Upstream"))
	}
}

func TestForwardRelaysApplicationError(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success":false,"error":"VERSION_CONFLICT","message":"reload and retry"}`))
	}))
	defer primary.Close()

	client := upstream.NewClient(upstream.Config{Primary: primary.URL, Logger: slog.Default()})
	h := forward(client, slog.Default())

	req := httptest.NewRequest(http.MethodPut, "http://gateway/api/v1/bookings/status", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusConflict {
		t.Fatalf("expected 409 relayed, got %d", rw.Code)
	}
	if !strings.Contains(rw.Body.String(), "VERSION_CONFLICT") {
		t.Fatalf("error code lost in relay: %s", rw.Body.String())
	}
}

func TestForwardBothTargetsDown(t *testing.T) {
	dead := httptest.NewServer(nil)
	dead.Close()

	client := upstream.NewClient(upstream.Config{Primary: dead.URL, Logger: slog.Default()})
	h := forward(client, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "http://gateway/api/v1/bookings", nil)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rw.Code)
	}
	if !strings.Contains(rw.Body.String(), "BAD_UPSTREAM") {
		t.Fatalf("unexpected body: %s", rw.Body.String())
	}
}
