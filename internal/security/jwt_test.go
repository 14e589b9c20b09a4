package security

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSignAndParseAccessToken(t *testing.T) {
	mgr := NewJWTManager("transport-pricing-service", "transport-pricing-api", testSecret)

	raw, err := mgr.SignAccessToken(42, "agent", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := mgr.ParseAccessToken(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "42" {
		t.Errorf("subject = %q, want 42", claims.Subject)
	}
	if claims.Role != "agent" {
		t.Errorf("role = %q, want agent", claims.Role)
	}
	if claims.TokenType != "access" {
		t.Errorf("token_type = %q", claims.TokenType)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	mgr := NewJWTManager("transport-pricing-service", "transport-pricing-api", testSecret)
	raw, err := mgr.SignAccessToken(1, "agent", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.ParseAccessToken(raw); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	mgr := NewJWTManager("transport-pricing-service", "transport-pricing-api", testSecret)
	other := NewJWTManager("transport-pricing-service", "transport-pricing-api", strings.Repeat("x", 32))
	raw, err := other.SignAccessToken(1, "agent", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := mgr.ParseAccessToken(raw); err == nil {
		t.Fatal("token signed with another secret must be rejected")
	}
}

func TestParseRejectsWrongIssuerOrAudience(t *testing.T) {
	mgr := NewJWTManager("transport-pricing-service", "transport-pricing-api", testSecret)

	wrongIssuer := NewJWTManager("someone-else", "transport-pricing-api", testSecret)
	raw, _ := wrongIssuer.SignAccessToken(1, "agent", time.Minute)
	if _, err := mgr.ParseAccessToken(raw); err == nil {
		t.Fatal("wrong issuer must be rejected")
	}

	wrongAudience := NewJWTManager("transport-pricing-service", "other-api", testSecret)
	raw, _ = wrongAudience.SignAccessToken(1, "agent", time.Minute)
	if _, err := mgr.ParseAccessToken(raw); err == nil {
		t.Fatal("wrong audience must be rejected")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	mgr := NewJWTManager("transport-pricing-service", "transport-pricing-api", testSecret)
	if _, err := mgr.ParseAccessToken("not.a.token"); err == nil {
		t.Fatal("garbage must be rejected")
	}
}

func TestHashRequestFingerprint(t *testing.T) {
	a := HashRequestFingerprint("POST", "/api/v1/orders", []byte(`{"lead_id":1}`))
	b := HashRequestFingerprint("POST", "/api/v1/orders", []byte(`{"lead_id":1}`))
	if a != b {
		t.Fatal("identical requests must hash identically")
	}
	if a == HashRequestFingerprint("POST", "/api/v1/orders", []byte(`{"lead_id":2}`)) {
		t.Fatal("different bodies must hash differently")
	}
	if a == HashRequestFingerprint("PUT", "/api/v1/orders", []byte(`{"lead_id":1}`)) {
		t.Fatal("different methods must hash differently")
	}
	if len(a) != 64 {
		t.Fatalf("fingerprint length = %d, want 64 hex chars", len(a))
	}
}

func FuzzHashRequestFingerprint(f *testing.F) {
	f.Add("POST", "/api/v1/orders", []byte(`{"lead_id":1}`))
	f.Add("", "", []byte{})
	f.Add("PATCH", "/api/v1/orders/9", []byte{0x00, 0xff})
	f.Fuzz(func(t *testing.T, method, path string, body []byte) {
		a := HashRequestFingerprint(method, path, body)
		if len(a) != 64 {
			t.Fatalf("fingerprint length = %d", len(a))
		}
		if a != HashRequestFingerprint(method, path, body) {
			t.Fatal("fingerprint is not deterministic")
		}
	})
}
