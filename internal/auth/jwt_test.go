package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := NewSessionToken("secret", "issuer", time.Minute, Claims{
		FarmerID: "farmer-1",
		Phone:    "+254712345678",
	})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}

	claims, err := ParseToken("secret", "issuer", token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.FarmerID != "farmer-1" || claims.Phone != "+254712345678" || claims.Subject != "farmer-1" {
		t.Fatalf("unexpected claims")
	}
}

func TestParseTokenRejects(t *testing.T) {
	token, err := NewSessionToken("secret", "issuer", time.Minute, Claims{FarmerID: "farmer-1"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("other-secret", "issuer", token); err == nil {
		t.Fatalf("expected wrong secret to fail")
	}
	if _, err := ParseToken("secret", "other-issuer", token); err == nil {
		t.Fatalf("expected wrong issuer to fail")
	}

	expired, err := NewSessionToken("secret", "issuer", -time.Minute, Claims{FarmerID: "farmer-1"})
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if _, err := ParseToken("secret", "issuer", expired); err == nil {
		t.Fatalf("expected expired token to fail")
	}

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{FarmerID: "farmer-1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("unsigned token error: %v", err)
	}
	if _, err := ParseToken("secret", "issuer", unsigned); err == nil {
		t.Fatalf("expected alg none to fail")
	}
}

func TestIssuer(t *testing.T) {
	issuer := NewIssuer("secret", "at-insurance", 7*24*time.Hour)
	token, err := issuer.Issue("farmer-2", "+254112345678")
	if err != nil {
		t.Fatalf("issue error: %v", err)
	}
	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Sub(claims.IssuedAt.Time) != 7*24*time.Hour {
		t.Fatalf("expected 7 day lifetime")
	}
}
