package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

const testSecret = "test-secret"

func TestSessionTokenRoundTrip(t *testing.T) {
	rid := uuid.New()

	token, expires, err := GenerateSessionToken(testSecret, rid, "Trattoria da Mario", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if time.Until(expires) < 55*time.Minute {
		t.Errorf("expiry too soon: %v", expires)
	}

	claims, err := ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.RestaurantID != rid {
		t.Errorf("restaurant ID: got %v, want %v", claims.RestaurantID, rid)
	}
	if claims.Name != "Trattoria da Mario" {
		t.Errorf("name: got %q", claims.Name)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, _, err := GenerateSessionToken(testSecret, uuid.New(), "x", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateToken("other-secret", token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	token, _, err := GenerateSessionToken(testSecret, uuid.New(), "x", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ValidateToken(testSecret, token); err == nil {
		t.Error("expected error for expired token")
	}
}

func TestNewAPIKey(t *testing.T) {
	a, err := NewAPIKey()
	if err != nil {
		t.Fatalf("new api key: %v", err)
	}
	b, err := NewAPIKey()
	if err != nil {
		t.Fatalf("new api key: %v", err)
	}
	if !strings.HasPrefix(a, "rest_") {
		t.Errorf("missing prefix: %q", a)
	}
	if a == b {
		t.Error("api keys must be unique")
	}
}
