package auth

import (
	"testing"
	"time"

	"github.com/erazemk/garderoba/internal/model"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret-key"
	session := model.Session{
		Identifier: "ana",
		Role:       model.RoleAdmin,
		Name:       "Ana Novak",
		IssuedAt:   time.Now(),
	}

	token, err := GenerateToken(secret, session, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	got := claims.Session()
	if got.Identifier != "ana" {
		t.Errorf("expected identifier 'ana', got %q", got.Identifier)
	}
	if got.Role != model.RoleAdmin {
		t.Errorf("expected role 'admin', got %q", got.Role)
	}
	if got.Name != "Ana Novak" {
		t.Errorf("expected name 'Ana Novak', got %q", got.Name)
	}
	if claims.ID == "" {
		t.Error("expected a token id")
	}
}

func TestClientTokenCarriesPhone(t *testing.T) {
	token, _ := GenerateToken("s", model.Session{Identifier: "555", Role: model.RoleClient, Phone: "555"}, time.Hour)
	claims, err := ValidateToken("s", token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if !claims.Session().IsClient() || claims.Phone != "555" {
		t.Errorf("expected client session for 555, got %+v", claims.Session())
	}
}

func TestTokenIDsAreUnique(t *testing.T) {
	s := model.Session{Identifier: "ana", Role: model.RoleCashier}
	t1, _ := GenerateToken("s", s, time.Hour)
	t2, _ := GenerateToken("s", s, time.Hour)
	c1, _ := ValidateToken("s", t1)
	c2, _ := ValidateToken("s", t2)
	if c1.ID == c2.ID {
		t.Error("expected distinct token ids")
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _ := GenerateToken("secret1", model.Session{Identifier: "ana", Role: model.RoleAdmin}, time.Hour)

	if _, err := ValidateToken("secret2", token); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestValidateTokenInvalid(t *testing.T) {
	if _, err := ValidateToken("secret", "not-a-token"); err == nil {
		t.Error("expected error for invalid token")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	session := model.Session{Identifier: "ana", Role: model.RoleAdmin, IssuedAt: time.Now().Add(-2 * time.Hour)}
	token, _ := GenerateToken("secret", session, time.Hour)

	if _, err := ValidateToken("secret", token); err == nil {
		t.Error("expected error for expired token")
	}
}
