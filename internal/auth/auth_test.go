package auth

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/gastcinema/seat-reservations/internal/domain"
)

func TestResolveIdentity_RoundTrip(t *testing.T) {
	a := New("test-secret")

	tok, err := a.IssueToken(domain.Identity{PartyID: "u1", Role: domain.RoleAdmin}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	id, err := a.ResolveIdentity("Bearer " + tok)
	if err != nil {
		t.Fatal(err)
	}
	if id.PartyID != "u1" || id.Role != domain.RoleAdmin {
		t.Fatalf("identity = %+v", id)
	}
}

func TestResolveIdentity_Rejections(t *testing.T) {
	a := New("test-secret")
	other := New("other-secret")

	otherTok, err := other.IssueToken(domain.Identity{PartyID: "u1", Role: domain.RoleCustomer}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	expired, err := a.IssueToken(domain.Identity{PartyID: "u1", Role: domain.RoleCustomer}, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	for name, header := range map[string]string{
		"empty":        "",
		"no bearer":    "Basic abc",
		"garbage":      "Bearer not-a-jwt",
		"wrong secret": "Bearer " + otherTok,
		"expired":      "Bearer " + expired,
	} {
		if _, err := a.ResolveIdentity(header); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("%s: expected unauthorized, got %v", name, err)
		}
	}
}

func TestResolveIdentity_DefaultsRoleToCustomer(t *testing.T) {
	a := New("test-secret")
	tok, err := a.IssueToken(domain.Identity{PartyID: "u1"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	id, err := a.ResolveIdentity("Bearer " + tok)
	if err != nil {
		t.Fatal(err)
	}
	if id.Role != domain.RoleCustomer {
		t.Fatalf("role = %q", id.Role)
	}
}
