package httpapi

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"posjet/backend/internal/domain"
)

type userListStore struct {
	users []domain.UserAccount
}

func (s *userListStore) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.users = append(s.users, user)
	return nil
}

func (s *userListStore) ListUsers(context.Context) ([]domain.UserAccount, error) {
	return s.users, nil
}

func (s *userListStore) UpdateUserPassword(_ context.Context, username string, password string) error {
	for i := range s.users {
		if s.users[i].Username == username {
			s.users[i].Password = password
		}
	}
	return nil
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func TestLoginAndParseTokenRoundTrip(t *testing.T) {
	store := &userListStore{users: []domain.UserAccount{
		{Username: "owner", Password: mustHash(t, "secret99"), Role: "admin", Active: true, CreatedAt: time.Now().UTC()},
	}}
	auth := NewAuthManager("roundtrip-test-secret", time.Hour, store)

	resp, err := auth.Login(domain.LoginRequest{Username: "owner", Password: "secret99"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Role != "admin" || resp.AccessToken == "" {
		t.Fatalf("unexpected login response %+v", resp)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "owner" || actor.Role != "admin" {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestLoginRejectsBadCredentialsAndInactive(t *testing.T) {
	store := &userListStore{users: []domain.UserAccount{
		{Username: "owner", Password: mustHash(t, "secret99"), Role: "admin", Active: true},
		{Username: "former", Password: mustHash(t, "gone1234"), Role: "staff", Active: false},
	}}
	auth := NewAuthManager("roundtrip-test-secret", time.Hour, store)

	if _, err := auth.Login(domain.LoginRequest{Username: "owner", Password: "wrong"}); err == nil {
		t.Fatalf("expected error for wrong password")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "ghost", Password: "secret99"}); err == nil {
		t.Fatalf("expected error for unknown user")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "former", Password: "gone1234"}); err == nil {
		t.Fatalf("expected error for inactive account")
	}
}

func TestParseTokenRejectsForgedToken(t *testing.T) {
	store := &userListStore{users: []domain.UserAccount{
		{Username: "owner", Password: mustHash(t, "secret99"), Role: "admin", Active: true},
	}}
	issuer := NewAuthManager("issuer-secret-one", time.Hour, store)
	verifier := NewAuthManager("different-secret!", time.Hour, store)

	resp, err := issuer.Login(domain.LoginRequest{Username: "owner", Password: "secret99"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
}

func TestBootstrapUpgradesPlaintextPasswords(t *testing.T) {
	store := &userListStore{users: []domain.UserAccount{
		{Username: "legacy", Password: "plain-old-password", Role: "staff", Active: true},
	}}
	auth := NewAuthManager("upgrade-test-secret", time.Hour, store)

	if !isPasswordHash(store.users[0].Password) {
		t.Fatalf("expected plaintext password upgraded to bcrypt in the store")
	}
	if _, err := auth.Login(domain.LoginRequest{Username: "legacy", Password: "plain-old-password"}); err != nil {
		t.Fatalf("login with original plaintext must still work after upgrade: %v", err)
	}
}
