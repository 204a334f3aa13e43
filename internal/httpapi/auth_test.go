package httpapi

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"vapetrack/backend/internal/domain"
	"vapetrack/backend/internal/store"
	"vapetrack/backend/internal/store/memory"
)

func newTestAuth(t *testing.T) (*AuthManager, *memory.Provider) {
	t.Helper()
	provider := memory.NewSeeded()
	return NewAuthManager("test-secret-key", time.Hour, provider), provider
}

func TestTokenRoundTrip(t *testing.T) {
	auth, _ := newTestAuth(t)

	resp, actor, err := auth.Login(context.Background(), domain.LoginRequest{
		Username: "keeper",
		Password: "keeper123",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if actor.Role != "shopkeeper" || actor.ShopID != "shop-demo" {
		t.Fatalf("unexpected actor: %+v", actor)
	}

	parsed, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if parsed.ID != actor.ID || parsed.Username != "keeper" || parsed.Role != "shopkeeper" || parsed.ShopID != "shop-demo" {
		t.Fatalf("claims did not survive the round trip: %+v", parsed)
	}
}

func TestParseRejectsTamperedToken(t *testing.T) {
	auth, _ := newTestAuth(t)

	resp, _, err := auth.Login(context.Background(), domain.LoginRequest{
		Username: "keeper",
		Password: "keeper123",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	tampered := resp.AccessToken[:len(resp.AccessToken)-2] + "xx"
	if _, err := auth.ParseToken(tampered); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}
}

func TestParseRejectsTokenFromOtherSecret(t *testing.T) {
	auth, provider := newTestAuth(t)
	other := NewAuthManager("another-secret", time.Hour, provider)

	resp, _, err := other.Login(context.Background(), domain.LoginRequest{
		Username: "keeper",
		Password: "keeper123",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := auth.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected foreign token to be rejected")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth, _ := newTestAuth(t)

	cases := []domain.LoginRequest{
		{Username: "keeper", Password: "nope"},
		{Username: "ghost", Password: "keeper123"},
		{Username: "", Password: ""},
	}
	for _, req := range cases {
		if _, _, err := auth.Login(context.Background(), req); err == nil {
			t.Fatalf("expected login failure for %q", req.Username)
		}
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	auth, provider := newTestAuth(t)

	hash, err := hashPassword("dormant1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := provider.CreateShopkeeper(context.Background(), domain.ShopkeeperAccount{
		ID:        "keeper-dormant",
		Username:  "dormant",
		Password:  hash,
		Role:      "shopkeeper",
		ShopID:    "shop-demo",
		Active:    false,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("create account: %v", err)
	}

	_, _, err = auth.Login(context.Background(), domain.LoginRequest{
		Username: "dormant",
		Password: "dormant1",
	})
	if err == nil || !strings.Contains(err.Error(), "inactive") {
		t.Fatalf("expected inactive account error, got %v", err)
	}
}

func TestCreateShopkeeperValidation(t *testing.T) {
	auth, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := auth.CreateShopkeeper(ctx, domain.ShopkeeperCreateRequest{
		Username: "ab", Password: "longenough", ShopID: "shop-demo",
	}); err == nil {
		t.Fatalf("expected short username to be rejected")
	}
	if _, err := auth.CreateShopkeeper(ctx, domain.ShopkeeperCreateRequest{
		Username: "newkeeper", Password: "shrt", ShopID: "shop-demo",
	}); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
	if _, err := auth.CreateShopkeeper(ctx, domain.ShopkeeperCreateRequest{
		Username: "newkeeper", Password: "longenough", ShopID: "no-such-shop",
	}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown shop, got %v", err)
	}

	account, err := auth.CreateShopkeeper(ctx, domain.ShopkeeperCreateRequest{
		Username: "NewKeeper", Password: "longenough", ShopID: "shop-demo",
	})
	if err != nil {
		t.Fatalf("create shopkeeper: %v", err)
	}
	if account.Username != "newkeeper" {
		t.Fatalf("expected lowercased username, got %s", account.Username)
	}
	if account.Password != "" {
		t.Fatalf("password hash must not be returned")
	}

	// Duplicate usernames collide in the store.
	if _, err := auth.CreateShopkeeper(ctx, domain.ShopkeeperCreateRequest{
		Username: "newkeeper", Password: "longenough", ShopID: "shop-demo",
	}); err == nil {
		t.Fatalf("expected duplicate username to be rejected")
	}
}

func TestPasswordHelpers(t *testing.T) {
	hash, err := hashPassword("secret")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !isPasswordHash(hash) {
		t.Fatalf("expected bcrypt prefix, got %s", hash)
	}
	if !verifyPassword(hash, "secret") {
		t.Fatalf("expected password to verify")
	}
	if verifyPassword(hash, "wrong") {
		t.Fatalf("wrong password must not verify")
	}
	if verifyPassword("plaintext", "plaintext") {
		t.Fatalf("plain-text stored values must never verify")
	}
}
