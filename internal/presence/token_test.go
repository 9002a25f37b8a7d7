package presence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/nowcast-run/agent/internal/secmem"
)

func TestTokenExpiredNilToken(t *testing.T) {
	var tok *Token
	if !tok.expired(time.Now()) {
		t.Fatal("expected nil token to be treated as expired")
	}
}

func TestTokenExpiredPastExpiry(t *testing.T) {
	tok := &Token{ExpiresAt: time.Now().Add(-time.Minute)}
	if !tok.expired(time.Now()) {
		t.Fatal("expected past expires_at to be expired")
	}
}

func TestTokenNeedsRefreshWithin24h(t *testing.T) {
	now := time.Now()
	tok := &Token{ExpiresAt: now.Add(23 * time.Hour)}
	if !tok.needsRefresh(now) {
		t.Fatal("expected token expiring within 24h to need refresh")
	}
	if tok.expired(now) {
		t.Fatal("a token expiring in 23h is not yet expired")
	}
}

func TestTokenDoesNotNeedRefreshBeyond24h(t *testing.T) {
	now := time.Now()
	tok := &Token{ExpiresAt: now.Add(48 * time.Hour)}
	if tok.needsRefresh(now) {
		t.Fatal("expected token expiring in 48h to not need refresh")
	}
}

func TestFileTokenStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewFileTokenStore(dir)

	if tok, err := store.Load(3); err != nil || tok != nil {
		t.Fatalf("expected (nil, nil) before any save, got (%+v, %v)", tok, err)
	}

	want := &Token{
		AccessToken:  secmem.NewSecureString("access-xyz"),
		RefreshToken: secmem.NewSecureString("refresh-xyz"),
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := store.Save(3, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(3)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("expected a stored token")
	}
	if got.AccessToken.String() != "access-xyz" || got.RefreshToken.String() != "refresh-xyz" {
		t.Fatalf("unexpected token contents: %+v", got)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Fatalf("expected expires_at %v, got %v", want.ExpiresAt, got.ExpiresAt)
	}

	// Other slots remain unset.
	if tok, err := store.Load(4); err != nil || tok != nil {
		t.Fatalf("expected slot 4 to remain empty, got (%+v, %v)", tok, err)
	}

	if _, err := store.Load(3); err != nil {
		t.Fatalf("re-Load: %v", err)
	}
	if fp := filepath.Join(dir, "auth.json"); fp == "" {
		t.Fatal("unreachable")
	}
}

func TestMemTokenStoreRoundTrip(t *testing.T) {
	store := NewMemTokenStore()
	if tok, _ := store.Load(0); tok != nil {
		t.Fatal("expected nil before save")
	}
	want := &Token{AccessToken: secmem.NewSecureString("a"), RefreshToken: secmem.NewSecureString("r"), ExpiresAt: time.Now()}
	if err := store.Save(0, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := store.Load(0)
	if got != want {
		t.Fatal("expected the same token pointer back")
	}
}
