package cache

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/voxhall/voxhall/internal/platform/errors"
	"github.com/voxhall/voxhall/internal/services/auth/token"
	"github.com/voxhall/voxhall/internal/services/chat/storage"
)

func testAccountRecord() storage.AccountRecord {
	return storage.AccountRecord{
		UserID:          "user-1",
		Username:        "rowan",
		Tag:             "1234",
		Avatar:          "avatars/rowan.png",
		PasswordVersion: 2,
	}
}

func TestAccountReadThroughRoundTrip(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	source := newFakeAccountSource(testAccountRecord())
	accounts := NewAccountCache(kv, source, nil)
	ctx := context.Background()

	miss, err := accounts.Account(ctx, "user-1")
	if err != nil {
		t.Fatalf("account miss: %v", err)
	}
	hit, err := accounts.Account(ctx, "user-1")
	if err != nil {
		t.Fatalf("account hit: %v", err)
	}

	if miss != hit {
		t.Fatalf("hit = %+v, want projection from miss %+v", hit, miss)
	}
	if hit.Profile.Username != "rowan" || hit.Profile.Tag != "1234" || hit.Profile.Avatar != "avatars/rowan.png" {
		t.Fatalf("unexpected profile: %+v", hit.Profile)
	}
	if hit.PasswordVersion != 2 {
		t.Fatalf("password version = %d, want 2", hit.PasswordVersion)
	}
	if got := source.readCount(); got != 1 {
		t.Fatalf("durable reads = %d, want 1 (hit must not read through)", got)
	}
}

func TestAccountAbsentInDurableStore(t *testing.T) {
	t.Parallel()

	accounts := NewAccountCache(newFakeKV(), newFakeAccountSource(), nil)

	_, err := accounts.Account(context.Background(), "ghost")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAuthenticateRequiresExactPasswordVersion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	invalidToken := apperrors.New(apperrors.CodeAccountInvalidToken, "")

	cases := []struct {
		name    string
		decoder TokenDecoder
		wantOK  bool
	}{
		{
			name:    "matching version succeeds",
			decoder: fakeDecoder{claims: token.Claims{UserID: "user-1", PasswordVersion: 2}},
			wantOK:  true,
		},
		{
			name:    "stale version fails",
			decoder: fakeDecoder{claims: token.Claims{UserID: "user-1", PasswordVersion: 1}},
		},
		{
			name:    "future version fails",
			decoder: fakeDecoder{claims: token.Claims{UserID: "user-1", PasswordVersion: 3}},
		},
		{
			name:    "unknown account fails",
			decoder: fakeDecoder{claims: token.Claims{UserID: "ghost", PasswordVersion: 2}},
		},
		{
			name:    "decode failure fails",
			decoder: fakeDecoder{err: apperrors.New(apperrors.CodeAccountInvalidToken, "token is invalid")},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			accounts := NewAccountCache(newFakeKV(), newFakeAccountSource(testAccountRecord()), tc.decoder)
			entry, err := accounts.Authenticate(ctx, "bearer-token")
			if tc.wantOK {
				if err != nil {
					t.Fatalf("authenticate: %v", err)
				}
				if entry.UserID != "user-1" {
					t.Fatalf("entry user = %q, want user-1", entry.UserID)
				}
				return
			}
			if !errors.Is(err, invalidToken) {
				t.Fatalf("expected invalid token error, got %v", err)
			}
		})
	}
}

func TestInvalidateAccountForcesReload(t *testing.T) {
	t.Parallel()

	kv := newFakeKV()
	source := newFakeAccountSource(testAccountRecord())
	accounts := NewAccountCache(kv, source, nil)
	ctx := context.Background()

	if _, err := accounts.Account(ctx, "user-1"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	// Simulate a password change: durable version bumps, cache is evicted.
	source.mu.Lock()
	record := source.accounts["user-1"]
	record.PasswordVersion = 3
	source.accounts["user-1"] = record
	source.mu.Unlock()

	if err := accounts.Invalidate(ctx, "user-1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if kv.has(accountKey("user-1")) {
		t.Fatal("expected cache entry evicted")
	}

	reloaded, err := accounts.Account(ctx, "user-1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.PasswordVersion != 3 {
		t.Fatalf("password version after reload = %d, want 3", reloaded.PasswordVersion)
	}
}
