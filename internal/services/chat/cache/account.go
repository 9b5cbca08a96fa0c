package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/voxhall/voxhall/internal/platform/errors"
	"github.com/voxhall/voxhall/internal/services/auth/token"
	"github.com/voxhall/voxhall/internal/services/chat/storage"
)

// AccountProfile is the denormalized, eventually-consistent copy of the
// profile fields bundled with the auth projection.
type AccountProfile struct {
	Username string `json:"username"`
	Tag      string `json:"tag"`
	Avatar   string `json:"avatar,omitempty"`
}

// AccountEntry is the cached auth projection for one account.
type AccountEntry struct {
	UserID          string         `json:"user_id"`
	PasswordVersion int            `json:"password_version"`
	Profile         AccountProfile `json:"profile"`
}

// TokenDecoder verifies a bearer token and returns its identity claims.
type TokenDecoder interface {
	Decode(token string) (token.Claims, error)
}

// AccountSource is the durable read boundary backing the account cache.
type AccountSource interface {
	GetAccount(ctx context.Context, userID string) (storage.AccountRecord, error)
}

// AccountCache resolves account auth projections without a durable-store
// round trip on every request.
type AccountCache struct {
	kv       KV
	accounts AccountSource
	decoder  TokenDecoder
}

// NewAccountCache constructs an account cache over a KV store, the durable
// account store, and a token decoder.
func NewAccountCache(kv KV, accounts AccountSource, decoder TokenDecoder) *AccountCache {
	return &AccountCache{
		kv:       kv,
		accounts: accounts,
		decoder:  decoder,
	}
}

// Account resolves the auth projection for one user, reading through to the
// durable store on a cache miss. Returns storage.ErrNotFound when no durable
// record exists.
func (c *AccountCache) Account(ctx context.Context, userID string) (AccountEntry, error) {
	if c == nil || c.kv == nil || c.accounts == nil {
		return AccountEntry{}, errors.New("account cache is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return AccountEntry{}, fmt.Errorf("user id is required")
	}

	key := accountKey(userID)
	cached, found, err := c.kv.Get(ctx, key)
	if err != nil {
		return AccountEntry{}, fmt.Errorf("get cached account: %w", err)
	}
	if found {
		var entry AccountEntry
		if err := json.Unmarshal([]byte(cached), &entry); err != nil {
			return AccountEntry{}, fmt.Errorf("unmarshal cached account: %w", err)
		}
		return entry, nil
	}

	record, err := c.accounts.GetAccount(ctx, userID)
	if err != nil {
		return AccountEntry{}, err
	}

	entry := AccountEntry{
		UserID:          record.UserID,
		PasswordVersion: record.PasswordVersion,
		Profile: AccountProfile{
			Username: record.Username,
			Tag:      record.Tag,
			Avatar:   record.Avatar,
		},
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return AccountEntry{}, fmt.Errorf("marshal account entry: %w", err)
	}
	if err := c.kv.Set(ctx, key, string(payload)); err != nil {
		return AccountEntry{}, fmt.Errorf("cache account entry: %w", err)
	}
	return entry, nil
}

// Authenticate verifies a bearer token against the cached auth projection.
// The password-version equality check is the sole mechanism for immediate
// session invalidation after a credential change: issued tokens carry the
// version current at issue time, and a change bumps the durable value.
func (c *AccountCache) Authenticate(ctx context.Context, bearer string) (AccountEntry, error) {
	if c == nil || c.decoder == nil {
		return AccountEntry{}, errors.New("account cache is not configured")
	}

	claims, err := c.decoder.Decode(bearer)
	if err != nil {
		return AccountEntry{}, err
	}

	entry, err := c.Account(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return AccountEntry{}, apperrors.New(apperrors.CodeAccountInvalidToken, "token account is unknown")
		}
		return AccountEntry{}, err
	}

	if entry.PasswordVersion != claims.PasswordVersion {
		return AccountEntry{}, apperrors.New(apperrors.CodeAccountInvalidToken, "token password version is stale")
	}
	return entry, nil
}

// Invalidate evicts the cached auth projection for one user. Password-change
// flows call this so the next lookup observes the bumped version.
func (c *AccountCache) Invalidate(ctx context.Context, userID string) error {
	if c == nil || c.kv == nil {
		return errors.New("account cache is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("user id is required")
	}
	if err := c.kv.Delete(ctx, accountKey(userID)); err != nil {
		return fmt.Errorf("invalidate account entry: %w", err)
	}
	return nil
}
