package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/voxhall/voxhall/internal/services/chat/storage"
)

// ChannelEntry is the cached projection for one channel. ServerID is empty
// for direct-message channels.
type ChannelEntry struct {
	ChannelID   string `json:"channel_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Permissions int64  `json:"permissions"`
	ServerID    string `json:"server_id,omitempty"`
}

// ChannelPatch is a partial cache update; nil fields are left untouched.
type ChannelPatch struct {
	Name        *string
	Permissions *int64
}

// ChannelSource is the durable read boundary backing the channel cache.
type ChannelSource interface {
	GetChannel(ctx context.Context, channelID string) (storage.ChannelRecord, error)
}

// ChannelCache resolves channel projections with read-through population and
// an explicit patch/invalidate API used after channel mutations.
type ChannelCache struct {
	kv       KV
	channels ChannelSource
}

// NewChannelCache constructs a channel cache over a KV store and the durable
// channel store.
func NewChannelCache(kv KV, channels ChannelSource) *ChannelCache {
	return &ChannelCache{
		kv:       kv,
		channels: channels,
	}
}

// Channel resolves the projection for one channel, reading through to the
// durable store on a cache miss. The requesting user is accepted for
// call-shape parity with permission-aware callers; no filtering happens here.
// Returns storage.ErrNotFound when no durable record exists.
func (c *ChannelCache) Channel(ctx context.Context, channelID string, requestingUserID string) (ChannelEntry, error) {
	if c == nil || c.kv == nil || c.channels == nil {
		return ChannelEntry{}, errors.New("channel cache is not configured")
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return ChannelEntry{}, fmt.Errorf("channel id is required")
	}
	_ = requestingUserID

	key := channelKey(channelID)
	cached, found, err := c.kv.Get(ctx, key)
	if err != nil {
		return ChannelEntry{}, fmt.Errorf("get cached channel: %w", err)
	}
	if found {
		var entry ChannelEntry
		if err := json.Unmarshal([]byte(cached), &entry); err != nil {
			return ChannelEntry{}, fmt.Errorf("unmarshal cached channel: %w", err)
		}
		return entry, nil
	}

	record, err := c.channels.GetChannel(ctx, channelID)
	if err != nil {
		return ChannelEntry{}, err
	}

	entry := ChannelEntry{
		ChannelID:   record.ID,
		Name:        record.Name,
		Type:        record.Type,
		Permissions: record.Permissions,
		ServerID:    record.ServerID,
	}
	if err := c.store(ctx, key, entry); err != nil {
		return ChannelEntry{}, err
	}
	return entry, nil
}

// Patch merges only the provided fields into the cached entry so readers
// immediately observe a channel update without a full rebuild. Patching an
// uncached channel is a no-op; the next read repopulates from the durable
// store.
func (c *ChannelCache) Patch(ctx context.Context, channelID string, patch ChannelPatch) error {
	if c == nil || c.kv == nil {
		return errors.New("channel cache is not configured")
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("channel id is required")
	}

	key := channelKey(channelID)
	cached, found, err := c.kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get cached channel: %w", err)
	}
	if !found {
		return nil
	}

	var entry ChannelEntry
	if err := json.Unmarshal([]byte(cached), &entry); err != nil {
		return fmt.Errorf("unmarshal cached channel: %w", err)
	}
	if patch.Name != nil {
		entry.Name = *patch.Name
	}
	if patch.Permissions != nil {
		entry.Permissions = *patch.Permissions
	}
	return c.store(ctx, key, entry)
}

// Invalidate evicts the cached projection for one channel. Channel deletion
// calls this so stale projections cannot outlive the durable record.
func (c *ChannelCache) Invalidate(ctx context.Context, channelID string) error {
	if c == nil || c.kv == nil {
		return errors.New("channel cache is not configured")
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("channel id is required")
	}
	if err := c.kv.Delete(ctx, channelKey(channelID)); err != nil {
		return fmt.Errorf("invalidate channel entry: %w", err)
	}
	return nil
}

func (c *ChannelCache) store(ctx context.Context, key string, entry ChannelEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal channel entry: %w", err)
	}
	if err := c.kv.Set(ctx, key, string(payload)); err != nil {
		return fmt.Errorf("cache channel entry: %w", err)
	}
	return nil
}
