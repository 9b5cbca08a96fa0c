package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/voxhall/voxhall/internal/services/chat/storage"
)

// MemberEntry is the cached projection for one server membership. Owner
// status is not cached; callers derive it from the live server record.
type MemberEntry struct {
	ServerID string   `json:"server_id"`
	UserID   string   `json:"user_id"`
	RoleIDs  []string `json:"role_ids,omitempty"`
}

// MemberSource is the durable read boundary backing the member cache.
type MemberSource interface {
	GetMember(ctx context.Context, serverID string, userID string) (storage.MemberRecord, error)
	ListServerMembers(ctx context.Context, serverID string) ([]storage.MemberRecord, error)
}

// MemberCache resolves server membership projections, both single members
// and whole-server lists for bulk fanout operations.
type MemberCache struct {
	kv      KV
	members MemberSource
}

// NewMemberCache constructs a member cache over a KV store and the durable
// member store.
func NewMemberCache(kv KV, members MemberSource) *MemberCache {
	return &MemberCache{
		kv:      kv,
		members: members,
	}
}

// Member resolves one membership, reading through on a miss. Returns
// storage.ErrNotFound when the user is not a member of the server.
func (c *MemberCache) Member(ctx context.Context, serverID string, userID string) (MemberEntry, error) {
	if c == nil || c.kv == nil || c.members == nil {
		return MemberEntry{}, errors.New("member cache is not configured")
	}
	serverID = strings.TrimSpace(serverID)
	userID = strings.TrimSpace(userID)
	if serverID == "" || userID == "" {
		return MemberEntry{}, fmt.Errorf("server id and user id are required")
	}

	key := memberKey(serverID, userID)
	cached, found, err := c.kv.Get(ctx, key)
	if err != nil {
		return MemberEntry{}, fmt.Errorf("get cached member: %w", err)
	}
	if found {
		var entry MemberEntry
		if err := json.Unmarshal([]byte(cached), &entry); err != nil {
			return MemberEntry{}, fmt.Errorf("unmarshal cached member: %w", err)
		}
		return entry, nil
	}

	record, err := c.members.GetMember(ctx, serverID, userID)
	if err != nil {
		return MemberEntry{}, err
	}

	entry := memberEntryFromRecord(record)
	payload, err := json.Marshal(entry)
	if err != nil {
		return MemberEntry{}, fmt.Errorf("marshal member entry: %w", err)
	}
	if err := c.kv.Set(ctx, key, string(payload)); err != nil {
		return MemberEntry{}, fmt.Errorf("cache member entry: %w", err)
	}
	return entry, nil
}

// Members resolves the complete current member list for one server. Order is
// not significant; iteration completeness is, since room reconciliation
// rebuilds subscriber sets from this list.
func (c *MemberCache) Members(ctx context.Context, serverID string) ([]MemberEntry, error) {
	if c == nil || c.kv == nil || c.members == nil {
		return nil, errors.New("member cache is not configured")
	}
	serverID = strings.TrimSpace(serverID)
	if serverID == "" {
		return nil, fmt.Errorf("server id is required")
	}

	key := membersKey(serverID)
	cached, found, err := c.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get cached member list: %w", err)
	}
	if found {
		var entries []MemberEntry
		if err := json.Unmarshal([]byte(cached), &entries); err != nil {
			return nil, fmt.Errorf("unmarshal cached member list: %w", err)
		}
		return entries, nil
	}

	records, err := c.members.ListServerMembers(ctx, serverID)
	if err != nil {
		return nil, err
	}

	entries := make([]MemberEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, memberEntryFromRecord(record))
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal member list: %w", err)
	}
	if err := c.kv.Set(ctx, key, string(payload)); err != nil {
		return nil, fmt.Errorf("cache member list: %w", err)
	}
	return entries, nil
}

// InvalidateServer evicts the cached member list and one member's entry.
// Membership changes call this so fanout reconciliation observes the new
// roster on its next read.
func (c *MemberCache) InvalidateServer(ctx context.Context, serverID string, userID string) error {
	if c == nil || c.kv == nil {
		return errors.New("member cache is not configured")
	}
	serverID = strings.TrimSpace(serverID)
	if serverID == "" {
		return fmt.Errorf("server id is required")
	}
	if err := c.kv.Delete(ctx, membersKey(serverID)); err != nil {
		return fmt.Errorf("invalidate member list: %w", err)
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil
	}
	if err := c.kv.Delete(ctx, memberKey(serverID, userID)); err != nil {
		return fmt.Errorf("invalidate member entry: %w", err)
	}
	return nil
}

func memberEntryFromRecord(record storage.MemberRecord) MemberEntry {
	return MemberEntry{
		ServerID: record.ServerID,
		UserID:   record.UserID,
		RoleIDs:  record.RoleIDs,
	}
}
