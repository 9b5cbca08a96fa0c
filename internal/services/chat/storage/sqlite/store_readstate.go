package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/voxhall/voxhall/internal/services/chat/storage"
)

// PutMessage persists one message row.
func (s *Store) PutMessage(ctx context.Context, record storage.MessageRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" || strings.TrimSpace(record.ChannelID) == "" {
		return fmt.Errorf("message id and channel id are required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO messages (id, channel_id, user_id, content, created_at)
VALUES (?, ?, ?, ?, ?)
`, record.ID, record.ChannelID, record.UserID, record.Content, toMillis(record.CreatedAt))
	if err != nil {
		return fmt.Errorf("put message: %w", err)
	}
	return nil
}

// CountChannelMessages counts message rows stored for one channel.
func (s *Store) CountChannelMessages(ctx context.Context, channelID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return 0, fmt.Errorf("channel id is required")
	}

	var count int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*) FROM messages WHERE channel_id = ?
`, channelID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count channel messages: %w", err)
	}
	return count, nil
}

// DeleteChannelMessages removes every message row stored for one channel.
func (s *Store) DeleteChannelMessages(ctx context.Context, channelID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("channel id is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM messages WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("delete channel messages: %w", err)
	}
	return nil
}

// UpsertLastSeen records how far a user has read one server channel,
// replacing any earlier marker.
func (s *Store) UpsertLastSeen(ctx context.Context, record storage.LastSeenRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.UserID) == "" || strings.TrimSpace(record.ServerID) == "" || strings.TrimSpace(record.ChannelID) == "" {
		return fmt.Errorf("last seen user id, server id, and channel id are required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO channel_last_seen (user_id, server_id, channel_id, last_seen_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id, server_id, channel_id) DO UPDATE SET
    last_seen_at = excluded.last_seen_at
`, record.UserID, record.ServerID, record.ChannelID, toMillis(record.LastSeenAt))
	if err != nil {
		return fmt.Errorf("upsert last seen: %w", err)
	}
	return nil
}

// ListUserLastSeen lists every read marker belonging to one user.
func (s *Store) ListUserLastSeen(ctx context.Context, userID string) ([]storage.LastSeenRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT user_id, server_id, channel_id, last_seen_at
FROM channel_last_seen
WHERE user_id = ?
ORDER BY server_id, channel_id
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user last seen: %w", err)
	}
	defer rows.Close()

	var records []storage.LastSeenRecord
	for rows.Next() {
		var record storage.LastSeenRecord
		var lastSeenAt int64
		if err := rows.Scan(&record.UserID, &record.ServerID, &record.ChannelID, &lastSeenAt); err != nil {
			return nil, fmt.Errorf("scan last seen: %w", err)
		}
		record.LastSeenAt = fromMillis(lastSeenAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate last seen: %w", err)
	}
	return records, nil
}

// CountChannelLastSeen counts read markers stored for one channel.
func (s *Store) CountChannelLastSeen(ctx context.Context, channelID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return 0, fmt.Errorf("channel id is required")
	}

	var count int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*) FROM channel_last_seen WHERE channel_id = ?
`, channelID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count channel last seen: %w", err)
	}
	return count, nil
}

// DeleteChannelLastSeen removes every read marker stored for one channel.
func (s *Store) DeleteChannelLastSeen(ctx context.Context, channelID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("channel id is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM channel_last_seen WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("delete channel last seen: %w", err)
	}
	return nil
}

// PutMention persists one pending mention row.
func (s *Store) PutMention(ctx context.Context, record storage.MentionRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" || strings.TrimSpace(record.ChannelID) == "" || strings.TrimSpace(record.MentionedTo) == "" {
		return fmt.Errorf("mention id, channel id, and mentioned-to user id are required")
	}
	count := record.Count
	if count <= 0 {
		count = 1
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO message_mentions (id, channel_id, server_id, mentioned_to, mentioned_by, mention_count, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    mention_count = excluded.mention_count
`, record.ID, record.ChannelID, record.ServerID, record.MentionedTo, record.MentionedBy, count, toMillis(record.CreatedAt))
	if err != nil {
		return fmt.Errorf("put mention: %w", err)
	}
	return nil
}

// ListUserMentions lists every pending mention addressed to one user.
func (s *Store) ListUserMentions(ctx context.Context, userID string) ([]storage.MentionRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, channel_id, server_id, mentioned_to, mentioned_by, mention_count, created_at
FROM message_mentions
WHERE mentioned_to = ?
ORDER BY created_at, id
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user mentions: %w", err)
	}
	defer rows.Close()

	var records []storage.MentionRecord
	for rows.Next() {
		var record storage.MentionRecord
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.ChannelID, &record.ServerID, &record.MentionedTo, &record.MentionedBy, &record.Count, &createdAt); err != nil {
			return nil, fmt.Errorf("scan mention: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mentions: %w", err)
	}
	return records, nil
}

// DeleteUserChannelMention removes the pending mention addressed to one user
// in one channel. Removing a missing mention is not an error.
func (s *Store) DeleteUserChannelMention(ctx context.Context, userID string, channelID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	channelID = strings.TrimSpace(channelID)
	if userID == "" || channelID == "" {
		return fmt.Errorf("user id and channel id are required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `
DELETE FROM message_mentions WHERE mentioned_to = ? AND channel_id = ?
`, userID, channelID); err != nil {
		return fmt.Errorf("delete user channel mention: %w", err)
	}
	return nil
}

// DeleteChannelMentions removes every pending mention stored for one channel.
func (s *Store) DeleteChannelMentions(ctx context.Context, channelID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("channel id is required")
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM message_mentions WHERE channel_id = ?`, channelID); err != nil {
		return fmt.Errorf("delete channel mentions: %w", err)
	}
	return nil
}

// PutInvite persists one invite row.
func (s *Store) PutInvite(ctx context.Context, record storage.InviteRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.Code) == "" || strings.TrimSpace(record.ServerID) == "" {
		return fmt.Errorf("invite code and server id are required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO server_invites (code, server_id, created_by, uses, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(code) DO UPDATE SET
    uses = excluded.uses
`, record.Code, record.ServerID, record.CreatedBy, record.Uses, toMillis(record.CreatedAt))
	if err != nil {
		return fmt.Errorf("put invite: %w", err)
	}
	return nil
}

// GetInvite loads one invite row by code.
func (s *Store) GetInvite(ctx context.Context, code string) (storage.InviteRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.InviteRecord{}, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return storage.InviteRecord{}, fmt.Errorf("invite code is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT code, server_id, created_by, uses, created_at
FROM server_invites
WHERE code = ?
`, code)

	var record storage.InviteRecord
	var createdAt int64
	err := row.Scan(&record.Code, &record.ServerID, &record.CreatedBy, &record.Uses, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.InviteRecord{}, storage.ErrNotFound
		}
		return storage.InviteRecord{}, fmt.Errorf("get invite: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}
