package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/voxhall/voxhall/internal/services/chat/storage"
)

const channelColumns = "id, server_id, name, type, permissions, created_by, created_at"

// PutChannel upserts one channel row.
func (s *Store) PutChannel(ctx context.Context, record storage.ChannelRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("channel id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO channels (id, server_id, name, type, permissions, created_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    permissions = excluded.permissions
`, record.ID, record.ServerID, record.Name, record.Type, record.Permissions, record.CreatedBy, toMillis(record.CreatedAt))
	if err != nil {
		return fmt.Errorf("put channel: %w", err)
	}
	return nil
}

// GetChannel loads one channel row by ID.
func (s *Store) GetChannel(ctx context.Context, channelID string) (storage.ChannelRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ChannelRecord{}, err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return storage.ChannelRecord{}, fmt.Errorf("channel id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, fmt.Sprintf(`
SELECT %s FROM channels WHERE id = ?
`, channelColumns), channelID)
	return scanChannel(row.Scan)
}

// GetServerChannel loads one channel row scoped to its owning server.
func (s *Store) GetServerChannel(ctx context.Context, serverID string, channelID string) (storage.ChannelRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ChannelRecord{}, err
	}
	serverID = strings.TrimSpace(serverID)
	channelID = strings.TrimSpace(channelID)
	if serverID == "" || channelID == "" {
		return storage.ChannelRecord{}, fmt.Errorf("server id and channel id are required")
	}

	row := s.sqlDB.QueryRowContext(ctx, fmt.Sprintf(`
SELECT %s FROM channels WHERE id = ? AND server_id = ?
`, channelColumns), channelID, serverID)
	return scanChannel(row.Scan)
}

// ListServerChannels lists every channel row owned by one server.
func (s *Store) ListServerChannels(ctx context.Context, serverID string) ([]storage.ChannelRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	serverID = strings.TrimSpace(serverID)
	if serverID == "" {
		return nil, fmt.Errorf("server id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, fmt.Sprintf(`
SELECT %s FROM channels WHERE server_id = ? ORDER BY created_at, id
`, channelColumns), serverID)
	if err != nil {
		return nil, fmt.Errorf("list server channels: %w", err)
	}
	defer rows.Close()

	var channels []storage.ChannelRecord
	for rows.Next() {
		record, err := scanChannel(rows.Scan)
		if err != nil {
			return nil, err
		}
		channels = append(channels, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}
	return channels, nil
}

// CountServerChannels counts channel rows owned by one server.
func (s *Store) CountServerChannels(ctx context.Context, serverID string) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	serverID = strings.TrimSpace(serverID)
	if serverID == "" {
		return 0, fmt.Errorf("server id is required")
	}

	var count int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*) FROM channels WHERE server_id = ?
`, serverID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count server channels: %w", err)
	}
	return count, nil
}

// UpdateServerChannel applies a partial update to one server channel row.
// Nil update fields are left untouched.
func (s *Store) UpdateServerChannel(ctx context.Context, serverID string, channelID string, update storage.ChannelUpdate) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	serverID = strings.TrimSpace(serverID)
	channelID = strings.TrimSpace(channelID)
	if serverID == "" || channelID == "" {
		return fmt.Errorf("server id and channel id are required")
	}

	var assignments []string
	var args []any
	if update.Name != nil {
		assignments = append(assignments, "name = ?")
		args = append(args, *update.Name)
	}
	if update.Permissions != nil {
		assignments = append(assignments, "permissions = ?")
		args = append(args, *update.Permissions)
	}
	if len(assignments) == 0 {
		return nil
	}
	args = append(args, channelID, serverID)

	result, err := s.sqlDB.ExecContext(ctx, fmt.Sprintf(`
UPDATE channels SET %s WHERE id = ? AND server_id = ?
`, strings.Join(assignments, ", ")), args...)
	if err != nil {
		return fmt.Errorf("update server channel: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update server channel rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// DeleteChannel removes one channel row.
func (s *Store) DeleteChannel(ctx context.Context, channelID string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("channel id is required")
	}

	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, channelID); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return nil
}

func scanChannel(scan func(dest ...any) error) (storage.ChannelRecord, error) {
	var record storage.ChannelRecord
	var createdAt int64
	err := scan(&record.ID, &record.ServerID, &record.Name, &record.Type, &record.Permissions, &record.CreatedBy, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ChannelRecord{}, storage.ErrNotFound
		}
		return storage.ChannelRecord{}, fmt.Errorf("scan channel: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}
