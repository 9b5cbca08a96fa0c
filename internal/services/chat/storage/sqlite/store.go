// Package sqlite implements the chat storage interfaces over SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/voxhall/voxhall/internal/platform/storage/sqlitemigrate"
	"github.com/voxhall/voxhall/internal/services/chat/storage"
	"github.com/voxhall/voxhall/internal/services/chat/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed persistence for the chat backend. A single
// file backs every record family so per-call writes share the same
// visibility boundary.
type Store struct {
	sqlDB *sql.DB
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a chat SQLite store at the provided path and applies bundled
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func marshalRoleIDs(roleIDs []string) (string, error) {
	if len(roleIDs) == 0 {
		return "[]", nil
	}
	payload, err := json.Marshal(roleIDs)
	if err != nil {
		return "", fmt.Errorf("marshal role ids: %w", err)
	}
	return string(payload), nil
}

func unmarshalRoleIDs(payload string) ([]string, error) {
	if strings.TrimSpace(payload) == "" {
		return nil, nil
	}
	var roleIDs []string
	if err := json.Unmarshal([]byte(payload), &roleIDs); err != nil {
		return nil, fmt.Errorf("unmarshal role ids: %w", err)
	}
	if len(roleIDs) == 0 {
		return nil, nil
	}
	return roleIDs, nil
}

// PutAccount upserts one account row.
func (s *Store) PutAccount(ctx context.Context, record storage.AccountRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.UserID) == "" {
		return fmt.Errorf("account user id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO accounts (user_id, username, tag, avatar, password_version, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
    username = excluded.username,
    tag = excluded.tag,
    avatar = excluded.avatar,
    password_version = excluded.password_version
`, record.UserID, record.Username, record.Tag, record.Avatar, record.PasswordVersion, toMillis(record.CreatedAt))
	if err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

// GetAccount loads one account row by user ID.
func (s *Store) GetAccount(ctx context.Context, userID string) (storage.AccountRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.AccountRecord{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return storage.AccountRecord{}, fmt.Errorf("account user id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT user_id, username, tag, avatar, password_version, created_at
FROM accounts
WHERE user_id = ?
`, userID)

	var record storage.AccountRecord
	var createdAt int64
	err := row.Scan(&record.UserID, &record.Username, &record.Tag, &record.Avatar, &record.PasswordVersion, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.AccountRecord{}, storage.ErrNotFound
		}
		return storage.AccountRecord{}, fmt.Errorf("get account: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

// PutServer upserts one server row.
func (s *Store) PutServer(ctx context.Context, record storage.ServerRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("server id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO servers (id, name, created_by, default_channel_id, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    default_channel_id = excluded.default_channel_id
`, record.ID, record.Name, record.CreatedBy, record.DefaultChannelID, toMillis(record.CreatedAt))
	if err != nil {
		return fmt.Errorf("put server: %w", err)
	}
	return nil
}

// GetServer loads one server row by ID.
func (s *Store) GetServer(ctx context.Context, serverID string) (storage.ServerRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ServerRecord{}, err
	}
	serverID = strings.TrimSpace(serverID)
	if serverID == "" {
		return storage.ServerRecord{}, fmt.Errorf("server id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, created_by, default_channel_id, created_at
FROM servers
WHERE id = ?
`, serverID)

	var record storage.ServerRecord
	var createdAt int64
	err := row.Scan(&record.ID, &record.Name, &record.CreatedBy, &record.DefaultChannelID, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ServerRecord{}, storage.ErrNotFound
		}
		return storage.ServerRecord{}, fmt.Errorf("get server: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

// PutMember upserts one server membership row.
func (s *Store) PutMember(ctx context.Context, record storage.MemberRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(record.ServerID) == "" || strings.TrimSpace(record.UserID) == "" {
		return fmt.Errorf("member server id and user id are required")
	}
	roleIDs, err := marshalRoleIDs(record.RoleIDs)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO server_members (server_id, user_id, role_ids_json, joined_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(server_id, user_id) DO UPDATE SET
    role_ids_json = excluded.role_ids_json
`, record.ServerID, record.UserID, roleIDs, toMillis(record.JoinedAt))
	if err != nil {
		return fmt.Errorf("put member: %w", err)
	}
	return nil
}

// GetMember loads one membership row by composite key.
func (s *Store) GetMember(ctx context.Context, serverID string, userID string) (storage.MemberRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.MemberRecord{}, err
	}
	serverID = strings.TrimSpace(serverID)
	userID = strings.TrimSpace(userID)
	if serverID == "" || userID == "" {
		return storage.MemberRecord{}, fmt.Errorf("member server id and user id are required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT server_id, user_id, role_ids_json, joined_at
FROM server_members
WHERE server_id = ? AND user_id = ?
`, serverID, userID)
	return scanMember(row.Scan)
}

// ListServerMembers lists every membership row for one server.
func (s *Store) ListServerMembers(ctx context.Context, serverID string) ([]storage.MemberRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	serverID = strings.TrimSpace(serverID)
	if serverID == "" {
		return nil, fmt.Errorf("server id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT server_id, user_id, role_ids_json, joined_at
FROM server_members
WHERE server_id = ?
ORDER BY joined_at, user_id
`, serverID)
	if err != nil {
		return nil, fmt.Errorf("list server members: %w", err)
	}
	defer rows.Close()
	return collectMembers(rows)
}

// ListUserMemberships lists every membership row for one user.
func (s *Store) ListUserMemberships(ctx context.Context, userID string) ([]storage.MemberRecord, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT server_id, user_id, role_ids_json, joined_at
FROM server_members
WHERE user_id = ?
ORDER BY joined_at, server_id
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user memberships: %w", err)
	}
	defer rows.Close()
	return collectMembers(rows)
}

func scanMember(scan func(dest ...any) error) (storage.MemberRecord, error) {
	var record storage.MemberRecord
	var roleIDs string
	var joinedAt int64
	if err := scan(&record.ServerID, &record.UserID, &roleIDs, &joinedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.MemberRecord{}, storage.ErrNotFound
		}
		return storage.MemberRecord{}, fmt.Errorf("scan member: %w", err)
	}
	parsed, err := unmarshalRoleIDs(roleIDs)
	if err != nil {
		return storage.MemberRecord{}, err
	}
	record.RoleIDs = parsed
	record.JoinedAt = fromMillis(joinedAt)
	return record, nil
}

func collectMembers(rows *sql.Rows) ([]storage.MemberRecord, error) {
	var members []storage.MemberRecord
	for rows.Next() {
		record, err := scanMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		members = append(members, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}
