package storage

import (
	"context"
	"time"

	"github.com/voxhall/voxhall/internal/platform/errors"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New(errors.CodeNotFound, "record not found")

// AccountRecord is the durable auth projection source: the account row joined
// with its profile fields.
type AccountRecord struct {
	UserID          string
	Username        string
	Tag             string
	Avatar          string
	PasswordVersion int
	CreatedAt       time.Time
}

// ServerRecord is one chat server (a named community of members).
type ServerRecord struct {
	ID               string
	Name             string
	CreatedBy        string
	DefaultChannelID string
	CreatedAt        time.Time
}

// ChannelRecord is one text channel, either server-owned or a direct-message
// channel (empty ServerID).
type ChannelRecord struct {
	ID          string
	ServerID    string
	Name        string
	Type        string
	Permissions int64
	CreatedBy   string
	CreatedAt   time.Time
}

// ChannelUpdate is a partial channel mutation; nil fields are left untouched.
type ChannelUpdate struct {
	Name        *string
	Permissions *int64
}

// MemberRecord is one server membership.
type MemberRecord struct {
	ServerID string
	UserID   string
	RoleIDs  []string
	JoinedAt time.Time
}

// MessageRecord is one stored channel message. Message retrieval semantics
// are out of scope; rows exist so channel deletion can cascade.
type MessageRecord struct {
	ID        string
	ChannelID string
	UserID    string
	Content   string
	CreatedAt time.Time
}

// LastSeenRecord marks how far a user has read a server channel.
type LastSeenRecord struct {
	UserID     string
	ServerID   string
	ChannelID  string
	LastSeenAt time.Time
}

// MentionRecord is one pending mention notification.
type MentionRecord struct {
	ID          string
	ChannelID   string
	ServerID    string
	MentionedTo string
	MentionedBy string
	Count       int
	CreatedAt   time.Time
}

// InviteRecord is one server invite code.
type InviteRecord struct {
	Code      string
	ServerID  string
	CreatedBy string
	Uses      int
	CreatedAt time.Time
}

// AccountStore persists account records.
type AccountStore interface {
	PutAccount(ctx context.Context, record AccountRecord) error
	GetAccount(ctx context.Context, userID string) (AccountRecord, error)
}

// ServerStore persists server records.
type ServerStore interface {
	PutServer(ctx context.Context, record ServerRecord) error
	GetServer(ctx context.Context, serverID string) (ServerRecord, error)
}

// ChannelStore persists channel records.
type ChannelStore interface {
	PutChannel(ctx context.Context, record ChannelRecord) error
	GetChannel(ctx context.Context, channelID string) (ChannelRecord, error)
	GetServerChannel(ctx context.Context, serverID string, channelID string) (ChannelRecord, error)
	ListServerChannels(ctx context.Context, serverID string) ([]ChannelRecord, error)
	CountServerChannels(ctx context.Context, serverID string) (int, error)
	UpdateServerChannel(ctx context.Context, serverID string, channelID string, update ChannelUpdate) error
	DeleteChannel(ctx context.Context, channelID string) error
}

// MemberStore persists server membership records.
type MemberStore interface {
	PutMember(ctx context.Context, record MemberRecord) error
	GetMember(ctx context.Context, serverID string, userID string) (MemberRecord, error)
	ListServerMembers(ctx context.Context, serverID string) ([]MemberRecord, error)
	ListUserMemberships(ctx context.Context, userID string) ([]MemberRecord, error)
}

// MessageStore persists message records as far as channel cleanup requires.
type MessageStore interface {
	PutMessage(ctx context.Context, record MessageRecord) error
	CountChannelMessages(ctx context.Context, channelID string) (int, error)
	DeleteChannelMessages(ctx context.Context, channelID string) error
}

// LastSeenStore persists per-user channel read markers.
type LastSeenStore interface {
	UpsertLastSeen(ctx context.Context, record LastSeenRecord) error
	ListUserLastSeen(ctx context.Context, userID string) ([]LastSeenRecord, error)
	CountChannelLastSeen(ctx context.Context, channelID string) (int, error)
	DeleteChannelLastSeen(ctx context.Context, channelID string) error
}

// MentionStore persists pending mention notifications.
type MentionStore interface {
	PutMention(ctx context.Context, record MentionRecord) error
	ListUserMentions(ctx context.Context, userID string) ([]MentionRecord, error)
	DeleteUserChannelMention(ctx context.Context, userID string, channelID string) error
	DeleteChannelMentions(ctx context.Context, channelID string) error
}

// InviteStore persists server invite codes.
type InviteStore interface {
	PutInvite(ctx context.Context, record InviteRecord) error
	GetInvite(ctx context.Context, code string) (InviteRecord, error)
}
