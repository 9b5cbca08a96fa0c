package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/voxhall/voxhall/internal/platform/errors"
	"github.com/voxhall/voxhall/internal/platform/id"
	"github.com/voxhall/voxhall/internal/services/chat/cache"
	"github.com/voxhall/voxhall/internal/services/chat/storage"
)

var (
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("chat store is not configured")
	// ErrBroadcasterNotConfigured indicates the service is missing realtime wiring.
	ErrBroadcasterNotConfigured = errors.New("chat broadcaster is not configured")
	// ErrCacheNotConfigured indicates the service is missing cache wiring.
	ErrCacheNotConfigured = errors.New("chat cache is not configured")
	// ErrServerIDRequired indicates a server ID is required.
	ErrServerIDRequired = errors.New("server id is required")
	// ErrChannelIDRequired indicates a channel ID is required.
	ErrChannelIDRequired = errors.New("channel id is required")
	// ErrUserIDRequired indicates a user ID is required.
	ErrUserIDRequired = errors.New("user id is required")
)

// Store is the durable persistence boundary for channel lifecycle behavior.
type Store interface {
	GetServer(ctx context.Context, serverID string) (storage.ServerRecord, error)
	PutChannel(ctx context.Context, record storage.ChannelRecord) error
	GetServerChannel(ctx context.Context, serverID string, channelID string) (storage.ChannelRecord, error)
	CountServerChannels(ctx context.Context, serverID string) (int, error)
	UpdateServerChannel(ctx context.Context, serverID string, channelID string, update storage.ChannelUpdate) error
	DeleteChannel(ctx context.Context, channelID string) error
	DeleteChannelMessages(ctx context.Context, channelID string) error
	UpsertLastSeen(ctx context.Context, record storage.LastSeenRecord) error
	ListUserLastSeen(ctx context.Context, userID string) ([]storage.LastSeenRecord, error)
	DeleteChannelLastSeen(ctx context.Context, channelID string) error
	ListUserMentions(ctx context.Context, userID string) ([]storage.MentionRecord, error)
	DeleteUserChannelMention(ctx context.Context, userID string, channelID string) error
	DeleteChannelMentions(ctx context.Context, channelID string) error
	PutInvite(ctx context.Context, record storage.InviteRecord) error
}

// ChannelProjection is the channel read-through cache boundary.
type ChannelProjection interface {
	Channel(ctx context.Context, channelID string, requestingUserID string) (cache.ChannelEntry, error)
	Patch(ctx context.Context, channelID string, patch cache.ChannelPatch) error
	Invalidate(ctx context.Context, channelID string) error
}

// MemberProjection is the membership read-through cache boundary.
type MemberProjection interface {
	Member(ctx context.Context, serverID string, userID string) (cache.MemberEntry, error)
	Members(ctx context.Context, serverID string) ([]cache.MemberEntry, error)
}

// Broadcaster reshapes realtime room subscriptions and pushes events. Room
// names are user IDs (personal rooms), server IDs, and channel IDs. JoinRoom
// and LeaveRoom apply to every connection currently in sourceRoom.
type Broadcaster interface {
	JoinRoom(sourceRoom string, room string)
	LeaveRoom(sourceRoom string, room string)
	Emit(room string, event string, payload any)
}

// Service orchestrates channel lifecycle, read-state dismissal, and the
// realtime fanout that keeps connected clients in sync with both.
type Service struct {
	store       Store
	channels    ChannelProjection
	members     MemberProjection
	broadcaster Broadcaster
	clock       func() time.Time
	newID       func() (string, error)
}

// NewService constructs chat domain use-cases.
func NewService(store Store, channels ChannelProjection, members MemberProjection, broadcaster Broadcaster, clock func() time.Time, newID func() (string, error)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store:       store,
		channels:    channels,
		members:     members,
		broadcaster: broadcaster,
		clock:       clock,
		newID:       newID,
	}
}

// CreateChannelInput describes one server channel creation request.
type CreateChannelInput struct {
	ServerID  string
	Name      string
	CreatedBy string
}

// CreateChannel adds a text channel to a server, subscribes every connection
// in the server room to the new channel room, and announces it. Servers hold
// at most 100 channels. The server itself is not re-verified here; routing
// has already established the caller's membership.
func (s *Service) CreateChannel(ctx context.Context, input CreateChannelInput) (Channel, error) {
	if err := s.ready(); err != nil {
		return Channel{}, err
	}
	serverID := strings.TrimSpace(input.ServerID)
	if serverID == "" {
		return Channel{}, ErrServerIDRequired
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Channel{}, apperrors.New(apperrors.CodeChannelNameEmpty, "channel name is required")
	}

	count, err := s.store.CountServerChannels(ctx, serverID)
	if err != nil {
		return Channel{}, err
	}
	if count >= maxServerChannels {
		return Channel{}, apperrors.WithMetadata(apperrors.CodeChannelLimitExceeded, "server channel limit reached", map[string]string{
			"limit": "100",
		})
	}

	channelID, err := s.newID()
	if err != nil {
		return Channel{}, err
	}
	record := storage.ChannelRecord{
		ID:          channelID,
		ServerID:    serverID,
		Name:        name,
		Type:        ChannelTypeServerText,
		Permissions: int64(PermissionSendMessage),
		CreatedBy:   strings.TrimSpace(input.CreatedBy),
		CreatedAt:   s.nowUTC(),
	}
	if err := s.store.PutChannel(ctx, record); err != nil {
		return Channel{}, err
	}

	channel := channelFromRecord(record)
	s.broadcaster.JoinRoom(serverID, channelID)
	s.broadcaster.Emit(serverID, EventChannelCreated, channel)
	return channel, nil
}

// UpdateChannelInput describes one partial server channel edit. Nil fields
// are left untouched.
type UpdateChannelInput struct {
	ServerID    string
	ChannelID   string
	Name        *string
	Permissions *int64
}

// UpdateChannel applies a partial edit to a server channel, patches the
// cached projection with exactly the supplied fields, and announces the edit
// to the server room. Flipping the private permission bit rebuilds the
// channel room from scratch: every connection leaves, then each member's
// personal room rejoins unless the channel became private, in which case only
// the server creator's connections rejoin.
func (s *Service) UpdateChannel(ctx context.Context, input UpdateChannelInput) (ChannelUpdatedEvent, error) {
	if err := s.ready(); err != nil {
		return ChannelUpdatedEvent{}, err
	}
	serverID := strings.TrimSpace(input.ServerID)
	if serverID == "" {
		return ChannelUpdatedEvent{}, ErrServerIDRequired
	}
	channelID := strings.TrimSpace(input.ChannelID)
	if channelID == "" {
		return ChannelUpdatedEvent{}, ErrChannelIDRequired
	}

	server, err := s.store.GetServer(ctx, serverID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ChannelUpdatedEvent{}, apperrors.New(apperrors.CodeServerNotFound, "server not found")
		}
		return ChannelUpdatedEvent{}, err
	}
	channel, err := s.store.GetServerChannel(ctx, serverID, channelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ChannelUpdatedEvent{}, apperrors.New(apperrors.CodeChannelNotFound, "channel not found")
		}
		return ChannelUpdatedEvent{}, err
	}

	update := storage.ChannelUpdate{Permissions: input.Permissions}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return ChannelUpdatedEvent{}, apperrors.New(apperrors.CodeChannelNameEmpty, "channel name is required")
		}
		update.Name = &name
	}
	if err := s.store.UpdateServerChannel(ctx, serverID, channelID, update); err != nil {
		return ChannelUpdatedEvent{}, err
	}
	if err := s.channels.Patch(ctx, channelID, cache.ChannelPatch{Name: update.Name, Permissions: update.Permissions}); err != nil {
		return ChannelUpdatedEvent{}, err
	}

	event := ChannelUpdatedEvent{
		ChannelID:   channelID,
		ServerID:    serverID,
		Name:        update.Name,
		Permissions: update.Permissions,
	}
	s.broadcaster.Emit(serverID, EventChannelUpdated, event)

	if input.Permissions != nil {
		wasPrivate := Has(channel.Permissions, PermissionPrivateChannel)
		isPrivate := Has(*input.Permissions, PermissionPrivateChannel)
		if wasPrivate != isPrivate {
			if err := s.reconcileChannelRoom(ctx, server, channelID, isPrivate); err != nil {
				return ChannelUpdatedEvent{}, err
			}
		}
	}
	return event, nil
}

// reconcileChannelRoom rebuilds a channel room after its visibility flipped.
// Membership of the room is derived from scratch rather than diffed, so the
// rebuild is idempotent.
func (s *Service) reconcileChannelRoom(ctx context.Context, server storage.ServerRecord, channelID string, private bool) error {
	s.broadcaster.LeaveRoom(server.ID, channelID)
	members, err := s.members.Members(ctx, server.ID)
	if err != nil {
		return err
	}
	for _, member := range members {
		if private && member.UserID != server.CreatedBy {
			continue
		}
		s.broadcaster.JoinRoom(member.UserID, channelID)
	}
	return nil
}

// DeleteChannelInput identifies one server channel to remove.
type DeleteChannelInput struct {
	ServerID  string
	ChannelID string
}

// DeleteChannel removes a server channel and everything hanging off it:
// messages first, then read markers, then pending mentions, then the channel
// row itself. The cached projection is invalidated, the channel room is
// emptied, and the deletion is announced to the server room. The server's
// default channel cannot be deleted.
func (s *Service) DeleteChannel(ctx context.Context, input DeleteChannelInput) error {
	if err := s.ready(); err != nil {
		return err
	}
	serverID := strings.TrimSpace(input.ServerID)
	if serverID == "" {
		return ErrServerIDRequired
	}
	channelID := strings.TrimSpace(input.ChannelID)
	if channelID == "" {
		return ErrChannelIDRequired
	}

	server, err := s.store.GetServer(ctx, serverID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeServerNotFound, "server not found")
		}
		return err
	}
	if _, err := s.store.GetServerChannel(ctx, serverID, channelID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeChannelNotFound, "channel not found")
		}
		return err
	}
	if channelID == server.DefaultChannelID {
		return apperrors.New(apperrors.CodeChannelCannotDeleteDefault, "default channel cannot be deleted")
	}

	if err := s.store.DeleteChannelMessages(ctx, channelID); err != nil {
		return err
	}
	if err := s.store.DeleteChannelLastSeen(ctx, channelID); err != nil {
		return err
	}
	if err := s.store.DeleteChannelMentions(ctx, channelID); err != nil {
		return err
	}
	if err := s.store.DeleteChannel(ctx, channelID); err != nil {
		return err
	}
	if err := s.channels.Invalidate(ctx, channelID); err != nil {
		return err
	}

	s.broadcaster.LeaveRoom(serverID, channelID)
	s.broadcaster.Emit(serverID, EventChannelDeleted, ChannelDeletedEvent{
		ChannelID: channelID,
		ServerID:  serverID,
	})
	return nil
}

// DismissNotification clears a user's unread state for one channel. Server
// channels get their last-seen marker advanced to now; direct-message
// channels get the pending mention counter deleted instead. Dismissing a
// channel the user cannot see, or is not a member of, is a silent no-op.
// When emit is set the dismissal is pushed to the user's personal room so
// their other devices clear the badge too.
func (s *Service) DismissNotification(ctx context.Context, userID string, channelID string, emit bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return ErrChannelIDRequired
	}

	channel, err := s.channels.Channel(ctx, channelID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}

	if channel.ServerID != "" {
		if _, err := s.members.Member(ctx, channel.ServerID, userID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		}
		record := storage.LastSeenRecord{
			UserID:     userID,
			ServerID:   channel.ServerID,
			ChannelID:  channelID,
			LastSeenAt: s.nowUTC(),
		}
		if err := s.store.UpsertLastSeen(ctx, record); err != nil {
			return err
		}
	} else {
		if err := s.store.DeleteUserChannelMention(ctx, userID, channelID); err != nil {
			return err
		}
	}

	if emit {
		s.broadcaster.Emit(userID, EventNotificationDismissed, NotificationDismissedEvent{
			ChannelID: channelID,
			ServerID:  channel.ServerID,
		})
	}
	return nil
}

// Mentions lists a user's pending mention counters across all channels.
func (s *Service) Mentions(ctx context.Context, userID string) ([]Mention, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	records, err := s.store.ListUserMentions(ctx, userID)
	if err != nil {
		return nil, err
	}
	mentions := make([]Mention, 0, len(records))
	for _, record := range records {
		mentions = append(mentions, Mention{
			ChannelID:     record.ChannelID,
			ServerID:      record.ServerID,
			MentionedByID: record.MentionedBy,
			Count:         int64(record.Count),
			CreatedAt:     record.CreatedAt,
		})
	}
	return mentions, nil
}

// LastSeen lists a user's read markers keyed by channel ID.
func (s *Service) LastSeen(ctx context.Context, userID string) (map[string]time.Time, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	records, err := s.store.ListUserLastSeen(ctx, userID)
	if err != nil {
		return nil, err
	}
	markers := make(map[string]time.Time, len(records))
	for _, record := range records {
		markers[record.ChannelID] = record.LastSeenAt
	}
	return markers, nil
}

// CreateInvite mints an invite code for a server.
func (s *Service) CreateInvite(ctx context.Context, serverID string, createdBy string) (Invite, error) {
	if err := s.ready(); err != nil {
		return Invite{}, err
	}
	serverID = strings.TrimSpace(serverID)
	if serverID == "" {
		return Invite{}, apperrors.New(apperrors.CodeInviteEmptyServerID, "invite server id is required")
	}
	if _, err := s.store.GetServer(ctx, serverID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Invite{}, apperrors.New(apperrors.CodeServerNotFound, "server not found")
		}
		return Invite{}, err
	}

	code, err := s.newID()
	if err != nil {
		return Invite{}, err
	}
	record := storage.InviteRecord{
		Code:      code,
		ServerID:  serverID,
		CreatedBy: strings.TrimSpace(createdBy),
		CreatedAt: s.nowUTC(),
	}
	if err := s.store.PutInvite(ctx, record); err != nil {
		return Invite{}, err
	}
	return Invite{
		Code:      record.Code,
		ServerID:  record.ServerID,
		CreatedBy: record.CreatedBy,
		CreatedAt: record.CreatedAt,
	}, nil
}

func (s *Service) ready() error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	if s.channels == nil || s.members == nil {
		return ErrCacheNotConfigured
	}
	if s.broadcaster == nil {
		return ErrBroadcasterNotConfigured
	}
	return nil
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}

func channelFromRecord(record storage.ChannelRecord) Channel {
	return Channel{
		ID:          record.ID,
		ServerID:    record.ServerID,
		Name:        record.Name,
		Type:        record.Type,
		Permissions: record.Permissions,
		CreatedBy:   record.CreatedBy,
		CreatedAt:   record.CreatedAt,
	}
}
