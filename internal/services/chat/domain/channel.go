package domain

import "time"

// Channel type discriminators.
const (
	ChannelTypeServerText = "server_text"
	ChannelTypeDM         = "dm"
)

// Realtime event names pushed through the broadcaster.
const (
	EventChannelCreated        = "channel.created"
	EventChannelUpdated        = "channel.updated"
	EventChannelDeleted        = "channel.deleted"
	EventNotificationDismissed = "notification.dismissed"
)

// maxServerChannels caps how many channels one server may hold.
const maxServerChannels = 100

// Channel is one text channel inside a server, or a direct-message
// conversation when ServerID is empty.
type Channel struct {
	ID          string    `json:"id"`
	ServerID    string    `json:"server_id,omitempty"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Permissions int64     `json:"permissions"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChannelUpdatedEvent is the payload emitted to a server room after a
// channel edit. Only the fields that changed are populated.
type ChannelUpdatedEvent struct {
	ChannelID   string  `json:"channel_id"`
	ServerID    string  `json:"server_id"`
	Name        *string `json:"name,omitempty"`
	Permissions *int64  `json:"permissions,omitempty"`
}

// ChannelDeletedEvent is the payload emitted to a server room after a
// channel is removed.
type ChannelDeletedEvent struct {
	ChannelID string `json:"channel_id"`
	ServerID  string `json:"server_id"`
}

// NotificationDismissedEvent is the payload emitted to a user's personal
// room after their unread state for a channel is cleared.
type NotificationDismissedEvent struct {
	ChannelID string `json:"channel_id"`
	ServerID  string `json:"server_id,omitempty"`
}

// Mention is one unread-mention counter for a user in a channel.
type Mention struct {
	ChannelID     string    `json:"channel_id"`
	ServerID      string    `json:"server_id,omitempty"`
	MentionedByID string    `json:"mentioned_by_id"`
	Count         int64     `json:"count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Invite grants entry to a server by code.
type Invite struct {
	Code      string    `json:"code"`
	ServerID  string    `json:"server_id"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}
