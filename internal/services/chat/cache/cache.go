// Package cache provides read-through caches for denormalized chat
// projections: account auth state, channel metadata, and server membership.
//
// The cache layer is a performance optimization, not a consistency source:
// durable writes and the corresponding cache patches are not linked by any
// transaction, so readers must tolerate a staleness window between them.
package cache

import "context"

// KV is the key-value boundary backing every cache. Values are serialized
// JSON projections; no TTL is applied by this package.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
}

// Cache key layouts. One key per projection so invalidation stays targeted.
func accountKey(userID string) string {
	return "account:" + userID
}

func channelKey(channelID string) string {
	return "channel:" + channelID
}

func memberKey(serverID string, userID string) string {
	return "member:" + serverID + ":" + userID
}

func membersKey(serverID string) string {
	return "members:" + serverID
}
