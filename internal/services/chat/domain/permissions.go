package domain

// Permission is one channel permission bit.
type Permission int64

// Channel permission bits. A channel's Permissions field is the bitwise OR
// of the granted bits.
const (
	PermissionSendMessage Permission = 1 << iota
	PermissionPrivateChannel
	PermissionJoinVoice
)

// Has reports whether bits grants the given permission.
func Has(bits int64, permission Permission) bool {
	return bits&int64(permission) == int64(permission)
}
