// Package errors provides structured error handling for Voxhall services.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Account errors
	CodeAccountInvalidToken Code = "ACCOUNT_INVALID_TOKEN"

	// Server errors
	CodeServerNotFound       Code = "SERVER_NOT_FOUND"
	CodeServerMemberRequired Code = "SERVER_MEMBER_REQUIRED"

	// Channel errors
	CodeChannelNotFound            Code = "CHANNEL_NOT_FOUND"
	CodeChannelLimitExceeded       Code = "CHANNEL_LIMIT_EXCEEDED"
	CodeChannelCannotDeleteDefault Code = "CHANNEL_CANNOT_DELETE_DEFAULT"
	CodeChannelNameEmpty           Code = "CHANNEL_NAME_EMPTY"

	// Invite errors
	CodeInviteEmptyServerID Code = "INVITE_EMPTY_SERVER_ID"

	// Request errors
	CodeRateLimited Code = "RATE_LIMITED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps an error code to the HTTP status surfaced to callers.
// Unknown codes map to 500 so infrastructure failures never leak detail.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeAccountInvalidToken:
		return http.StatusUnauthorized
	case CodeServerMemberRequired:
		return http.StatusForbidden
	case CodeServerNotFound, CodeChannelNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeChannelLimitExceeded, CodeChannelCannotDeleteDefault,
		CodeChannelNameEmpty, CodeInviteEmptyServerID:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
