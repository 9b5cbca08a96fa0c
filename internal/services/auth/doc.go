// Package auth defines the identity boundary used across the platform.
//
// It is the single place that owns token formats and claim validation so
// other services can depend on stable user IDs instead of re-implementing
// identity rules.
//
// Subpackages:
//   - token: EdDSA bearer token signing and decoding
package auth
