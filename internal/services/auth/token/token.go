// Package token verifies Voxhall bearer tokens.
//
// Tokens are EdDSA-signed JWTs carrying the account identity and the password
// version current at issue time. Verification is a pure function over the
// configured public key; session revocation happens downstream by comparing
// the password version against the cached account projection.
package token

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/voxhall/voxhall/internal/platform/errors"
)

// tokenEnv holds raw env values before post-parse validation.
type tokenEnv struct {
	Issuer    string `env:"VOXHALL_TOKEN_ISSUER"`
	Audience  string `env:"VOXHALL_TOKEN_AUDIENCE"`
	PublicKey string `env:"VOXHALL_TOKEN_PUBLIC_KEY"`
}

// Config defines how bearer tokens are verified.
type Config struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Claims captures the validated identity carried by a bearer token.
type Claims struct {
	UserID          string
	PasswordVersion int
}

// tokenClaims is the internal claims type used for JWT parsing.
type tokenClaims struct {
	jwt.RegisteredClaims
	UserID          string `json:"user_id"`
	PasswordVersion int    `json:"password_version"`
}

// LoadConfigFromEnv reads bearer token verification configuration.
func LoadConfigFromEnv(now func() time.Time) (Config, error) {
	var raw tokenEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse token env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return Config{}, fmt.Errorf("VOXHALL_TOKEN_ISSUER is required")
	}
	if audience == "" {
		return Config{}, fmt.Errorf("VOXHALL_TOKEN_AUDIENCE is required")
	}
	if publicKey == "" {
		return Config{}, fmt.Errorf("VOXHALL_TOKEN_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return Config{}, fmt.Errorf("decode token public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return Config{}, fmt.Errorf("token public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return Config{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// Decoder verifies bearer tokens against a fixed configuration.
type Decoder struct {
	cfg Config
}

// NewDecoder constructs a Decoder from a verification config.
func NewDecoder(cfg Config) *Decoder {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Decoder{cfg: cfg}
}

// Decode verifies a bearer token and returns its identity claims.
func (d *Decoder) Decode(token string) (Claims, error) {
	if d == nil {
		return Claims{}, errors.New("token decoder is not configured")
	}
	return Decode(token, d.cfg)
}

// Decode verifies a bearer token and validates its claims.
func Decode(token string, cfg Config) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeAccountInvalidToken, "token is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return Claims{}, errors.New("token verifier is not configured")
	}

	var parsed tokenClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeAccountInvalidToken,
			"token issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, apperrors.WithMetadata(
			apperrors.CodeAccountInvalidToken,
			"token audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeAccountInvalidToken, "token exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeAccountInvalidToken, "token is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return Claims{}, apperrors.New(apperrors.CodeAccountInvalidToken, "token not active yet")
		}
	}

	if strings.TrimSpace(parsed.UserID) == "" {
		return Claims{}, apperrors.New(apperrors.CodeAccountInvalidToken, "token user id is required")
	}
	if parsed.PasswordVersion < 0 {
		return Claims{}, apperrors.New(apperrors.CodeAccountInvalidToken, "token password version is invalid")
	}

	return Claims{
		UserID:          parsed.UserID,
		PasswordVersion: parsed.PasswordVersion,
	}, nil
}

// SignOptions configures token minting.
type SignOptions struct {
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

// Sign mints a bearer token for the given identity. It backs the seed tooling
// and tests; production issuance lives in the auth service.
func Sign(claims Claims, key ed25519.PrivateKey, opts SignOptions) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("signing key must be %d bytes", ed25519.PrivateKeySize)
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return "", fmt.Errorf("user id is required")
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	issuedAt := now().UTC()

	jwtClaims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    opts.Issuer,
			Audience:  jwt.ClaimStrings{opts.Audience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		UserID:          claims.UserID,
		PasswordVersion: claims.PasswordVersion,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwtClaims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeAccountInvalidToken, "token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeAccountInvalidToken, "token alg is invalid")
	}
	return apperrors.New(apperrors.CodeAccountInvalidToken, "token is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
