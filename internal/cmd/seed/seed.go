// Package seed parses seed command flags and provisions local demo data.
package seed

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"time"

	entrypoint "github.com/voxhall/voxhall/internal/platform/cmd"
	"github.com/voxhall/voxhall/internal/platform/id"
	"github.com/voxhall/voxhall/internal/services/auth/token"
	"github.com/voxhall/voxhall/internal/services/chat/domain"
	"github.com/voxhall/voxhall/internal/services/chat/storage"
	"github.com/voxhall/voxhall/internal/services/chat/storage/sqlite"
)

const demoTokenTTL = 30 * 24 * time.Hour

// Config holds seed command configuration.
type Config struct {
	DBPath   string `env:"VOXHALL_DB_PATH" envDefault:"voxhall.db"`
	Issuer   string `env:"VOXHALL_TOKEN_ISSUER" envDefault:"voxhall"`
	Audience string `env:"VOXHALL_TOKEN_AUDIENCE" envDefault:"voxhall"`
	Username string
	Server   string
	Channels int
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the sqlite database")
	fs.StringVar(&cfg.Username, "user", "demo", "Username for the seeded account")
	fs.StringVar(&cfg.Server, "server", "Demo Server", "Name for the seeded server")
	fs.IntVar(&cfg.Channels, "channels", 3, "Number of channels to create")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run provisions a demo account, server, channels, and membership, then
// prints a signed token plus the matching public key so the server can be
// started against the seeded data.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if cfg.Channels < 1 {
		cfg.Channels = 1
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite store: %w", err)
	}
	defer store.Close()

	now := time.Now().UTC()
	userID, err := id.NewID()
	if err != nil {
		return err
	}
	serverID, err := id.NewID()
	if err != nil {
		return err
	}

	if err := store.PutAccount(ctx, storage.AccountRecord{
		UserID:          userID,
		Username:        cfg.Username,
		Tag:             "0001",
		PasswordVersion: 1,
		CreatedAt:       now,
	}); err != nil {
		return fmt.Errorf("seed account: %w", err)
	}

	channelIDs := make([]string, 0, cfg.Channels)
	for i := 0; i < cfg.Channels; i++ {
		channelID, err := id.NewID()
		if err != nil {
			return err
		}
		name := "general"
		if i > 0 {
			name = fmt.Sprintf("room-%d", i)
		}
		if err := store.PutChannel(ctx, storage.ChannelRecord{
			ID:          channelID,
			ServerID:    serverID,
			Name:        name,
			Type:        domain.ChannelTypeServerText,
			Permissions: int64(domain.PermissionSendMessage),
			CreatedBy:   userID,
			CreatedAt:   now,
		}); err != nil {
			return fmt.Errorf("seed channel %s: %w", name, err)
		}
		channelIDs = append(channelIDs, channelID)
	}

	if err := store.PutServer(ctx, storage.ServerRecord{
		ID:               serverID,
		Name:             cfg.Server,
		CreatedBy:        userID,
		DefaultChannelID: channelIDs[0],
		CreatedAt:        now,
	}); err != nil {
		return fmt.Errorf("seed server: %w", err)
	}
	if err := store.PutMember(ctx, storage.MemberRecord{
		ServerID: serverID,
		UserID:   userID,
		JoinedAt: now,
	}); err != nil {
		return fmt.Errorf("seed membership: %w", err)
	}

	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate token key: %w", err)
	}
	bearer, err := token.Sign(token.Claims{UserID: userID, PasswordVersion: 1}, privateKey, token.SignOptions{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		TTL:      demoTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("sign demo token: %w", err)
	}

	fmt.Fprintf(out, "user: %s (%s)\n", cfg.Username, userID)
	fmt.Fprintf(out, "server: %s (%s)\n", cfg.Server, serverID)
	for i, channelID := range channelIDs {
		fmt.Fprintf(out, "channel %d: %s\n", i+1, channelID)
	}
	fmt.Fprintf(out, "VOXHALL_TOKEN_PUBLIC_KEY=%s\n", base64.StdEncoding.EncodeToString(publicKey))
	fmt.Fprintf(out, "token: %s\n", bearer)
	return nil
}
