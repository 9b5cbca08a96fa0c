package seed

import (
	"bytes"
	"context"
	"encoding/base64"
	"flag"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voxhall/voxhall/internal/services/auth/token"
	"github.com/voxhall/voxhall/internal/services/chat/storage/sqlite"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Username != "demo" {
		t.Fatalf("expected default user demo, got %q", cfg.Username)
	}
	if cfg.Channels != 3 {
		t.Fatalf("expected default channel count 3, got %d", cfg.Channels)
	}
}

func TestRun_SeedsTokenVerifiableData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seed.db")
	cfg := Config{
		DBPath:   dbPath,
		Issuer:   "voxhall",
		Audience: "voxhall",
		Username: "demo",
		Server:   "Demo Server",
		Channels: 2,
	}

	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run seed: %v", err)
	}

	values := map[string]string{}
	for _, line := range strings.Split(out.String(), "\n") {
		key, value, ok := strings.Cut(line, ": ")
		if ok {
			values[key] = value
			continue
		}
		if after, found := strings.CutPrefix(line, "VOXHALL_TOKEN_PUBLIC_KEY="); found {
			values["public_key"] = after
		}
	}
	if values["token"] == "" || values["public_key"] == "" {
		t.Fatalf("expected token and public key in output, got:\n%s", out.String())
	}

	publicKey, err := base64.StdEncoding.DecodeString(values["public_key"])
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	claims, err := token.Decode(values["token"], token.Config{
		Issuer:   "voxhall",
		Audience: "voxhall",
		Key:      publicKey,
	})
	if err != nil {
		t.Fatalf("decode seeded token: %v", err)
	}
	if claims.PasswordVersion != 1 {
		t.Fatalf("claims password version = %d, want 1", claims.PasswordVersion)
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("open seeded store: %v", err)
	}
	defer store.Close()

	account, err := store.GetAccount(context.Background(), claims.UserID)
	if err != nil {
		t.Fatalf("get seeded account: %v", err)
	}
	if account.Username != "demo" {
		t.Fatalf("account username = %q, want demo", account.Username)
	}

	memberships, err := store.ListUserMemberships(context.Background(), claims.UserID)
	if err != nil {
		t.Fatalf("list memberships: %v", err)
	}
	if len(memberships) != 1 {
		t.Fatalf("memberships = %d, want 1", len(memberships))
	}

	channels, err := store.ListServerChannels(context.Background(), memberships[0].ServerID)
	if err != nil {
		t.Fatalf("list channels: %v", err)
	}
	if len(channels) != 2 {
		t.Fatalf("channels = %d, want 2", len(channels))
	}

	srv, err := store.GetServer(context.Background(), memberships[0].ServerID)
	if err != nil {
		t.Fatalf("get seeded server: %v", err)
	}
	if srv.DefaultChannelID == "" {
		t.Fatal("expected seeded server to have a default channel")
	}
}
