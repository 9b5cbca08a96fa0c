// Package server parses server command flags and starts the chat runtime.
package server

import (
	"context"
	"flag"
	"fmt"
	"log"

	entrypoint "github.com/voxhall/voxhall/internal/platform/cmd"
	"github.com/voxhall/voxhall/internal/platform/storage/kvbolt"
	"github.com/voxhall/voxhall/internal/services/auth/token"
	app "github.com/voxhall/voxhall/internal/services/chat/app"
	"github.com/voxhall/voxhall/internal/services/chat/cache"
	"github.com/voxhall/voxhall/internal/services/chat/domain"
	"github.com/voxhall/voxhall/internal/services/chat/storage/sqlite"
)

// Config holds server command configuration.
type Config struct {
	Port      int    `env:"VOXHALL_SERVER_PORT" envDefault:"8080"`
	Addr      string `env:"VOXHALL_SERVER_ADDR"`
	DBPath    string `env:"VOXHALL_DB_PATH" envDefault:"voxhall.db"`
	CachePath string `env:"VOXHALL_CACHE_PATH" envDefault:"voxhall-cache.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The chat server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The chat server listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the sqlite database")
	fs.StringVar(&cfg.CachePath, "cache", cfg.CachePath, "Path to the bbolt cache store")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the chat HTTP/WebSocket service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close sqlite store: %v", err)
			}
		}()

		kv, err := kvbolt.Open(cfg.CachePath)
		if err != nil {
			return fmt.Errorf("open cache store: %w", err)
		}
		defer func() {
			if err := kv.Close(); err != nil {
				log.Printf("close cache store: %v", err)
			}
		}()

		tokenCfg, err := token.LoadConfigFromEnv(nil)
		if err != nil {
			return fmt.Errorf("load token config: %w", err)
		}

		accounts := cache.NewAccountCache(kv, store, token.NewDecoder(tokenCfg))
		channels := cache.NewChannelCache(kv, store)
		members := cache.NewMemberCache(kv, store)
		hub := app.NewHub()
		service := domain.NewService(store, channels, members, hub, nil, nil)

		addr := cfg.Addr
		if addr == "" {
			addr = fmt.Sprintf(":%d", cfg.Port)
		}
		return app.Run(ctx, app.Config{HTTPAddr: addr}, app.Deps{
			Service:   service,
			Accounts:  accounts,
			Members:   members,
			Directory: store,
			Hub:       hub,
		})
	})
}
