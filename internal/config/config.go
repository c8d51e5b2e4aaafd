// Package config loads and writes .tasque/config.json. It uses
// github.com/spf13/viper as a typed reader (the same library BeadsLog's
// internal/config centers its process-wide configuration on) scoped down
// to a single explicit file and the three keys the wire format defines
// (spec §6.1); the final write still goes through the atomic-write
// primitive since viper has no fsync-on-write mode of its own.
package config

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/spf13/viper"

	"github.com/BumpyClock/tasque/internal/paths"
	"github.com/BumpyClock/tasque/internal/tasqerr"
)

// Config is the parsed shape of .tasque/config.json (spec §4.1/§6.1).
type Config struct {
	SchemaVersion int    `json:"schema_version"`
	SnapshotEvery int    `json:"snapshot_every"`
	SyncBranch    string `json:"sync_branch,omitempty"`
}

// Default returns the default configuration written at init time.
func Default() Config {
	return Config{SchemaVersion: 1, SnapshotEvery: 200}
}

// Load reads and validates config.json. A missing file is not an error;
// it returns the zero Config so callers can tell "absent" from "present".
func Load(l paths.Layout) (Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigFile(l.Config)

	if err := v.ReadInConfig(); err != nil {
		if isNotFound(err) {
			return Config{}, nil
		}
		return Config{}, tasqerr.Wrap(tasqerr.CodeConfigReadFailed, err, "read %s", l.Config)
	}

	cfg := Config{
		SchemaVersion: v.GetInt("schema_version"),
		SnapshotEvery: v.GetInt("snapshot_every"),
		SyncBranch:    v.GetString("sync_branch"),
	}
	if cfg.SchemaVersion == 0 {
		cfg.SchemaVersion = 1
	}
	if cfg.SnapshotEvery <= 0 {
		return Config{}, tasqerr.New(tasqerr.CodeConfigInvalid, "snapshot_every must be positive, got %d", cfg.SnapshotEvery)
	}
	return cfg, nil
}

func isNotFound(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	// With SetConfigFile, viper reports a missing file as the OS error.
	return os.IsNotExist(err)
}

// Save atomically writes cfg to config.json.
func Save(l paths.Layout, cfg Config) error {
	if cfg.SnapshotEvery <= 0 {
		return tasqerr.New(tasqerr.CodeConfigInvalid, "snapshot_every must be positive, got %d", cfg.SnapshotEvery)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return tasqerr.Wrap(tasqerr.CodeConfigWriteFailed, err, "encode config")
	}
	if err := paths.AtomicWrite(l.Config, buf.Bytes()); err != nil {
		return tasqerr.Wrap(tasqerr.CodeConfigWriteFailed, err, "write %s", l.Config)
	}
	return nil
}

// EnsureDefault writes the default config if none exists (used by init).
func EnsureDefault(l paths.Layout) error {
	loaded, err := Load(l)
	if err != nil {
		return err
	}
	if loaded.SchemaVersion != 0 && loaded.SnapshotEvery != 0 {
		return nil
	}
	return Save(l, Default())
}

// SnapshotEveryOrDefault is a defensive accessor that never returns <= 0,
// guarding readers racing an init that hasn't finished yet (spec §4.1
// default: snapshot_every=200).
func (c Config) SnapshotEveryOrDefault() int {
	if c.SnapshotEvery <= 0 {
		return 200
	}
	return c.SnapshotEvery
}
