package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/afero"

	"github.com/morezero/portal-node/pkg/peer"
)

const logPrefix = "bootstrap:loader"

// defaultPaths are tried after any explicit paths.
var defaultPaths = []string{"config/bootstrap.json", "bootstrap.json"}

// LoadBootstrapConfig loads the first readable and well-formed bootstrap file
// from paths, then the default locations. Unreadable or malformed files are
// skipped. With no file found it returns an empty config.
func LoadBootstrapConfig(fsys afero.Fs, paths ...string) *BootstrapConfig {
	all := make([]string, 0, len(paths)+len(defaultPaths))
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	all = append(all, defaultPaths...)

	for _, p := range all {
		data, err := afero.ReadFile(fsys, p)
		if err != nil {
			continue
		}

		var cfg BootstrapConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse bootstrap file %s: %v", logPrefix, p, err))
			continue
		}

		slog.Info(fmt.Sprintf("%s - Loaded bootstrap config from %s", logPrefix, p))
		return &cfg
	}

	slog.Info(fmt.Sprintf("%s - No bootstrap file found, starting without bootnodes", logPrefix))
	return &BootstrapConfig{Bootnodes: map[string][]string{}}
}

// CreateResolvedBootstrap verifies every bootnode record. Subnetworks not in
// known are rejected; records that fail to verify are logged and skipped.
func CreateResolvedBootstrap(cfg *BootstrapConfig, known ...string) (*ResolvedBootstrap, error) {
	allowed := make(map[string]bool, len(known))
	for _, name := range known {
		allowed[name] = true
	}

	names := make([]string, 0, len(cfg.Bootnodes))
	for name := range cfg.Bootnodes {
		names = append(names, name)
	}
	sort.Strings(names)

	resolved := make(map[string][]*peer.Record, len(names))
	for _, name := range names {
		if !allowed[name] {
			return nil, fmt.Errorf("%s - unknown subnetwork %q", logPrefix, name)
		}
		for i, text := range cfg.Bootnodes[name] {
			rec, err := peer.Parse(text)
			if err != nil {
				slog.Warn(fmt.Sprintf("%s - skipping %s bootnode %d: %v", logPrefix, name, i, err))
				continue
			}
			resolved[name] = append(resolved[name], rec)
		}
	}

	return &ResolvedBootstrap{name: cfg.Name, version: cfg.Version, bootnodes: resolved}, nil
}

// Seed stores every bootnode in store and returns how many were inserted or
// replaced.
func Seed(ctx context.Context, store PeerWriter, rb *ResolvedBootstrap) (int, error) {
	total := 0
	for _, name := range rb.Subnetworks() {
		n, err := store.Put(ctx, name, rb.Get(name))
		if err != nil {
			return total, fmt.Errorf("%s - failed to seed %s bootnodes: %w", logPrefix, name, err)
		}
		total += n
	}
	if total > 0 {
		slog.Info(fmt.Sprintf("%s - Seeded %d bootnodes", logPrefix, total))
	}
	return total, nil
}
