// Package setup initializes a vault directory tree.
package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/msageha/vaultd/internal/model"
	"github.com/msageha/vaultd/internal/vault"
)

// ConfigName is the config file written at the vault root.
const ConfigName = "vault.yaml"

// Run creates the vault skeleton at root: every state folder with a
// placeholder, a seed Dashboard.md, and a default config. Refuses to
// run when a config already exists there.
func Run(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve vault root: %w", err)
	}

	cfgPath := filepath.Join(absRoot, ConfigName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}

	store := vault.New(absRoot)
	if err := store.Ensure(); err != nil {
		return err
	}

	for _, state := range vault.States() {
		placeholder := filepath.Join(store.Dir(state), vault.Placeholder)
		if err := os.WriteFile(placeholder, nil, 0o644); err != nil {
			return fmt.Errorf("create placeholder in %s: %w", state, err)
		}
	}

	cfg := model.Default()
	cfg.Vault.Path = absRoot
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := vault.WriteFileAtomic(cfgPath, data); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	dashboard := fmt.Sprintf(`---
last_updated: %s
auto_refresh: true
---

# Vault Dashboard

_The daemon has not run yet. Start it with:_ `+"`vaultd daemon --vault %s`"+`
`, time.Now().UTC().Format(time.RFC3339), absRoot)
	if err := vault.WriteFileAtomic(filepath.Join(absRoot, "Dashboard.md"), []byte(dashboard)); err != nil {
		return fmt.Errorf("write dashboard seed: %w", err)
	}

	return nil
}
