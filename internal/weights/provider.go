// Package weights holds the hot-reloadable fusion weight configuration as
// an atomically swapped immutable snapshot.
package weights

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/vkorchagin/agent-selector/internal/core/domain"
)

// Provider serves weight snapshots. Readers call Snapshot once per fusion
// call; a reload swaps the pointer atomically, so a call in flight keeps
// the snapshot it started with.
type Provider struct {
	path    string
	current atomic.Pointer[domain.WeightConfig]
}

// NewProvider seeds the provider with a fallback configuration. When path
// is empty, the fallback is permanent and Watch is a no-op.
func NewProvider(path string, fallback domain.WeightConfig) *Provider {
	p := &Provider{path: path}
	cfg := fallback
	if cfg.Version == "" {
		cfg.Version = "fallback"
	}
	p.current.Store(&cfg)
	return p
}

func (p *Provider) Snapshot() domain.WeightConfig {
	return *p.current.Load()
}

// Load reads and validates the weights file, then swaps the snapshot.
// The previous snapshot stays active on any failure.
func (p *Provider) Load() error {
	if p.path == "" {
		return nil
	}

	raw, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read weights file: %w", err)
	}

	var cfg domain.WeightConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("parse weights file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Version == "" {
		sum := sha256.Sum256(raw)
		cfg.Version = hex.EncodeToString(sum[:8])
	}

	p.current.Store(&cfg)
	slog.Info("weights_loaded",
		"version", cfg.Version,
		"fulltext", cfg.FullText,
		"vector", cfg.Vector,
		"graph", cfg.Graph,
	)
	return nil
}

// Watch reloads the snapshot whenever the weights file changes. It blocks
// until the context is cancelled. Editors often replace files by rename,
// so the parent directory is watched and events filtered by name.
func (p *Provider) Watch(ctx context.Context) error {
	if p.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create weights watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		return fmt.Errorf("watch weights dir: %w", err)
	}

	target := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := p.Load(); err != nil {
				slog.Error("weights_reload_failed", "path", p.path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("weights_watcher_error", "error", err)
		}
	}
}
