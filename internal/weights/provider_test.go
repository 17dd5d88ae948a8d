package weights

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vkorchagin/agent-selector/internal/core/domain"
)

func writeWeightsFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "weights.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write weights file: %v", err)
	}
	return path
}

func TestLoadSwapsSnapshot(t *testing.T) {
	path := writeWeightsFile(t, t.TempDir(), "version: v1\nfulltext: 0.5\nvector: 0.5\ngraph: 0\n")
	provider := NewProvider(path, domain.DefaultWeightConfig())

	if err := provider.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	snap := provider.Snapshot()
	if snap.Version != "v1" {
		t.Fatalf("expected version v1, got %q", snap.Version)
	}
	if snap.FullText != 0.5 || snap.Vector != 0.5 || snap.Graph != 0 {
		t.Fatalf("unexpected weights: %+v", snap)
	}
}

func TestLoadKeepsPreviousSnapshotOnInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := writeWeightsFile(t, dir, "version: v1\nfulltext: 0.5\nvector: 0.5\ngraph: 0\n")
	provider := NewProvider(path, domain.DefaultWeightConfig())
	if err := provider.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	writeWeightsFile(t, dir, "version: v2\nfulltext: -1\nvector: 0.5\ngraph: 0\n")
	if err := provider.Load(); err == nil {
		t.Fatalf("expected validation error for negative weight")
	}

	if snap := provider.Snapshot(); snap.Version != "v1" {
		t.Fatalf("expected previous snapshot to survive failed reload, got %q", snap.Version)
	}
}

func TestLoadDerivesVersionFromContent(t *testing.T) {
	dir := t.TempDir()
	path := writeWeightsFile(t, dir, "fulltext: 0.2\nvector: 0.6\ngraph: 0.2\n")
	provider := NewProvider(path, domain.DefaultWeightConfig())
	if err := provider.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	first := provider.Snapshot().Version
	if first == "" || first == "fallback" {
		t.Fatalf("expected derived version, got %q", first)
	}

	writeWeightsFile(t, dir, "fulltext: 0.3\nvector: 0.5\ngraph: 0.2\n")
	if err := provider.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if provider.Snapshot().Version == first {
		t.Fatalf("expected version to change with content")
	}
}

func TestEmptyPathServesFallbackForever(t *testing.T) {
	provider := NewProvider("", domain.WeightConfig{Version: "static", FullText: 1})
	if err := provider.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap := provider.Snapshot(); snap.Version != "static" || snap.FullText != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
