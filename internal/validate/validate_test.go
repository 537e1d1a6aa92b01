package validate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTileDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.tif", "a.tif", "c.asc", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	tiles, err := TileDirectory(dir, ".tif")
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 2 {
		t.Fatalf("got %d tiles, want 2", len(tiles))
	}
	// sorted paths
	if filepath.Base(tiles[0]) != "a.tif" || filepath.Base(tiles[1]) != "b.tif" {
		t.Errorf("tiles = %v, want [a.tif b.tif]", tiles)
	}

	if _, err := TileDirectory(filepath.Join(dir, "missing"), ".tif"); err == nil {
		t.Error("missing directory accepted")
	}
	if _, err := TileDirectory(filepath.Join(dir, "a.tif"), ".tif"); err == nil {
		t.Error("file accepted as tile directory")
	}
}

func TestTilePaths(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.tif")
	if err := os.WriteFile(a, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := TilePaths([]string{a}); err != nil {
		t.Errorf("existing tile rejected: %v", err)
	}
	if err := TilePaths([]string{a, filepath.Join(dir, "missing.tif")}); err == nil {
		t.Error("missing tile accepted")
	}
}
