package mosaic

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/RSE-UZH/Swissalti3D-convert/internal/grid"
	"github.com/RSE-UZH/Swissalti3D-convert/internal/raster"
)

func TestChunkID(t *testing.T) {
	tests := []struct {
		path    string
		want    int
		wantErr bool
	}{
		{"swissalti3d_2019_2654-1137_2_2056_5728.tif", 2654, false},
		{"/data/tiles/swissalti3d_2019_2600-1200_0.5_2056_5728.tif", 2600, false},
		{"swissalti3d_2021_2601-1201.asc", 2601, false},
		{"mosaic.tif", 0, true},
		{"swissalti3d_2019_abc-1137.tif", 0, true},
	}
	for _, tc := range tests {
		got, err := ChunkID(tc.path)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ChunkID(%q) = %d, want error", tc.path, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ChunkID(%q): %v", tc.path, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ChunkID(%q) = %d, want %d", tc.path, got, tc.want)
		}
	}
}

func TestCreateChunksSequential(t *testing.T) {
	paths := []string{"a.tif", "b.tif", "c.tif", "d.tif", "e.tif"}
	chunks, err := CreateChunks(paths, ChunkSequential, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	wantSizes := []int{2, 2, 1}
	for i, chunk := range chunks {
		if chunk.ID != i {
			t.Errorf("chunk %d has ID %d", i, chunk.ID)
		}
		if len(chunk.Paths) != wantSizes[i] {
			t.Errorf("chunk %d has %d tiles, want %d", i, len(chunk.Paths), wantSizes[i])
		}
	}
	if chunks[2].Paths[0] != "e.tif" {
		t.Errorf("last chunk holds %v, want [e.tif]", chunks[2].Paths)
	}
}

func TestCreateChunksByFilename(t *testing.T) {
	paths := []string{
		"swissalti3d_2019_2654-1137_2_2056_5728.tif",
		"swissalti3d_2019_2600-1200_2_2056_5728.tif",
		"swissalti3d_2019_2654-1138_2_2056_5728.tif",
		"not_a_swissalti_tile.tif",
	}
	chunks, err := CreateChunks(paths, ChunkByFilename, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	// sorted by ID: catch-all -1 first, then 2600, then 2654
	if chunks[0].ID != -1 || len(chunks[0].Paths) != 1 {
		t.Errorf("catch-all chunk = %+v", chunks[0])
	}
	if chunks[1].ID != 2600 || len(chunks[1].Paths) != 1 {
		t.Errorf("chunk 2600 = %+v", chunks[1])
	}
	if chunks[2].ID != 2654 || len(chunks[2].Paths) != 2 {
		t.Errorf("chunk 2654 = %+v", chunks[2])
	}
}

func TestParseChunkStrategy(t *testing.T) {
	if s, err := ParseChunkStrategy(""); err != nil || s != ChunkByFilename {
		t.Errorf("ParseChunkStrategy(\"\") = %q, %v", s, err)
	}
	if s, err := ParseChunkStrategy("sequential"); err != nil || s != ChunkSequential {
		t.Errorf("ParseChunkStrategy(sequential) = %q, %v", s, err)
	}
	if _, err := ParseChunkStrategy("spiral"); err == nil {
		t.Error("ParseChunkStrategy(spiral) succeeded, want error")
	}
}

// TestMergeChunkedMatchesDirect merges a strip of tiles once directly and
// once through the chunked path and verifies both mosaics are identical.
func TestMergeChunkedMatchesDirect(t *testing.T) {
	dir := t.TempDir()

	// four 2x2 tiles in a west-east strip, named so the filename strategy
	// puts each in its own chunk
	var tiles []string
	for i := 0; i < 4; i++ {
		name := filepath.Join(dir, "swissalti3d_2019_"+string(rune('0'+i))+"100-1200_2_2056_5728.asc")
		originX := float64(i * 2)
		idx := i
		writeTile(t, name, grid.Ref{OriginX: originX, OriginY: 2, CellSize: 1}, 2, 2,
			func(col, row int) float32 { return float32(idx*10 + row*2 + col) })
		tiles = append(tiles, name)
	}

	direct, err := Merge(tiles, filepath.Join(dir, "direct", "mosaic.asc"), Options{})
	if err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "chunked")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	chunked, err := MergeChunked(tiles, filepath.Join(outDir, "mosaic.asc"), ChunkedOptions{
		MaxChunkTiles: 2,
		Strategy:      ChunkByFilename,
		KeepTemp:      true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if chunked.Width != direct.Width || chunked.Height != direct.Height || chunked.Ref != direct.Ref {
		t.Fatalf("chunked geometry %dx%d %+v differs from direct %dx%d %+v",
			chunked.Width, chunked.Height, chunked.Ref, direct.Width, direct.Height, direct.Ref)
	}
	for i := range direct.Data {
		if chunked.Data[i] != direct.Data[i] {
			t.Fatalf("chunked mosaic differs at cell %d: %g != %g", i, chunked.Data[i], direct.Data[i])
		}
	}

	// KeepTemp leaves the manifest and the intermediate chunk rasters behind
	manifestPath := filepath.Join(outDir, "tmp", "chunks.json")
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		t.Fatalf("reading chunk manifest: %v", err)
	}
	var manifest map[string][]string
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("parsing chunk manifest: %v", err)
	}
	if len(manifest) != 4 {
		t.Fatalf("manifest lists %d chunks, want 4", len(manifest))
	}
	for id, names := range manifest {
		if len(names) != 1 {
			t.Errorf("chunk %s lists %d tiles, want 1", id, len(names))
		}
	}
}

func TestMergeChunkedCleansUpTemp(t *testing.T) {
	dir := t.TempDir()

	var tiles []string
	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, "swissalti3d_2019_"+string(rune('1'+i))+"000-1200_2_2056_5728.asc")
		originX := float64(i * 2)
		writeTile(t, name, grid.Ref{OriginX: originX, OriginY: 2, CellSize: 1}, 2, 2,
			func(col, row int) float32 { return 1 })
		tiles = append(tiles, name)
	}

	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := MergeChunked(tiles, filepath.Join(outDir, "mosaic.asc"), ChunkedOptions{
		Options:       Options{Parallel: true, Jobs: 2},
		MaxChunkTiles: 1,
		Strategy:      ChunkSequential,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "tmp")); !os.IsNotExist(err) {
		t.Fatalf("tmp directory should be removed, stat: %v", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "mosaic.asc")); err != nil {
		t.Fatalf("mosaic file missing: %v", err)
	}
}

// TestMergeChunkedFailureWaitsForWorkers lets one chunk fail in a parallel
// chunked merge and verifies MergeChunked only returns once every other
// chunk worker has finished its intermediate raster.
func TestMergeChunkedFailureWaitsForWorkers(t *testing.T) {
	dir := t.TempDir()

	var tiles []string
	for i := 0; i < 4; i++ {
		name := filepath.Join(dir, "swissalti3d_2019_"+string(rune('1'+i))+"000-1200_2_2056_5728.asc")
		originX := float64(i * 2)
		writeTile(t, name, grid.Ref{OriginX: originX, OriginY: 2, CellSize: 1}, 2, 2,
			func(col, row int) float32 { return float32(i) })
		tiles = append(tiles, name)
	}
	// second chunk references a tile that does not exist
	missing := filepath.Join(dir, "swissalti3d_2019_5000-1200_2_2056_5728.asc")
	tiles = append(tiles, missing)

	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	_, err := MergeChunked(tiles, filepath.Join(outDir, "mosaic.asc"), ChunkedOptions{
		Options:       Options{Parallel: true, Jobs: 2},
		MaxChunkTiles: 1,
		Strategy:      ChunkByFilename,
		KeepTemp:      true,
	})
	var readErr *TileReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("MergeChunked = %v, want TileReadError", err)
	}

	// the healthy chunks were all written before the call returned; a worker
	// left running would make these rasters appear only later
	for i := 1; i <= 4; i++ {
		chunkFile := filepath.Join(outDir, "tmp", "merged_chunk_"+strconv.Itoa(i*1000)+".asc")
		if _, err := raster.ReadGrid(chunkFile); err != nil {
			t.Errorf("chunk raster %s incomplete after return: %v", chunkFile, err)
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "mosaic.asc")); !os.IsNotExist(err) {
		t.Fatalf("no mosaic should be written on failure, stat: %v", err)
	}
}

func TestMergeChunkedSmallInputSkipsChunking(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.asc")
	writeTile(t, a, grid.Ref{OriginX: 0, OriginY: 2, CellSize: 1}, 2, 2,
		func(col, row int) float32 { return 5 })

	out := filepath.Join(dir, "mosaic.asc")
	if _, err := MergeChunked([]string{a}, out, ChunkedOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "tmp")); !os.IsNotExist(err) {
		t.Fatalf("no tmp directory expected for small inputs, stat: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("mosaic file missing: %v", err)
	}
}
