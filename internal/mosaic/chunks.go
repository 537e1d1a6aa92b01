package mosaic

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/RSE-UZH/Swissalti3D-convert/internal/raster"
)

// ChunkStrategy selects how a large tile set is split into chunks that are
// merged independently before the final mosaic pass.
type ChunkStrategy string

const (
	// ChunkSequential splits the input list into runs of at most maxTiles.
	ChunkSequential ChunkStrategy = "sequential"
	// ChunkByFilename groups tiles by the easting field of SwissALTI3D file
	// names, so each chunk covers one north-south column of tiles.
	ChunkByFilename ChunkStrategy = "filename"
)

// ParseChunkStrategy validates a chunk strategy name from the command line.
func ParseChunkStrategy(s string) (ChunkStrategy, error) {
	switch ChunkStrategy(s) {
	case ChunkSequential, ChunkByFilename:
		return ChunkStrategy(s), nil
	case "":
		return ChunkByFilename, nil
	}
	return "", fmt.Errorf("unknown chunk strategy %q (want sequential or filename)", s)
}

// Chunk is one group of tiles merged into an intermediate raster.
type Chunk struct {
	ID    int
	Paths []string
}

// ChunkID extracts the grouping key from a SwissALTI3D tile name such as
// "swissalti3d_2019_2654-1137_2_2056_5728": the easting part of the third
// underscore-separated field.
func ChunkID(path string) (int, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	parts := strings.Split(stem, "_")
	if len(parts) < 3 {
		return 0, fmt.Errorf("file name %q has no chunk field", filepath.Base(path))
	}
	id, err := strconv.Atoi(strings.SplitN(parts[2], "-", 2)[0])
	if err != nil {
		return 0, fmt.Errorf("file name %q has no numeric chunk field: %w", filepath.Base(path), err)
	}
	return id, nil
}

// CreateChunks splits tilePaths into chunks of at most maxTiles (sequential
// strategy) or grouped by SwissALTI3D easting (filename strategy). Tiles
// whose names cannot be parsed under the filename strategy are collected in
// a single catch-all chunk with ID -1. Chunks come back sorted by ID.
func CreateChunks(tilePaths []string, strategy ChunkStrategy, maxTiles int) ([]Chunk, error) {
	if maxTiles <= 0 {
		maxTiles = DefaultMaxChunkTiles
	}

	switch strategy {
	case ChunkSequential:
		var chunks []Chunk
		for start := 0; start < len(tilePaths); start += maxTiles {
			end := start + maxTiles
			if end > len(tilePaths) {
				end = len(tilePaths)
			}
			chunks = append(chunks, Chunk{ID: len(chunks), Paths: tilePaths[start:end]})
		}
		return chunks, nil

	case ChunkByFilename:
		groups := map[int][]string{}
		for _, path := range tilePaths {
			id, err := ChunkID(path)
			if err != nil {
				id = -1
			}
			groups[id] = append(groups[id], path)
		}
		ids := make([]int, 0, len(groups))
		for id := range groups {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		chunks := make([]Chunk, 0, len(groups))
		for _, id := range ids {
			chunks = append(chunks, Chunk{ID: id, Paths: groups[id]})
		}
		return chunks, nil
	}

	return nil, fmt.Errorf("unknown chunk strategy %q", strategy)
}

// DefaultMaxChunkTiles is the tile count above which a merge is chunked.
const DefaultMaxChunkTiles = 100

// ChunkedOptions configures MergeChunked on top of the plain merge Options.
type ChunkedOptions struct {
	Options
	// MaxChunkTiles is the largest tile count merged in one pass.
	MaxChunkTiles int
	Strategy      ChunkStrategy
	// KeepTemp leaves the intermediate chunk rasters and the chunks.json
	// manifest in place after the merge.
	KeepTemp bool
}

// MergeChunked merges tilePaths into outputPath, splitting the work into
// intermediate chunk mosaics when the tile count exceeds MaxChunkTiles.
// Intermediate rasters and a chunks.json manifest are written to a tmp
// directory next to the output file.
func MergeChunked(tilePaths []string, outputPath string, opts ChunkedOptions) (*raster.Grid, error) {
	if len(tilePaths) == 0 {
		return nil, ErrNoTiles
	}
	if opts.MaxChunkTiles <= 0 {
		opts.MaxChunkTiles = DefaultMaxChunkTiles
	}
	strategy, err := ParseChunkStrategy(string(opts.Strategy))
	if err != nil {
		return nil, err
	}
	opts.Strategy = strategy

	if len(tilePaths) <= opts.MaxChunkTiles {
		return Merge(tilePaths, outputPath, opts.Options)
	}

	tmpDir := filepath.Join(filepath.Dir(outputPath), "tmp")
	if err := os.MkdirAll(tmpDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("creating chunk directory %s: %w", tmpDir, err)
	}

	chunks, err := CreateChunks(tilePaths, opts.Strategy, opts.MaxChunkTiles)
	if err != nil {
		return nil, err
	}
	if err := writeChunkManifest(filepath.Join(tmpDir, "chunks.json"), chunks); err != nil {
		return nil, err
	}

	ext := filepath.Ext(outputPath)
	chunkFiles := make([]string, len(chunks))
	for i, chunk := range chunks {
		chunkFiles[i] = filepath.Join(tmpDir, fmt.Sprintf("merged_chunk_%d%s", chunk.ID, ext))
	}

	// Chunk merges run concurrently; each chunk itself merges sequentially
	// to avoid nesting worker pools.
	chunkOpts := opts.Options
	chunkOpts.Parallel = false
	if opts.Parallel {
		jobs := opts.Jobs
		if jobs <= 0 {
			jobs = runtime.NumCPU()
		}
		sem := semaphore.NewWeighted(int64(jobs))
		errs := make(chan error, len(chunks))
		for i, chunk := range chunks {
			if err := sem.Acquire(context.Background(), 1); err != nil {
				errs <- err
				continue
			}
			go func(chunk Chunk, out string) {
				defer sem.Release(1)
				_, err := Merge(chunk.Paths, out, chunkOpts)
				errs <- err
			}(chunk, chunkFiles[i])
		}
		// wait for every chunk before returning, so no goroutine is still
		// writing into tmpDir after a failed merge
		var firstErr error
		for range chunks {
			if err := <-errs; err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if firstErr != nil {
			return nil, firstErr
		}
	} else {
		for i, chunk := range chunks {
			if _, err := Merge(chunk.Paths, chunkFiles[i], chunkOpts); err != nil {
				return nil, err
			}
		}
	}

	merged, err := Merge(chunkFiles, outputPath, opts.Options)
	if err != nil {
		return nil, err
	}

	if !opts.KeepTemp {
		for _, f := range chunkFiles {
			os.Remove(f)
		}
		os.Remove(filepath.Join(tmpDir, "chunks.json"))
		os.Remove(tmpDir)
	}
	return merged, nil
}

// writeChunkManifest records which tile files went into which chunk, mirroring
// the chunk IDs used for the intermediate raster names.
func writeChunkManifest(path string, chunks []Chunk) error {
	manifest := make(map[string][]string, len(chunks))
	for _, chunk := range chunks {
		names := make([]string, len(chunk.Paths))
		for i, p := range chunk.Paths {
			names[i] = filepath.Base(p)
		}
		manifest[strconv.Itoa(chunk.ID)] = names
	}
	data, err := json.MarshalIndent(manifest, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
