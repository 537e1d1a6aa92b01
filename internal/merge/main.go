package merge

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/RSE-UZH/Swissalti3D-convert/internal/mosaic"
	"github.com/RSE-UZH/Swissalti3D-convert/internal/raster"
	"github.com/RSE-UZH/Swissalti3D-convert/internal/validate"
)

// Run is the merge subcommand's entrypoint
func Run(flagSet *flag.FlagSet) {

	start := time.Now()

	inPtr := flagSet.String("in", "", "Path to directory containing DEM tiles (alternatively pass tile files as trailing arguments)")
	extPtr := flagSet.String("ext", ".tif", "Tile file extension used with -in")
	outPtr := flagSet.String("out", "", "Path of the merged output raster")
	parallelPtr := flagSet.Bool("parallel", false, "Read and merge tiles concurrently")
	jobsPtr := flagSet.Int("jobs", runtime.NumCPU(), "Number of concurrent workers")
	maxChunkPtr := flagSet.Int("max-chunk-tiles", mosaic.DefaultMaxChunkTiles, "Maximum number of tiles merged in a single pass before chunking kicks in")
	chunksPtr := flagSet.String("chunks", string(mosaic.ChunkByFilename), "Chunking strategy: filename or sequential")
	keepTempPtr := flagSet.Bool("keep-temp", true, "Keep intermediate chunk rasters and chunks.json")
	resamplingPtr := flagSet.String("resampling", "nearest", "Resampling policy: nearest or bilinear")

	flagSet.Parse(os.Args[2:])

	if *outPtr == "" || (*inPtr == "" && flagSet.NArg() == 0) {
		flagSet.PrintDefaults()
		os.Exit(1)
	}

	var tiles []string
	var err error
	if *inPtr != "" {
		tiles, err = validate.TileDirectory(*inPtr, *extPtr)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		tiles = flagSet.Args()
		if err := validate.TilePaths(tiles); err != nil {
			log.Fatal(err)
		}
	}
	sortTiles(tiles)
	fmt.Printf("✔️  Found %d tiles to merge\n", len(tiles))

	resampling, err := raster.ParseResampling(*resamplingPtr, raster.ResamplingNearest)
	if err != nil {
		log.Fatal(err)
	}
	strategy, err := mosaic.ParseChunkStrategy(*chunksPtr)
	if err != nil {
		log.Fatal(err)
	}

	opts := mosaic.ChunkedOptions{
		Options: mosaic.Options{
			Parallel:   *parallelPtr,
			Jobs:       *jobsPtr,
			Resampling: resampling,
		},
		MaxChunkTiles: *maxChunkPtr,
		Strategy:      strategy,
		KeepTemp:      *keepTempPtr,
	}

	timer := time.Now()
	fmt.Println("▶️  Merging tiles")
	merged, err := mosaic.MergeChunked(tiles, *outPtr, opts)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("✔️  Merged tiles in", time.Since(timer).String())

	extent := merged.Extent()
	fmt.Printf("ℹ️  Mosaic: %d x %d cells at %g m, extent %g %g %g %g\n",
		merged.Width, merged.Height, merged.Ref.CellSize,
		extent.Min.X(), extent.Min.Y(), extent.Max.X(), extent.Max.Y())

	fmt.Printf("\n    🎉  Finished in %s\n", time.Since(start).String())
}

// sortTiles orders tiles by their SwissALTI3D chunk field so chunked and
// unchunked merges place tiles in the same deterministic order; names
// without a chunk field sort by path.
func sortTiles(tiles []string) {
	sort.SliceStable(tiles, func(i, j int) bool {
		a, errA := mosaic.ChunkID(tiles[i])
		b, errB := mosaic.ChunkID(tiles[j])
		if errA != nil || errB != nil || a == b {
			return tiles[i] < tiles[j]
		}
		return a < b
	})
}
