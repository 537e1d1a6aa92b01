package diff

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/RSE-UZH/Swissalti3D-convert/internal/raster"
	"github.com/RSE-UZH/Swissalti3D-convert/internal/utils"
	"github.com/RSE-UZH/Swissalti3D-convert/internal/vdatum"
)

// Run is the diff subcommand's entrypoint
func Run(flagSet *flag.FlagSet) {

	start := time.Now()

	inPtr := flagSet.String("in", "", "Path to the main DEM")
	refPtr := flagSet.String("ref", "", "Path to the reference DEM")
	outPtr := flagSet.String("out", "", "Path of the difference output raster")
	resamplingPtr := flagSet.String("resampling", "bilinear", "Resampling policy: nearest or bilinear")

	flagSet.Parse(os.Args[2:])

	if *inPtr == "" || *refPtr == "" || *outPtr == "" {
		flagSet.PrintDefaults()
		os.Exit(1)
	}
	if !utils.IsFile(*inPtr) {
		log.Fatal(errors.New("Input DEM doesn't exist"))
	}
	if !utils.IsFile(*refPtr) {
		log.Fatal(errors.New("Reference DEM doesn't exist"))
	}

	resampling, err := raster.ParseResampling(*resamplingPtr, raster.ResamplingBilinear)
	if err != nil {
		log.Fatal(err)
	}

	timer := time.Now()
	fmt.Println("▶️  Computing difference between DEMs")
	diff, err := vdatum.ComputeDifference(*inPtr, *refPtr, *outPtr, vdatum.Options{Resampling: resampling})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("✔️  Computed difference in", time.Since(timer).String())

	valid, min, max := diffStats(diff)
	fmt.Printf("ℹ️  Difference: %d valid cells, range %g to %g\n", valid, min, max)

	fmt.Printf("\n    🎉  Finished in %s\n", time.Since(start).String())
}

func diffStats(g *raster.Grid) (valid int, min, max float64) {
	nodata := float32(g.NoData)
	for _, v := range g.Data {
		if v == nodata {
			continue
		}
		f := float64(v)
		if valid == 0 || f < min {
			min = f
		}
		if valid == 0 || f > max {
			max = f
		}
		valid++
	}
	return valid, min, max
}
