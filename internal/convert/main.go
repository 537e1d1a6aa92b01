package convert

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

// Run is the convert subcommand's entrypoint
func Run(flagSet *flag.FlagSet) {

	var timer time.Time
	start := time.Now()

	inPtr := flagSet.String("in", "", "Path to the input DEM (LN02 heights)")
	outPtr := flagSet.String("out", "", "Path of the converted output raster")
	geoidPtr := flagSet.String("geoid", "", "Path to the CHGeo2004 geoid grid for the LN02 to ellipsoid conversion")
	targetGeoidPtr := flagSet.String("target-geoid", "", "Optional path to a second geoid grid (e.g. EGM2008) converting ellipsoidal heights to that datum")
	epsgPtr := flagSet.Int("t_epsg", 0, "Optional EPSG code to reproject the result to")
	resamplingPtr := flagSet.String("resampling", "bilinear", "Resampling policy: nearest or bilinear")
	resPtr := flagSet.Float64("res", 0, "Optional output resolution in CRS units (0 keeps the DEM resolution)")

	flagSet.Parse(os.Args[2:])

	if *inPtr == "" || *outPtr == "" || *geoidPtr == "" {
		flagSet.PrintDefaults()
		os.Exit(1)
	}
	if !utils.IsFile(*inPtr) {
		log.Fatal(errors.New("Input DEM doesn't exist"))
	}
	if !utils.IsFile(*geoidPtr) {
		log.Fatal(fmt.Errorf("Geoid file not found at %s", *geoidPtr))
	}
	if *targetGeoidPtr != "" && !utils.IsFile(*targetGeoidPtr) {
		log.Fatal(fmt.Errorf("Geoid file not found at %s", *targetGeoidPtr))
	}

	resampling, err := raster.ParseResampling(*resamplingPtr, raster.ResamplingBilinear)
	if err != nil {
		log.Fatal(err)
	}
	opts := vdatum.Options{Resampling: resampling, TargetResolution: *resPtr}

	timer = time.Now()
	fmt.Println("▶️  Converting LN02 heights to ellipsoidal heights")
	dem, err := vdatum.TransformLN02ToEllipsoid(*inPtr, *geoidPtr, *epsgPtr, opts)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("✔️  Converted to ellipsoidal heights in", time.Since(timer).String())

	if *targetGeoidPtr != "" {
		timer = time.Now()
		fmt.Println("▶️  Converting ellipsoidal heights to target geoid datum")
		dem, err = vdatum.ConvertVerticalDatum(dem, *targetGeoidPtr, opts)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("✔️  Converted vertical datum in", time.Since(timer).String())
	}

	timer = time.Now()
	fmt.Println("▶️  Saving converted DEM")
	if err := raster.Write(*outPtr, dem, "BIGTIFF=YES"); err != nil {
		log.Fatal(err)
	}
	fmt.Println("✔️  Saved converted DEM to", *outPtr, "in", time.Since(timer).String())

	fmt.Printf("\n    🎉  Finished in %s\n", time.Since(start).String())
}
