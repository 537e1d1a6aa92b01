package preview

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path"
	"time"

	"github.com/nfnt/resize"

	"github.com/RSE-UZH/Swissalti3D-convert/internal/raster"
	"github.com/RSE-UZH/Swissalti3D-convert/internal/utils"
)

var sizes = []uint{128, 256, 512, 1024}

// Run is the preview subcommand's entrypoint
func Run(flagSet *flag.FlagSet) {

	var timer time.Time
	start := time.Now()

	inPtr := flagSet.String("in", "", "Path to a DEM raster")
	outPtr := flagSet.String("out", "", "Path to output directory")

	flagSet.Parse(os.Args[2:])

	if *outPtr == "" || *inPtr == "" {
		flagSet.PrintDefaults()
		os.Exit(1)
	}

	if !utils.IsFile(*inPtr) {
		log.Fatal(errors.New("Input DEM doesn't exist"))
	}
	if err := utils.EnsureDir(*outPtr); err != nil {
		log.Fatal(err)
	}

	timer = time.Now()
	fmt.Println("▶️  Loading DEM")
	dem, err := raster.ReadGrid(*inPtr)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("✔️  Loaded DEM in", time.Since(timer).String())

	timer = time.Now()
	fmt.Println("▶️  Rendering preview image")
	previewImage := GrayImage(dem)
	saveImage(path.Join(*outPtr, "preview.png"), previewImage)
	fmt.Println("✔️  Rendered preview image in", time.Since(timer).String())

	previewHeight := previewImage.Bounds().Dy()
	previewWidth := previewImage.Bounds().Dx()

	for _, size := range sizes {
		timer = time.Now()
		fmt.Printf("▶️  Building x%d image\n", size)

		factor := float64(size) / float64(previewHeight)
		w := uint(float64(previewWidth) * factor)

		img := resize.Resize(w, size, previewImage, resize.MitchellNetravali)
		saveImage(path.Join(*outPtr, fmt.Sprintf("preview_%d.png", size)), img)

		fmt.Printf("✔️  Built x%d in %s\n", size, time.Since(timer).String())
	}

	fmt.Printf("\n    🎉  Finished in %s\n", time.Since(start).String())
}

func saveImage(path string, img image.Image) {
	out, err := os.Create(path)
	if err != nil {
		log.Fatal(err)
	}
	if err := png.Encode(out, img); err != nil {
		log.Fatal(err)
	}

	if err := out.Close(); err != nil {
		log.Fatal(err)
	}
}
