package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/airbusgeo/godal"

	"github.com/RSE-UZH/Swissalti3D-convert/internal/convert"
	"github.com/RSE-UZH/Swissalti3D-convert/internal/diff"
	"github.com/RSE-UZH/Swissalti3D-convert/internal/merge"
	"github.com/RSE-UZH/Swissalti3D-convert/internal/preview"
)

type command struct {
	name        string
	description string
	run         func(*flag.FlagSet)
}

var subCommands []command

func init() {
	subCommands = []command{
		{"merge", "Merge SwissALTI3D DEM tiles into a single mosaic raster.", merge.Run},
		{"convert", "Convert a DEM from LN02 heights to ellipsoidal or geoid-based heights.", convert.Run},
		{"diff", "Compute the difference between a DEM and a reference DEM.", diff.Run},
		{"preview", "Build resolutions for a DEM preview image.", preview.Run},
		{"help", "Print this message.", func(s *flag.FlagSet) { printUsage() }},
	}
}

func printUsage() {
	fmt.Printf("USAGE:\n    %s [SUBCOMMAND] [SUBCOMMAND FLAGS]\n\n", os.Args[0])
	fmt.Print("SUBCOMMANDS: \n")

	for i := 0; i < len(subCommands); i++ {
		name := subCommands[i].name

		fmt.Printf("%12s    %s\n", name, subCommands[i].description)
	}

	fmt.Printf("\nUse -h as SUBCOMMAND FLAG to print help for each subcommand.\n\n")
}

func main() {

	if len(os.Args) < 2 {
		fmt.Printf("\nERROR: No subcommand was provided.\n\n")
		printUsage()
		os.Exit(1)
	}

	godal.RegisterAll()

	cmd := os.Args[1]

	for i := 0; i < len(subCommands); i++ {
		if subCommands[i].name == cmd {
			set := flag.NewFlagSet(cmd, flag.ExitOnError)
			subCommands[i].run(set)
			return
		}
	}

	fmt.Printf("\nERROR: Subcommand '%s' was not found.\n\n", cmd)
	printUsage()
}
