package validate

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RSE-UZH/Swissalti3D-convert/internal/utils"
)

// TileDirectory validates that given directory exists and contains raster
// tiles with the given extension, and returns their paths sorted by name.
func TileDirectory(tileDirPath, ext string) ([]string, error) {
	if !utils.IsDirectory(tileDirPath) {
		return nil, fmt.Errorf("%s does not exist or is no directory", tileDirPath)
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	matches, err := filepath.Glob(filepath.Join(tileDirPath, "*"+ext))
	if err != nil {
		return nil, err
	}
	var tiles []string
	for _, match := range matches {
		if utils.IsFile(match) {
			tiles = append(tiles, match)
		}
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no %s tiles found in %s", ext, tileDirPath)
	}

	sort.Strings(tiles)
	return tiles, nil
}

// TilePaths validates that every given tile path exists and is a file.
func TilePaths(paths []string) error {
	for _, path := range paths {
		if !utils.IsFile(path) {
			return fmt.Errorf("%s does not exist or is no file", path)
		}
	}
	return nil
}
