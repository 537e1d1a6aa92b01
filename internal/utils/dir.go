package utils

import (
	"os"
)

// IsFile tests whether given path exists and is a file
func IsFile(filePath string) bool {
	info, err := os.Stat(filePath)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// IsDirectory tests whether given path exists and is a directory
func IsDirectory(dirPath string) bool {
	info, err := os.Stat(dirPath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// EnsureDir creates the directory at dirPath including parents if it does
// not exist yet
func EnsureDir(dirPath string) error {
	if IsDirectory(dirPath) {
		return nil
	}
	return os.MkdirAll(dirPath, os.ModePerm)
}
