package config

import (
	"os"
	"strings"
)

// Load parses path with the CUE parser when it looks like a .cue file or
// directory, falling back to the YAML decoder otherwise, per §6's "module
// or structured document" configuration-file contract.
func Load(path string) (*Document, error) {
	if strings.HasSuffix(path, ".cue") || isDir(path) {
		return NewCUEParser().Parse(path)
	}
	return NewYAMLParser().Parse(path)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
