package config

import (
	"os"
	"path/filepath"
	"sync"
)

const envHome = "SIMRUN_HOME"

// FileNames are the config file names looked up in a directory, in order.
var FileNames = []string{"simrun.yaml", "simrun.yml"}

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the simrun home directory.
//
// Resolution order:
//  1. $SIMRUN_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// DefaultFile returns the config file in the home directory, or "" if there
// is none.
func DefaultFile() string {
	return FindFile(GetHome())
}

// FindFile returns the first of FileNames present in dir, or "".
func FindFile(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func resolveHome() string {
	// 1. Environment variable
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	// 2. Binary-relative: if binary is at <home>/bin/simrun, use <home>
	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	// 3. Current working directory
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
