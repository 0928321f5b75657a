package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/devicelab-dev/simrun/pkg/core"
	"howett.net/plist"
)

type infoPlist struct {
	BundleIdentifier string `plist:"CFBundleIdentifier"`
}

// BundleID reads CFBundleIdentifier from a bundle's Info.plist. Both XML and
// binary plists are accepted.
func BundleID(bundlePath string) (string, error) {
	path := filepath.Join(bundlePath, "Info.plist")
	f, err := os.Open(path) //#nosec G304 -- path inside the extracted bundle
	if err != nil {
		return "", core.ErrInvalidBundle.WithMessage("missing Info.plist in " + bundlePath).WithCause(err)
	}
	defer f.Close()

	var info infoPlist
	if err := plist.NewDecoder(f).Decode(&info); err != nil {
		return "", core.ErrInvalidBundle.WithMessage(fmt.Sprintf("failed to parse %s", path)).WithCause(err)
	}
	if info.BundleIdentifier == "" {
		return "", core.ErrInvalidBundle.WithMessage(path + " has no CFBundleIdentifier")
	}
	return info.BundleIdentifier, nil
}
