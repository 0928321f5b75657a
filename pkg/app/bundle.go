// Package app installs an application bundle on a simulator and runs it with
// its console attached.
package app

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/simrun/pkg/core"
	"github.com/devicelab-dev/simrun/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Bundle is an extracted .app directory. Close removes it.
type Bundle struct {
	Path string

	dir string
}

// Close removes the temporary directory holding the bundle.
func (b *Bundle) Close() error {
	if b == nil || b.dir == "" {
		return nil
	}
	return os.RemoveAll(b.dir)
}

// DefaultName derives the app name from a build output path, e.g.
// "bazel-bin/Foo.ipa" -> "Foo".
func DefaultName(appPath string) string {
	base := filepath.Base(filepath.Clean(appPath))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Extract prepares appPath for installation in a fresh temporary directory.
// A directory is copied to <tmp>/<appName>.app with every directory made
// writable so simctl can stage it. Anything else is treated as an .ipa
// archive and the bundle is expected at <tmp>/Payload/<appName>.app.
func Extract(appPath, appName string, log logrus.FieldLogger) (*Bundle, error) {
	log = logger.OrDiscard(log)

	info, err := os.Stat(appPath)
	if err != nil {
		return nil, core.ErrInvalidBundle.WithMessage("app not found: " + appPath).WithCause(err)
	}

	dir, err := os.MkdirTemp("", "simrun")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	b := &Bundle{dir: dir}

	if info.IsDir() {
		log.Debugf("Found app directory: %s", appPath)
		b.Path = filepath.Join(dir, appName+".app")
		err = copyDir(appPath, b.Path)
	} else {
		log.Debugf("Unzipping IPA from %s to %s", appPath, dir)
		b.Path = filepath.Join(dir, "Payload", appName+".app")
		err = unzip(appPath, dir)
		if err == nil {
			if _, serr := os.Stat(b.Path); serr != nil {
				err = core.ErrInvalidBundle.
					WithMessage(fmt.Sprintf("%s has no Payload/%s.app", appPath, appName)).
					WithCause(serr)
			}
		}
	}
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return b, nil
}

// copyDir copies src to dst. Symlinks are recreated rather than followed.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, 0o777); err != nil {
				return err
			}
			// MkdirAll is subject to the umask.
			return os.Chmod(target, 0o777)
		case d.Type()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		default:
			info, err := d.Info()
			if err != nil {
				return err
			}
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src) //#nosec G304 -- user-provided app bundle
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func unzip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return core.ErrInvalidBundle.WithMessage(src + " is neither an app directory nor an ipa archive").WithCause(err)
	}
	defer r.Close()

	for _, f := range r.File {
		// Prevent zip slip
		target := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(dest)+string(os.PathSeparator)) {
			return core.ErrInvalidBundle.WithMessage(fmt.Sprintf("invalid file path in %s: %s", src, f.Name))
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		if err := extractFile(f, target); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm()|0o200)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
