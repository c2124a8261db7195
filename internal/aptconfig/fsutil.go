package aptconfig

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// validateDirectoryPath rejects relative paths that climb with "..".
func validateDirectoryPath(path string) error {
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) && strings.Contains(cleanPath, "..") {
		return errors.New("unsafe directory path (contains directory traversal): " + path)
	}
	return nil
}

// DirSync calls fsync(2) on the directory to save changes in the directory.
//
// This should be called after os.Create, os.Rename and so on.
func DirSync(d string) error {
	if err := validateDirectoryPath(d); err != nil {
		return errors.Wrap(err, "DirSync")
	}

	f, err := os.OpenFile(d, os.O_RDONLY, 0755) // #nosec G304,G302 - path validated, 0755 needed for directory access
	if err != nil {
		return err
	}
	err = f.Sync()
	if err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// targetPath returns p inside the target root.
func targetPath(target, p string) string {
	if target == "" {
		target = "/"
	}
	return filepath.Join(target, p)
}

// writeFile replaces name with data.  The content is written to a
// temporary file in the same directory first and renamed over name.
func writeFile(name string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "mkdir")
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(name)+".*")
	if err != nil {
		return errors.Wrap(err, "create temporary file")
	}
	tmp := f.Name()
	defer func() {
		if tmp != "" {
			_ = os.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "write %s", name)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "sync %s", name)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", name)
	}
	// CreateTemp uses 0600
	if err := os.Chmod(tmp, perm); err != nil {
		return errors.Wrapf(err, "chmod %s", name)
	}
	if err := os.Rename(tmp, name); err != nil {
		return errors.Wrapf(err, "rename to %s", name)
	}
	tmp = ""

	return DirSync(dir)
}

// appendFile appends data to name, creating it with perm if needed.
func appendFile(name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return errors.Wrap(err, "mkdir")
	}
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_APPEND|os.O_CREATE, perm) // #nosec G304 - path inside target root
	if err != nil {
		return errors.Wrapf(err, "open %s", name)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "append to %s", name)
	}
	return f.Close()
}

// removeFile removes name if it exists.
func removeFile(name string) error {
	err := os.Remove(name)
	if err == nil {
		slog.Debug("removed file", "file", name)
		return nil
	}
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrapf(err, "remove %s", name)
}
