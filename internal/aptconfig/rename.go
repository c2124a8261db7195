package aptconfig

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/mirrorctl/aptsetup/internal/apt"
	"github.com/mirrorctl/aptsetup/internal/mirror"
)

// RenameLists renames cached index files of the default mirrors of arch
// so that they belong to the resolved mirrors.  Files of other mirrors
// are left alone.  Failing renames are logged and skipped.
func RenameLists(mirrors mirror.Result, target, arch string) error {
	dir := targetPath(target, apt.ListsDir)
	defaults := mirror.Defaults(arch)

	roles := []struct {
		role     mirror.Role
		from, to string
	}{
		{mirror.Primary, defaults.Primary, mirrors.Primary},
		{mirror.Security, defaults.Security, mirrors.Security},
	}

	for _, r := range roles {
		oldPrefix := apt.ListPrefix(r.from) + "_"
		newPrefix := apt.ListPrefix(r.to) + "_"
		if oldPrefix == newPrefix {
			continue
		}

		// listed per role: the primary renames change the directory
		files, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			slog.Debug("no apt lists to rename", "dir", dir)
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "read apt lists")
		}

		renamed := 0
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || !strings.HasPrefix(name, oldPrefix) {
				continue
			}
			from := filepath.Join(dir, name)
			to := filepath.Join(dir, newPrefix+strings.TrimPrefix(name, oldPrefix))
			if err := os.Rename(from, to); err != nil {
				slog.Warn("failed to rename apt list", "from", from, "to", to, "error", err)
				continue
			}
			renamed++
		}
		if renamed > 0 {
			slog.Info("renamed apt lists", "role", r.role, "mirror", r.to, "count", renamed)
			if err := DirSync(dir); err != nil {
				slog.Warn("failed to sync apt lists directory", "dir", dir, "error", err)
			}
		}
	}
	return nil
}
