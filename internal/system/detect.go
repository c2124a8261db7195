package system

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// Architecture returns the dpkg architecture of target.
func Architecture(ctx context.Context, r Runner, target string) (string, error) {
	out, err := r.Run(ctx, Command{
		Args:   []string{"dpkg", "--print-architecture"},
		Target: target,
	})
	if err != nil {
		return "", errors.Wrap(err, "detect architecture")
	}
	arch := strings.TrimSpace(out.Stdout)
	if arch == "" {
		return "", errors.New("dpkg printed no architecture")
	}
	return arch, nil
}

// parseOSRelease parses the KEY=value lines of an os-release file.
func parseOSRelease(data string) map[string]string {
	vars := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		vars[strings.TrimSpace(key)] = value
	}
	return vars
}

// Release returns the release codename recorded in target's os-release.
func Release(target string) (string, error) {
	if target == "" {
		target = "/"
	}
	var data []byte
	var err error
	for _, p := range []string{"etc/os-release", "usr/lib/os-release"} {
		data, err = os.ReadFile(filepath.Join(target, p)) // #nosec G304 - path inside target root
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", errors.Wrap(err, "read os-release")
	}

	vars := parseOSRelease(string(data))
	for _, key := range []string{"VERSION_CODENAME", "UBUNTU_CODENAME"} {
		if codename := vars[key]; codename != "" {
			return codename, nil
		}
	}
	return "", errors.WithHint(
		errors.Newf("no release codename in %s/etc/os-release", strings.TrimSuffix(target, "/")),
		"set release in the configuration")
}

// parseDpkgList extracts installed package names from dpkg-query --list.
// Multi-arch qualifiers are dropped.
func parseDpkgList(out string) []string {
	seen := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "ii", "hi":
		default:
			continue
		}
		name, _, _ := strings.Cut(fields[1], ":")
		seen[name] = true
	}

	pkgs := make([]string, 0, len(seen))
	for name := range seen {
		pkgs = append(pkgs, name)
	}
	sort.Strings(pkgs)
	return pkgs
}

// InstalledPackages returns the sorted names of packages installed in target.
func InstalledPackages(ctx context.Context, r Runner, target string) ([]string, error) {
	out, err := r.Run(ctx, Command{
		Args:   []string{"dpkg-query", "--list"},
		Target: target,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list installed packages")
	}
	return parseDpkgList(out.Stdout), nil
}
