package aptconfig

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/mirrorctl/aptsetup/internal/system"
)

// Cleaner prepares a package in target for reconfiguration.
type Cleaner func(ctx context.Context, target string) error

// DefaultCleaners maps package names to the cleaner run before they are
// reconfigured.  Packages without an entry need no preparation.
var DefaultCleaners = map[string]Cleaner{
	"cloud-init": cleanCloudInit,
}

// cleanCloudInit removes datasource settings left by a previous
// dpkg-reconfigure so that the preseeded answers take effect.
func cleanCloudInit(_ context.Context, target string) error {
	pattern := filepath.Join(targetPath(target, "/etc/cloud/cloud.cfg.d"), "*dpkg*")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "glob")
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove %s", f)
		}
		slog.Debug("removed cloud-init setting", "file", f)
	}
	return nil
}

// SelectionPackages returns the sorted package names that debconf
// selections refer to.
func SelectionPackages(selections string) []string {
	seen := make(map[string]bool)
	for _, line := range strings.Split(selections, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		pkg := line
		if i := strings.IndexFunc(line, func(r rune) bool {
			return r == ':' || r == ' ' || r == '\t'
		}); i >= 0 {
			pkg = line[:i]
		}
		if pkg != "" {
			seen[pkg] = true
		}
	}

	pkgs := make([]string, 0, len(seen))
	for pkg := range seen {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}

// Debconf preseeds debconf answers in a target.
type Debconf struct {
	Runner   system.Runner
	Target   string
	Cleaners map[string]Cleaner

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

func (d *Debconf) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// JoinSelections concatenates selection sets in name order.
func JoinSelections(sets map[string]string) string {
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)

	blocks := make([]string, 0, len(names))
	for _, name := range names {
		blocks = append(blocks, sets[name])
	}
	text := strings.Join(blocks, "\n")
	if text != "" && !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text
}

// Apply submits the selection sets and reconfigures the installed
// packages they refer to.
func (d *Debconf) Apply(ctx context.Context, sets map[string]string) error {
	if len(sets) == 0 {
		d.logger().Debug("no debconf selections")
		return nil
	}

	selections := JoinSelections(sets)
	d.logger().Info("setting debconf selections", "target", d.Target, "sets", len(sets))
	_, err := d.Runner.Run(ctx, system.Command{
		Args:   []string{"debconf-set-selections"},
		Stdin:  selections,
		Target: d.Target,
	})
	if err != nil {
		return errors.Wrap(err, "debconf-set-selections")
	}

	installed, err := system.InstalledPackages(ctx, d.Runner, d.Target)
	if err != nil {
		return err
	}
	wanted := make(map[string]bool)
	for _, pkg := range SelectionPackages(selections) {
		wanted[pkg] = true
	}
	var pkgs []string
	for _, pkg := range installed {
		if wanted[pkg] {
			pkgs = append(pkgs, pkg)
		}
	}

	if len(pkgs) == 0 {
		d.logger().Debug("no installed package needs reconfiguration")
		return nil
	}
	return d.Reconfigure(ctx, pkgs)
}

// Reconfigure runs the cleaners of pkgs and reconfigures them.
func (d *Debconf) Reconfigure(ctx context.Context, pkgs []string) error {
	cleaners := d.Cleaners
	if cleaners == nil {
		cleaners = DefaultCleaners
	}
	var unclean []string
	for _, pkg := range pkgs {
		clean, ok := cleaners[pkg]
		if !ok {
			unclean = append(unclean, pkg)
			continue
		}
		if err := clean(ctx, d.Target); err != nil {
			return errors.Wrapf(err, "clean %s", pkg)
		}
	}

	if len(unclean) > 0 {
		d.logger().Warn("reconfiguring packages without a cleaner; earlier answers may persist", "packages", unclean)
	}

	d.logger().Info("reconfiguring packages", "packages", pkgs)
	args := append([]string{"dpkg-reconfigure", "--frontend=noninteractive"}, pkgs...)
	_, err := d.Runner.Run(ctx, system.Command{Args: args, Target: d.Target})
	return errors.Wrap(err, "dpkg-reconfigure")
}
