package aptconfig

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/cockroachdb/errors"

	"github.com/mirrorctl/aptsetup/internal/keys"
	"github.com/mirrorctl/aptsetup/internal/mirror"
	"github.com/mirrorctl/aptsetup/internal/system"
)

// Applier runs the configuration pipeline against a target.
type Applier struct {
	Runner system.Runner
	Prober mirror.Prober
	Keys   KeyFetcher

	// NewScope creates the scope sources are added in.
	NewScope func(target string) system.Scope

	// Cleaners overrides DefaultCleaners when set.
	Cleaners map[string]Cleaner
}

// NewApplier creates an Applier that runs real commands and lookups.
func NewApplier() *Applier {
	runner := system.NewExecRunner()
	return &Applier{
		Runner: runner,
		Prober: mirror.NewDNSProbe(nil),
		Keys:   keys.NewFetcher(),
		NewScope: func(target string) system.Scope {
			return system.NewChrootScope(target, runner)
		},
	}
}

// Detect returns the architecture and release of the target, taking
// configured values first.
func (a *Applier) Detect(ctx context.Context, config *Config) (arch, release string, err error) {
	arch = config.Architecture
	if arch == "" {
		arch, err = system.Architecture(ctx, a.Runner, config.Target)
		if err != nil {
			return "", "", err
		}
	}
	release = config.Release
	if release == "" {
		release, err = system.Release(config.Target)
		if err != nil {
			return "", "", err
		}
	}
	return arch, release, nil
}

// ResolveMirrors resolves the mirrors of config for arch.
func (a *Applier) ResolveMirrors(ctx context.Context, config *Config, arch string) (mirror.Result, error) {
	result, err := mirror.NewResolver(a.Prober).Resolve(ctx, config.Primary, config.Security, arch)
	if errors.Is(err, mirror.ErrUnresolvable) {
		return mirror.Result{}, configError(err)
	}
	return result, err
}

// Apply runs the whole pipeline: sources.list, cached lists, extra
// sources and keys, proxy, apt.conf, preferences and debconf.
func (a *Applier) Apply(ctx context.Context, config *Config) error {
	if err := config.Check(); err != nil {
		return err
	}
	target := config.Target

	arch, release, err := a.Detect(ctx, config)
	if err != nil {
		return errors.Wrap(err, "detect target")
	}
	slog.Info("configuring apt", "target", target, "arch", arch, "release", release)

	mirrors, err := a.ResolveMirrors(ctx, config, arch)
	if err != nil {
		return err
	}

	if !config.PreserveSourcesList {
		if err := GenerateSourcesList(config, release, mirrors, target); err != nil {
			return err
		}
		if err := RenameLists(mirrors, target, arch); err != nil {
			return err
		}
	}

	match, err := regexp.Compile(config.repoMatch())
	if err != nil {
		return configError(errors.Wrap(err, "add_apt_repo_match"))
	}
	var scope system.Scope = system.NopScope{}
	if a.NewScope != nil {
		scope = a.NewScope(target)
	}
	installer := &Installer{
		Runner:    a.Runner,
		Keys:      a.Keys,
		Scope:     scope,
		Target:    target,
		Params:    mirrors.Params(release),
		RepoMatch: match,
	}
	if err := installer.AddSources(ctx, config.SourceSpecs()); err != nil {
		return errors.Wrap(err, "add sources")
	}

	if err := WriteProxy(config, target); err != nil {
		return err
	}
	if err := WriteAptConf(config, target); err != nil {
		return err
	}
	if err := WritePreferences(config, target); err != nil {
		return err
	}

	debconf := &Debconf{Runner: a.Runner, Target: target, Cleaners: a.Cleaners}
	if err := debconf.Apply(ctx, config.DebconfSelections); err != nil {
		return errors.Wrap(err, "debconf")
	}

	slog.Info("apt configured", "target", target)
	return nil
}
