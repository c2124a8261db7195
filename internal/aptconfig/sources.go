package aptconfig

import (
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/mirrorctl/aptsetup/internal/apt"
	"github.com/mirrorctl/aptsetup/internal/mirror"
)

// SourcesListFile is the main repository list of a system.
const SourcesListFile = "/etc/apt/sources.list"

const ubuntuTemplate = `## Written by aptsetup.  Changes are lost when it runs again;
## add repositories under /etc/apt/sources.list.d instead.
deb $MIRROR $RELEASE main restricted
deb $MIRROR $RELEASE-updates main restricted

deb $MIRROR $RELEASE universe
deb $MIRROR $RELEASE-updates universe

deb $MIRROR $RELEASE multiverse
deb $MIRROR $RELEASE-updates multiverse

deb $MIRROR $RELEASE-backports main restricted universe multiverse

deb $SECURITY $RELEASE-security main restricted
deb $SECURITY $RELEASE-security universe
deb $SECURITY $RELEASE-security multiverse
`

const debianTemplate = `## Written by aptsetup.  Changes are lost when it runs again;
## add repositories under /etc/apt/sources.list.d instead.
deb $MIRROR $RELEASE main
deb $MIRROR $RELEASE-updates main
deb $SECURITY $RELEASE-security main
`

// defaultTemplates are the sources_list templates used when the
// configuration has none.
var defaultTemplates = map[string]string{
	"ubuntu": ubuntuTemplate,
	"debian": debianTemplate,
}

// DefaultTemplate returns the built-in sources_list template of distro.
func DefaultTemplate(distro string) (string, bool) {
	t, ok := defaultTemplates[strings.ToLower(distro)]
	return t, ok
}

// RenderSourcesList returns the sources.list content for config.
//
// The mirrors are substituted into the whole template; the release only
// into deb and deb-src lines without options.  Then the configured
// suites and components are disabled.
func RenderSourcesList(config *Config, release string, mirrors mirror.Result) (string, error) {
	tmpl := config.SourcesList
	if tmpl == "" {
		var ok bool
		tmpl, ok = DefaultTemplate(config.Distro)
		if !ok {
			return "", configError(errors.Newf("no default sources_list for distro %q", config.Distro))
		}
	}

	params := mirrors.Params(release)
	delete(params, "RELEASE")
	entries := apt.ParseEntries(apt.Expand(tmpl, params))
	entries = apt.ExpandReleaseEntries(entries, release)
	entries = apt.DisableSuites(config.DisableSuites, entries, release)
	entries = apt.DisableComponents(config.DisableComponents, entries)

	for _, e := range entries {
		if e.Kind == apt.KindInvalid {
			slog.Debug("keeping unparsable sources.list line", "line", e.Raw)
		}
	}
	return apt.EntriesString(entries), nil
}

// GenerateSourcesList writes the rendered sources.list into target.
// Nothing is written if preserve_sources_list is set.
func GenerateSourcesList(config *Config, release string, mirrors mirror.Result, target string) error {
	if config.PreserveSourcesList {
		slog.Info("preserving existing sources.list", "target", target)
		return nil
	}

	content, err := RenderSourcesList(config, release, mirrors)
	if err != nil {
		return err
	}

	file := targetPath(target, SourcesListFile)
	if err := writeFile(file, []byte(content), 0644); err != nil {
		return errors.Wrap(err, "write sources.list")
	}
	slog.Info("wrote sources.list", "file", file, "release", release, "mirror", mirrors.Mirror)
	return nil
}
