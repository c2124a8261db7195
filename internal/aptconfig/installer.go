package aptconfig

import (
	"context"
	"log/slog"
	"path"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/mirrorctl/aptsetup/internal/apt"
	"github.com/mirrorctl/aptsetup/internal/keys"
	"github.com/mirrorctl/aptsetup/internal/system"
)

// SourcesListDir holds additional repository lists.
const SourcesListDir = "/etc/apt/sources.list.d"

// KeyFetcher downloads armored public keys by id.
type KeyFetcher interface {
	Fetch(ctx context.Context, id, server string) (string, error)
}

// Installer adds keys and repositories from the sources table.
type Installer struct {
	Runner    system.Runner
	Keys      KeyFetcher
	Scope     system.Scope
	Target    string
	Params    apt.Params
	RepoMatch *regexp.Regexp
}

// SourceFile returns the path, relative to the target root, of the list
// a source is written to.  Relative names live in sources.list.d and
// ".list" is appended when missing.
func SourceFile(name string) string {
	if !strings.HasPrefix(name, "/") {
		name = path.Join(SourcesListDir, name)
	}
	if !strings.HasSuffix(name, ".list") {
		name += ".list"
	}
	return name
}

// AddSources processes sources in order inside the installer's scope.
func (in *Installer) AddSources(ctx context.Context, sources []NamedSource) error {
	if len(sources) == 0 {
		return nil
	}
	scope := in.Scope
	if scope == nil {
		scope = system.NopScope{}
	}
	return system.WithScope(ctx, scope, func() error {
		for _, src := range sources {
			if err := in.addSource(ctx, src); err != nil {
				return errors.Wrapf(err, "source %s", src.Name)
			}
		}
		return nil
	})
}

func (in *Installer) addSource(ctx context.Context, src NamedSource) error {
	if err := in.addKey(ctx, src.SourceSpec); err != nil {
		return err
	}
	if src.Source == "" {
		return nil
	}

	line := apt.Expand(src.Source, in.Params)
	match := in.RepoMatch
	if match == nil {
		match = regexp.MustCompile(DefaultRepoMatch)
	}
	if match.MatchString(line) {
		slog.Info("registering repository", "source", line)
		_, err := in.Runner.Run(ctx, system.Command{
			Args:    []string{"add-apt-repository", line},
			Target:  in.Target,
			Retries: system.NetworkRetries,
		})
		return errors.Wrap(err, "add-apt-repository")
	}

	filename := src.Filename
	if filename == "" {
		filename = src.Name
	}
	file := targetPath(in.Target, SourceFile(filename))
	if err := appendFile(file, []byte(line+"\n"), 0644); err != nil {
		return err
	}
	slog.Info("added repository", "file", file, "source", line)
	return nil
}

func (in *Installer) addKey(ctx context.Context, spec *SourceSpec) error {
	key := spec.Key
	if key == "" && spec.KeyID != "" {
		server := spec.Keyserver
		if server == "" {
			server = keys.DefaultKeyserver
		}
		slog.Info("fetching key", "keyid", spec.KeyID, "keyserver", server)
		fetched, err := in.Keys.Fetch(ctx, spec.KeyID, server)
		if err != nil {
			return errors.Wrap(err, "fetch key")
		}
		key = fetched
	} else if key != "" {
		if info, err := keys.Inspect(key); err != nil {
			slog.Warn("cannot inspect key", "error", err)
		} else {
			slog.Debug("importing key", "fingerprint", info.Fingerprint)
		}
	}
	if key == "" {
		return nil
	}

	_, err := in.Runner.Run(ctx, system.Command{
		Args:   []string{"apt-key", "add", "-"},
		Stdin:  key,
		Target: in.Target,
	})
	return errors.Wrap(err, "import key")
}
