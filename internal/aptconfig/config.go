package aptconfig

import (
	"io"
	"log/slog"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/mirrorctl/aptsetup/internal/apt"
	"github.com/mirrorctl/aptsetup/internal/mirror"
)

// ErrConfig marks errors caused by the configuration.
var ErrConfig = errors.New("invalid configuration")

// DefaultRepoMatch detects shorthand sources such as ppa:owner/name.
const DefaultRepoMatch = `^[\w-]+:\w`

const defaultDistro = "ubuntu"

func configError(err error) error {
	return errors.Mark(err, ErrConfig)
}

// LogConfig represents slog configuration options
type LogConfig struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

// NewHandler returns a slog handler writing to w.
func (logConfig *LogConfig) NewHandler(w io.Writer) (slog.Handler, error) {
	var level slog.Level
	switch strings.ToLower(logConfig.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, errors.Newf("invalid log level: %s", logConfig.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(logConfig.Format) {
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	case "plain", "", "text":
		return slog.NewTextHandler(w, opts), nil
	}
	return nil, errors.Newf("invalid log format: %s", logConfig.Format)
}

// Apply configures the global slog logger based on the configuration
func (logConfig *LogConfig) Apply() error {
	handler, err := logConfig.NewHandler(os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// SourceSpec describes one entry of the sources table.
type SourceSpec struct {
	Source    string `toml:"source" yaml:"source"`
	Filename  string `toml:"filename" yaml:"filename"`
	Key       string `toml:"key" yaml:"key"`
	KeyID     string `toml:"keyid" yaml:"keyid"`
	Keyserver string `toml:"keyserver" yaml:"keyserver"`
}

// Check validates the source.
func (s *SourceSpec) Check() error {
	if s.Source == "" && s.Key == "" && s.KeyID == "" {
		return errors.New("one of source, key or keyid is required")
	}
	if strings.Contains(s.Source, "\n") {
		return errors.New("source must be a single line")
	}
	for _, elem := range strings.Split(s.Filename, "/") {
		if elem == ".." {
			return errors.Newf("filename %q leaves the target", s.Filename)
		}
	}
	return nil
}

// Preference is one pin of the preferences list.
type Preference struct {
	Package  string `toml:"package" yaml:"package"`
	Pin      string `toml:"pin" yaml:"pin"`
	Priority int    `toml:"pin-priority" yaml:"pin-priority"`
}

// Config is a struct to read TOML or YAML configurations.
//
//	config, err := aptconfig.Load("/path/to/aptsetup.toml")
//	if err != nil {
//	    ...
//	}
type Config struct {
	Target       string `toml:"target" yaml:"target"`
	Architecture string `toml:"architecture" yaml:"architecture"`
	Release      string `toml:"release" yaml:"release"`
	Distro       string `toml:"distro" yaml:"distro"`

	PreserveSourcesList bool     `toml:"preserve_sources_list" yaml:"preserve_sources_list"`
	SourcesList         string   `toml:"sources_list" yaml:"sources_list"`
	DisableSuites       []string `toml:"disable_suites" yaml:"disable_suites"`
	DisableComponents   []string `toml:"disable_components" yaml:"disable_components"`

	Primary  []mirror.Spec `toml:"primary" yaml:"primary"`
	Security []mirror.Spec `toml:"security" yaml:"security"`

	Sources         map[string]*SourceSpec `toml:"sources" yaml:"sources"`
	AddAptRepoMatch string                 `toml:"add_apt_repo_match" yaml:"add_apt_repo_match"`

	Proxy      string `toml:"proxy" yaml:"proxy"`
	HTTPProxy  string `toml:"http_proxy" yaml:"http_proxy"`
	FTPProxy   string `toml:"ftp_proxy" yaml:"ftp_proxy"`
	HTTPSProxy string `toml:"https_proxy" yaml:"https_proxy"`
	Conf       string `toml:"conf" yaml:"conf"`

	Preferences       []Preference      `toml:"preferences" yaml:"preferences"`
	DebconfSelections map[string]string `toml:"debconf_selections" yaml:"debconf_selections"`

	Log LogConfig `toml:"log" yaml:"log"`

	// sourceOrder is the order of the sources table in the file.
	sourceOrder []string
	undecoded   []string
}

// NewConfig creates Config with default values.
func NewConfig() *Config {
	return &Config{
		Target:          "/",
		Distro:          defaultDistro,
		AddAptRepoMatch: DefaultRepoMatch,
	}
}

// Undecoded returns configuration keys that matched no field.
func (c *Config) Undecoded() []string {
	return c.undecoded
}

// Check validates the configuration.  Errors are marked with ErrConfig.
func (c *Config) Check() error {
	if c.Target == "" {
		return configError(errors.New("target is not set"))
	}
	if !path.IsAbs(c.Target) {
		return configError(errors.Newf("target must be an absolute path: %s", c.Target))
	}
	if _, ok := DefaultTemplate(c.Distro); !ok && c.SourcesList == "" && !c.PreserveSourcesList {
		return configError(errors.WithHint(
			errors.Newf("no default sources_list for distro %q", c.Distro),
			"set sources_list or use distro ubuntu or debian"))
	}

	for i, spec := range c.Primary {
		if err := spec.Check(); err != nil {
			return configError(errors.Wrapf(err, "primary[%d]", i))
		}
	}
	for i, spec := range c.Security {
		if err := spec.Check(); err != nil {
			return configError(errors.Wrapf(err, "security[%d]", i))
		}
	}

	if _, err := regexp.Compile(c.repoMatch()); err != nil {
		return configError(errors.Wrap(err, "add_apt_repo_match"))
	}
	for name, src := range c.Sources {
		if src == nil {
			return configError(errors.Newf("sources.%s is empty", name))
		}
		if err := src.Check(); err != nil {
			return configError(errors.Wrapf(err, "sources.%s", name))
		}
	}

	for i, p := range c.Preferences {
		pref := apt.Preference{Package: p.Package, Pin: p.Pin, Priority: p.Priority}
		if err := pref.Check(); err != nil {
			return configError(errors.Wrapf(err, "preferences[%d]", i))
		}
	}
	return nil
}

func (c *Config) repoMatch() string {
	if c.AddAptRepoMatch == "" {
		return DefaultRepoMatch
	}
	return c.AddAptRepoMatch
}

// NamedSource is a SourceSpec with its key in the sources table.
type NamedSource struct {
	Name string
	*SourceSpec
}

// SourceSpecs returns the sources in file order.  Sources that were
// added programmatically follow in name order.
func (c *Config) SourceSpecs() []NamedSource {
	specs := make([]NamedSource, 0, len(c.Sources))
	seen := make(map[string]bool, len(c.Sources))
	for _, name := range c.sourceOrder {
		if src, ok := c.Sources[name]; ok && !seen[name] {
			seen[name] = true
			specs = append(specs, NamedSource{Name: name, SourceSpec: src})
		}
	}

	var rest []string
	for name := range c.Sources {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		specs = append(specs, NamedSource{Name: name, SourceSpec: c.Sources[name]})
	}
	return specs
}

// AptProxy returns the proxy settings.
func (c *Config) AptProxy() apt.Proxy {
	return apt.Proxy{
		Proxy: c.Proxy,
		HTTP:  c.HTTPProxy,
		FTP:   c.FTPProxy,
		HTTPS: c.HTTPSProxy,
	}
}

// AptPreferences returns the preferences as pin blocks.
func (c *Config) AptPreferences() []apt.Preference {
	prefs := make([]apt.Preference, 0, len(c.Preferences))
	for _, p := range c.Preferences {
		prefs = append(prefs, apt.Preference{Package: p.Package, Pin: p.Pin, Priority: p.Priority})
	}
	return prefs
}

// Environment variables that override configuration values.
const (
	EnvTarget       = "APTSETUP_TARGET"
	EnvArchitecture = "APTSETUP_ARCHITECTURE"
	EnvRelease      = "APTSETUP_RELEASE"
	EnvLogLevel     = "APTSETUP_LOG_LEVEL"
)

// ApplyEnvironment overrides values with non-empty environment variables.
func (c *Config) ApplyEnvironment(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	overrides := []struct {
		name string
		dst  *string
	}{
		{EnvTarget, &c.Target},
		{EnvArchitecture, &c.Architecture},
		{EnvRelease, &c.Release},
		{EnvLogLevel, &c.Log.Level},
	}
	for _, o := range overrides {
		if v := getenv(o.name); v != "" {
			slog.Debug("configuration overridden by environment", "variable", o.name)
			*o.dst = v
		}
	}
}
