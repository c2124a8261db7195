package aptconfig

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/mirrorctl/aptsetup/internal/mirror"
)

const tomlConfig = `
target = "/target"
release = "noble"
disable_suites = ["backports", "$RELEASE-proposed"]
proxy = "http://squid.internal:3128"

[[primary]]
arches = ["amd64", "i386"]
uri = "http://mirror.example.com/ubuntu/"

[[primary]]
arches = ["default"]
search = ["http://ports.example.com/ubuntu-ports", "http://ports.ubuntu.com/ubuntu-ports"]

[sources.zeta]
source = "deb $MIRROR $RELEASE universe"

[sources.alpha]
source = "ppa:owner/name"

[sources.middle]
keyid = "03683F77"
keyserver = "hkp://keyserver.ubuntu.com"

[[preferences]]
package = "nginx"
pin = "release a=noble-backports"
pin-priority = 500

[debconf_selections]
set1 = "cloud-init cloud-init/datasources multiselect MAAS"

[log]
level = "debug"
format = "json"
`

func TestDecodeTOML(t *testing.T) {
	t.Parallel()

	config, err := DecodeTOML([]byte(tomlConfig))
	if err != nil {
		t.Fatal(err)
	}
	if err := config.Check(); err != nil {
		t.Fatal(err)
	}

	if config.Target != "/target" || config.Release != "noble" || config.Distro != "ubuntu" {
		t.Errorf("unexpected config: %+v", config)
	}
	if config.AddAptRepoMatch != DefaultRepoMatch {
		t.Errorf("AddAptRepoMatch = %q", config.AddAptRepoMatch)
	}
	wantPrimary := []mirror.Spec{
		{Arches: []string{"amd64", "i386"}, URI: "http://mirror.example.com/ubuntu/"},
		{Arches: []string{"default"}, Search: []string{"http://ports.example.com/ubuntu-ports", "http://ports.ubuntu.com/ubuntu-ports"}},
	}
	if !reflect.DeepEqual(config.Primary, wantPrimary) {
		t.Errorf("Primary = %+v", config.Primary)
	}
	if len(config.Preferences) != 1 || config.Preferences[0].Priority != 500 {
		t.Errorf("Preferences = %+v", config.Preferences)
	}
	if config.Log.Level != "debug" || config.Log.Format != "json" {
		t.Errorf("Log = %+v", config.Log)
	}

	var names []string
	for _, s := range config.SourceSpecs() {
		names = append(names, s.Name)
	}
	if want := []string{"zeta", "alpha", "middle"}; !reflect.DeepEqual(names, want) {
		t.Errorf("source order = %v, want %v", names, want)
	}
	if len(config.Undecoded()) != 0 {
		t.Errorf("Undecoded() = %v", config.Undecoded())
	}
}

func TestDecodeTOMLUndecoded(t *testing.T) {
	t.Parallel()

	config, err := DecodeTOML([]byte("release = \"noble\"\nrelase = \"typo\"\n[source.foo]\nsource = \"deb http://a/ b c\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	got := strings.Join(config.Undecoded(), " ")
	if !strings.Contains(got, "relase") || !strings.Contains(got, "source.foo") {
		t.Errorf("Undecoded() = %v", config.Undecoded())
	}
}

func TestDecodeTOMLSyntaxError(t *testing.T) {
	t.Parallel()

	_, err := DecodeTOML([]byte("release = \n"))
	if !errors.Is(err, ErrConfig) {
		t.Errorf("error %v is not marked ErrConfig", err)
	}
}

const yamlConfig = `
apt:
  preserve_sources_list: false
  primary:
    - arches: [default]
      uri: http://us.archive.ubuntu.com/ubuntu/
  security:
    - arches: [default]
      uri: http://security.ubuntu.com/ubuntu/
  sources_list: |
    deb $MIRROR $RELEASE main restricted
    deb $SECURITY $RELEASE-security main restricted
  sources:
    proposed.list:
      source: deb $MIRROR $RELEASE-proposed main
    curtin-ppa:
      source: ppa:curtin-dev/test-archive
  preferences:
    - package: python3-*
      pin: origin *ubuntu.com*
      pin-priority: 200
  debconf_selections:
    set1: |
      cloud-init cloud-init/datasources multiselect MAAS
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()

	config, err := DecodeYAML([]byte(yamlConfig))
	if err != nil {
		t.Fatal(err)
	}
	if err := config.Check(); err != nil {
		t.Fatal(err)
	}

	if config.Target != "/" {
		t.Errorf("Target = %q, want default", config.Target)
	}
	if len(config.Security) != 1 || config.Security[0].URI != "http://security.ubuntu.com/ubuntu/" {
		t.Errorf("Security = %+v", config.Security)
	}
	if !strings.HasPrefix(config.SourcesList, "deb $MIRROR $RELEASE main restricted\n") {
		t.Errorf("SourcesList = %q", config.SourcesList)
	}
	if config.Preferences[0].Priority != 200 {
		t.Errorf("Preferences = %+v", config.Preferences)
	}

	var names []string
	for _, s := range config.SourceSpecs() {
		names = append(names, s.Name)
	}
	if want := []string{"proposed.list", "curtin-ppa"}; !reflect.DeepEqual(names, want) {
		t.Errorf("source order = %v, want %v", names, want)
	}
}

func TestDecodeYAMLUnknownField(t *testing.T) {
	t.Parallel()

	_, err := DecodeYAML([]byte("primary:\n  - arches: [default]\n    url: http://m/\n"))
	if err == nil {
		t.Fatal("expected an error for an unknown field")
	}
	if !errors.Is(err, ErrConfig) {
		t.Errorf("error %v is not marked ErrConfig", err)
	}
}

func TestDecodeYAMLEmpty(t *testing.T) {
	t.Parallel()

	config, err := DecodeYAML(nil)
	if err != nil {
		t.Fatal(err)
	}
	if config.Target != "/" || config.Distro != "ubuntu" {
		t.Errorf("defaults not kept: %+v", config)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tomlPath := filepath.Join(dir, "aptsetup.toml")
	yamlPath := filepath.Join(dir, "aptsetup.yml")
	if err := os.WriteFile(tomlPath, []byte(tomlConfig), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(yamlPath, []byte(yamlConfig), 0644); err != nil {
		t.Fatal(err)
	}

	c1, err := Load(tomlPath)
	if err != nil {
		t.Fatal(err)
	}
	if c1.Release != "noble" {
		t.Errorf("TOML release = %q", c1.Release)
	}
	c2, err := Load(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(c2.Sources) != 2 {
		t.Errorf("YAML sources = %v", c2.Sources)
	}

	if _, err := Load(filepath.Join(dir, "missing.toml")); !os.IsNotExist(errors.Cause(err)) {
		t.Errorf("Load(missing) error = %v", err)
	}
}

func TestConfigCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"relative target", func(c *Config) { c.Target = "target" }, false},
		{"empty target", func(c *Config) { c.Target = "" }, false},
		{"unknown distro", func(c *Config) { c.Distro = "fedora" }, false},
		{"unknown distro with template", func(c *Config) {
			c.Distro = "fedora"
			c.SourcesList = "deb $MIRROR $RELEASE main"
		}, true},
		{"mirror without arches", func(c *Config) {
			c.Primary = []mirror.Spec{{URI: "http://m/"}}
		}, false},
		{"security without uri or search", func(c *Config) {
			c.Security = []mirror.Spec{{Arches: []string{"default"}}}
		}, false},
		{"bad repo match", func(c *Config) { c.AddAptRepoMatch = "([" }, false},
		{"empty source", func(c *Config) {
			c.Sources = map[string]*SourceSpec{"x": {Filename: "x.list"}}
		}, false},
		{"key only source", func(c *Config) {
			c.Sources = map[string]*SourceSpec{"x": {KeyID: "03683F77"}}
		}, true},
		{"source escaping target", func(c *Config) {
			c.Sources = map[string]*SourceSpec{"x": {Source: "deb http://a/ b c", Filename: "../../etc/passwd"}}
		}, false},
		{"bad version pin", func(c *Config) {
			c.Preferences = []Preference{{Package: "nginx", Pin: "version abc", Priority: 1}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewConfig()
			tt.modify(config)
			err := config.Check()
			if tt.ok && err != nil {
				t.Errorf("Check() error = %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Error("Check() succeeded")
				} else if !errors.Is(err, ErrConfig) {
					t.Errorf("error %v is not marked ErrConfig", err)
				}
			}
		})
	}
}

func TestApplyEnvironment(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvTarget:   "/mnt/target",
		EnvRelease:  "jammy",
		EnvLogLevel: "warn",
	}
	config := NewConfig()
	config.Architecture = "arm64"
	config.ApplyEnvironment(func(name string) string { return env[name] })

	if config.Target != "/mnt/target" || config.Release != "jammy" || config.Log.Level != "warn" {
		t.Errorf("overrides not applied: %+v", config)
	}
	if config.Architecture != "arm64" {
		t.Errorf("Architecture = %q, want value kept", config.Architecture)
	}
}

func TestLogConfigHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	lc := &LogConfig{Level: "warn", Format: "json"}
	h, err := lc.NewHandler(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled at warn level")
	}

	for _, bad := range []LogConfig{{Level: "loud"}, {Format: "xml"}} {
		if _, err := bad.NewHandler(&buf); err == nil {
			t.Errorf("NewHandler(%+v) succeeded", bad)
		}
	}
}
