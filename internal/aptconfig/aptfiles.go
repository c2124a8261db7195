package aptconfig

import (
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/mirrorctl/aptsetup/internal/apt"
)

// Files written into the target's apt configuration.
const (
	ProxyFile       = "/etc/apt/apt.conf.d/90aptsetup-proxy"
	AptConfFile     = "/etc/apt/apt.conf.d/94aptsetup-config"
	PreferencesFile = "/etc/apt/preferences.d/90aptsetup.pref"
)

// writeOrRemove writes content to file, or removes file if content is empty.
func writeOrRemove(file, content string) error {
	if content == "" {
		return removeFile(file)
	}
	if err := writeFile(file, []byte(content), 0644); err != nil {
		return err
	}
	slog.Info("wrote apt configuration", "file", file)
	return nil
}

// WriteProxy writes the proxy settings of config into target.
func WriteProxy(config *Config, target string) error {
	err := writeOrRemove(targetPath(target, ProxyFile), config.AptProxy().Render())
	return errors.Wrap(err, "apt proxy")
}

// WriteAptConf writes the raw apt configuration of config into target.
func WriteAptConf(config *Config, target string) error {
	err := writeOrRemove(targetPath(target, AptConfFile), config.Conf)
	return errors.Wrap(err, "apt conf")
}

// WritePreferences writes the pins of config into target.
func WritePreferences(config *Config, target string) error {
	content := apt.RenderPreferences(config.AptPreferences())
	err := writeOrRemove(targetPath(target, PreferencesFile), content)
	return errors.Wrap(err, "apt preferences")
}
