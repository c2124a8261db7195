package apt

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	version "github.com/knqyf263/go-deb-version"
)

// Preference is one pin block of an apt preferences file.
type Preference struct {
	Package  string
	Pin      string
	Priority int
}

// Check validates the pin.  Version pins must name a parsable Debian
// version; a trailing "*" wildcard is allowed.
func (p Preference) Check() error {
	if strings.TrimSpace(p.Package) == "" {
		return errors.New("preference without package")
	}
	pin := strings.TrimSpace(p.Pin)
	if pin == "" {
		return errors.Newf("preference for %s without pin", p.Package)
	}

	kind, value, _ := strings.Cut(pin, " ")
	if kind != "version" {
		return nil
	}
	value = strings.TrimSuffix(strings.TrimSpace(value), "*")
	if value == "" || strings.ContainsAny(value, "*?/") {
		// globs and regular expressions are matched by apt itself
		return nil
	}
	if _, err := version.NewVersion(value); err != nil {
		return errors.Wrapf(err, "preference for %s: invalid version pin %q", p.Package, p.Pin)
	}
	return nil
}

// String renders the block with a trailing newline.
func (p Preference) String() string {
	return fmt.Sprintf("Package: %s\nPin: %s\nPin-Priority: %d\n", p.Package, p.Pin, p.Priority)
}

// RenderPreferences joins pin blocks with a blank line between them.
func RenderPreferences(prefs []Preference) string {
	blocks := make([]string, 0, len(prefs))
	for _, p := range prefs {
		blocks = append(blocks, p.String())
	}
	return strings.Join(blocks, "\n")
}
