package mirror

import (
	"net/url"
	"slices"

	"github.com/cockroachdb/errors"
)

// Role names a mirror's purpose.
type Role string

// Mirror roles.
const (
	Primary  Role = "primary"
	Security Role = "security"
)

// DefaultArch is the arches entry that matches any architecture.
const DefaultArch = "default"

// Spec is one candidate mirror for a role.
//
// A spec applies to the architectures listed in Arches, or to any
// architecture if Arches contains "default".  URI is used as is; Search
// is a list of URIs that are probed in order.
type Spec struct {
	Arches []string `toml:"arches" yaml:"arches"`
	URI    string   `toml:"uri,omitempty" yaml:"uri,omitempty"`
	Search []string `toml:"search,omitempty" yaml:"search,omitempty"`
}

func checkURL(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return errors.Wrapf(err, "invalid mirror url %q", u)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return errors.Newf("mirror url %q needs a scheme and a host", u)
	}
	return nil
}

// Check validates the spec.
func (s Spec) Check() error {
	if len(s.Arches) == 0 {
		return errors.New("no arches")
	}
	if s.URI == "" && len(s.Search) == 0 {
		return errors.New("either uri or search must be set")
	}
	if s.URI != "" {
		if err := checkURL(s.URI); err != nil {
			return err
		}
	}
	for _, u := range s.Search {
		if err := checkURL(u); err != nil {
			return errors.Wrap(err, "search")
		}
	}
	return nil
}

// SelectSpec picks the spec that applies to arch.
//
// A spec naming arch explicitly wins wherever it appears in the list;
// otherwise the first "default" spec is used.  The second return value
// is false if neither exists.
func SelectSpec(specs []Spec, arch string) (Spec, bool) {
	for _, s := range specs {
		if slices.Contains(s.Arches, arch) {
			return s, true
		}
	}
	for _, s := range specs {
		if slices.Contains(s.Arches, DefaultArch) {
			return s, true
		}
	}
	return Spec{}, false
}
