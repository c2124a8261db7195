package apt

import (
	"fmt"
	"strings"
)

// Proxy holds per-protocol proxy settings for apt.
// Proxy is the generic setting and applies to http.
type Proxy struct {
	Proxy string
	HTTP  string
	FTP   string
	HTTPS string
}

// Directives returns the Acquire::<scheme>::Proxy lines for every
// configured value, in the order proxy, http, ftp, https.
func (p Proxy) Directives() []string {
	settings := []struct {
		scheme string
		value  string
	}{
		{"http", p.Proxy},
		{"http", p.HTTP},
		{"ftp", p.FTP},
		{"https", p.HTTPS},
	}

	var lines []string
	for _, s := range settings {
		if s.value == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("Acquire::%s::Proxy \"%s\";", s.scheme, s.value))
	}
	return lines
}

// Render returns the apt.conf fragment for p, or "" if nothing is set.
func (p Proxy) Render() string {
	lines := p.Directives()
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
