package apt

import (
	"regexp"
)

// Params maps template variable names (MIRROR, RELEASE, ...) to values.
type Params map[string]string

var (
	releaseVar = regexp.MustCompile(`(?i)\$(RELEASE\b|\{RELEASE\})`)
	paramVar   = regexp.MustCompile(`\$\{(\w+)\}|\$(\w+)`)
)

// Expand replaces $NAME and ${NAME} for every name in params.  Names
// are matched as whole identifiers; unknown ones are left as written.
func Expand(text string, params Params) string {
	if len(params) == 0 {
		return text
	}
	return paramVar.ReplaceAllStringFunc(text, func(ref string) string {
		m := paramVar.FindStringSubmatch(ref)
		name := m[1]
		if name == "" {
			name = m[2]
		}
		if value, ok := params[name]; ok {
			return value
		}
		return ref
	})
}

// ExpandRelease replaces $RELEASE (in any letter case) with release.
func ExpandRelease(text, release string) string {
	return releaseVar.ReplaceAllLiteralString(text, release)
}

// ExpandReleaseEntries substitutes the release codename into deb and
// deb-src entries, commented ones included.
//
// Entries with options are left untouched: they are not machine
// rewritable, so their suite keeps the literal $RELEASE.
func ExpandReleaseEntries(entries []Entry, release string) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if (!e.Enabled() && !e.Disabled()) || e.HasOptions() {
			out = append(out, e)
			continue
		}
		expanded := ExpandRelease(e.String(), release)
		if expanded == e.String() {
			out = append(out, e)
			continue
		}
		out = append(out, ParseEntry(expanded))
	}
	return out
}
