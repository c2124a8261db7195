package apt

import (
	"strings"
)

// knownSuites maps short suite names onto their release-relative form.
var knownSuites = map[string]string{
	"release":   "$RELEASE",
	"updates":   "$RELEASE-updates",
	"backports": "$RELEASE-backports",
	"security":  "$RELEASE-security",
	"proposed":  "$RELEASE-proposed",
}

// ReleaseSuites realizes a disable_suites list for a release codename.
// Short names such as "updates" stand for "$RELEASE-updates"; anything
// else is taken literally after $RELEASE substitution.
func ReleaseSuites(disabled []string, release string) []string {
	suites := make([]string, 0, len(disabled))
	for _, suite := range disabled {
		if templated, ok := knownSuites[suite]; ok {
			suite = templated
		}
		suites = append(suites, ExpandRelease(suite, release))
	}
	return suites
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}

// DisableSuites comments out every enabled entry whose suite, after
// $RELEASE substitution, is one of the disabled suites.
//
// A matching entry without options is commented over its substituted
// text.  A matching entry with options is commented over its original
// raw text, so a literal $RELEASE in it survives.  Lines that are
// already commented, blank or malformed pass through untouched, which
// makes the transform idempotent.
func DisableSuites(disabled []string, entries []Entry, release string) []Entry {
	if len(disabled) == 0 {
		return entries
	}
	suites := ReleaseSuites(disabled, release)

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Enabled() || !containsFold(suites, ExpandRelease(e.Suite, release)) {
			out = append(out, e)
			continue
		}
		if !e.HasOptions() {
			e = ParseEntry(ExpandRelease(e.String(), release))
		}
		out = append(out, e.Disable())
	}
	return out
}

// DisableComponents strips the disabled components from enabled entries.
//
// An affected entry is replaced by its commented-out original followed
// by a new entry with the surviving components in their original order.
// When no component survives only the commented original remains.
func DisableComponents(disabled []string, entries []Entry) []Entry {
	if len(disabled) == 0 {
		return entries
	}
	drop := make(map[string]bool, len(disabled))
	for _, comp := range disabled {
		drop[comp] = true
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.Enabled() {
			out = append(out, e)
			continue
		}

		var kept []string
		for _, comp := range e.Components {
			if !drop[comp] {
				kept = append(kept, comp)
			}
		}
		if len(kept) == len(e.Components) {
			out = append(out, e)
			continue
		}

		out = append(out, e.Disable())
		if len(kept) > 0 {
			out = append(out, e.WithComponents(kept))
		}
	}
	return out
}
