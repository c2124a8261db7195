package apt

import (
	"strings"
)

// ListsDir is the directory where apt caches downloaded index files.
const ListsDir = "/var/lib/apt/lists"

// ListPrefix converts a mirror URL into the file name prefix apt uses
// for that mirror's cached indices: the scheme and at most one trailing
// slash are dropped and the remaining slashes become underscores.
//
//	http://archive.ubuntu.com/ubuntu/ -> archive.ubuntu.com_ubuntu
func ListPrefix(mirrorURL string) string {
	s := strings.TrimSuffix(mirrorURL, "/")
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+len("://"):]
	}
	return strings.ReplaceAll(s, "/", "_")
}
