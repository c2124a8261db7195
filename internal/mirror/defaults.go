package mirror

// defaultPair holds the built-in mirrors of one architecture family.
type defaultPair struct {
	primary  string
	security string
}

var (
	archiveDefaults = defaultPair{
		primary:  "http://archive.ubuntu.com/ubuntu/",
		security: "http://security.ubuntu.com/ubuntu/",
	}
	portsDefaults = defaultPair{
		primary:  "http://ports.ubuntu.com/ubuntu-ports",
		security: "http://ports.ubuntu.com/ubuntu-ports",
	}
)

// archive.ubuntu.com only carries the Intel architectures.
var archiveArches = map[string]bool{
	"amd64": true,
	"i386":  true,
}

func defaultsFor(arch string) defaultPair {
	if archiveArches[arch] {
		return archiveDefaults
	}
	return portsDefaults
}

// Default returns the built-in mirror for role on arch.
func Default(role Role, arch string) string {
	d := defaultsFor(arch)
	if role == Security {
		return d.security
	}
	return d.primary
}

// Defaults returns the built-in mirrors for arch.
func Defaults(arch string) Result {
	d := defaultsFor(arch)
	return Result{
		Mirror:   d.primary,
		Primary:  d.primary,
		Security: d.security,
	}
}
