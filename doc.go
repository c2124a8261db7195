/*
Package aptsetup configures APT in a running system or in a target root
during installation.

aptsetup provides:
  - Mirror selection per architecture with DNS reachability probing
  - sources.list rendering with suite and component disabling
  - Renaming of cached package lists after a mirror change
  - Additional repositories and keys, including keyserver lookups
  - Proxy, apt.conf and pinning settings
  - Debconf preseeding with package reconfiguration

The main packages are:

	github.com/mirrorctl/aptsetup/internal/apt        - sources.list entries, templates and apt file formats
	github.com/mirrorctl/aptsetup/internal/mirror     - mirror specs, defaults, resolution and probing
	github.com/mirrorctl/aptsetup/internal/keys       - keyserver client and key inspection
	github.com/mirrorctl/aptsetup/internal/system     - command execution, chroot scope and target detection
	github.com/mirrorctl/aptsetup/internal/aptconfig  - configuration and the apply pipeline
	github.com/mirrorctl/aptsetup/cmd/aptsetup        - Command-line interface
*/
package aptsetup
