package system

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Scope brackets work that has to run with a prepared target root.
type Scope interface {
	Enter(ctx context.Context) error
	Exit(ctx context.Context) error
}

// WithScope runs fn inside s.  Exit is called whenever Enter succeeded,
// and its error is combined with the one from fn.
func WithScope(ctx context.Context, s Scope, fn func() error) (err error) {
	if err := s.Enter(ctx); err != nil {
		return errors.Wrap(err, "enter scope")
	}
	defer func() {
		if exitErr := s.Exit(ctx); exitErr != nil {
			err = errors.CombineErrors(err, errors.Wrap(exitErr, "exit scope"))
		}
	}()
	return fn()
}

// NopScope is a Scope that does nothing.
type NopScope struct{}

// Enter implements Scope.
func (NopScope) Enter(context.Context) error { return nil }

// Exit implements Scope.
func (NopScope) Exit(context.Context) error { return nil }

// DefaultMounts are bind-mounted into a target by ChrootScope.
var DefaultMounts = []string{"/dev", "/proc", "/run", "/sys"}

const resolvConf = "etc/resolv.conf"

// ChrootScope prepares a target root for commands run with chroot:
// the kernel file systems are bind-mounted and the host's resolv.conf
// is made available so that network lookups work.
type ChrootScope struct {
	Target string
	Runner Runner

	// Mounts defaults to DefaultMounts.
	Mounts []string

	// HostResolvConf defaults to /etc/resolv.conf.  Set it to "-" to
	// leave the target's resolver configuration alone.
	HostResolvConf string

	mounted     []string
	resolvSaved string
	resolvSwap  bool
}

// NewChrootScope creates a ChrootScope for target.
func NewChrootScope(target string, runner Runner) *ChrootScope {
	return &ChrootScope{
		Target: target,
		Runner: runner,
	}
}

func (s *ChrootScope) mounts() []string {
	if s.Mounts == nil {
		return DefaultMounts
	}
	return s.Mounts
}

// Enter implements Scope.  Nothing is done for the host root.
func (s *ChrootScope) Enter(ctx context.Context) error {
	if IsHostRoot(s.Target) {
		return nil
	}
	slog.Info("entering target", "target", s.Target)

	for _, m := range s.mounts() {
		dst := filepath.Join(s.Target, m)
		if err := os.MkdirAll(dst, 0755); err != nil {
			return s.unwind(ctx, errors.Wrapf(err, "mkdir %s", dst))
		}
		_, err := s.Runner.Run(ctx, Command{Args: []string{"mount", "--bind", m, dst}})
		if err != nil {
			return s.unwind(ctx, errors.Wrapf(err, "bind mount %s", m))
		}
		s.mounted = append(s.mounted, dst)
	}

	if err := s.swapResolvConf(); err != nil {
		return s.unwind(ctx, err)
	}
	return nil
}

// unwind undoes a partial Enter.
func (s *ChrootScope) unwind(ctx context.Context, err error) error {
	if exitErr := s.Exit(ctx); exitErr != nil {
		slog.Warn("failed to clean up target", "target", s.Target, "error", exitErr)
	}
	return err
}

func (s *ChrootScope) swapResolvConf() error {
	host := s.HostResolvConf
	if host == "" {
		host = "/etc/resolv.conf"
	}
	if host == "-" {
		return nil
	}

	data, err := os.ReadFile(host) // #nosec G304 - resolver configuration path
	if err != nil {
		slog.Warn("host resolv.conf unavailable", "path", host, "error", err)
		return nil
	}

	dst := filepath.Join(s.Target, resolvConf)
	if _, err := os.Lstat(dst); err == nil {
		saved := dst + ".aptsetup"
		if err := os.Rename(dst, saved); err != nil {
			return errors.Wrap(err, "save target resolv.conf")
		}
		s.resolvSaved = saved
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrap(err, "mkdir")
	}
	s.resolvSwap = true
	if err := os.WriteFile(dst, data, 0644); err != nil { // #nosec G306 - resolv.conf is world readable
		return errors.Wrap(err, "write target resolv.conf")
	}
	return nil
}

func (s *ChrootScope) restoreResolvConf() error {
	if !s.resolvSwap {
		return nil
	}
	dst := filepath.Join(s.Target, resolvConf)
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove temporary resolv.conf")
	}
	if s.resolvSaved != "" {
		if err := os.Rename(s.resolvSaved, dst); err != nil {
			return errors.Wrap(err, "restore target resolv.conf")
		}
	}
	s.resolvSwap = false
	s.resolvSaved = ""
	return nil
}

// Exit implements Scope.  Mounts are released in reverse order; every
// step is attempted even if an earlier one fails.
func (s *ChrootScope) Exit(ctx context.Context) error {
	if IsHostRoot(s.Target) {
		return nil
	}

	err := s.restoreResolvConf()

	// unmounting has to happen even when ctx is already cancelled
	ctx = context.WithoutCancel(ctx)
	for i := len(s.mounted) - 1; i >= 0; i-- {
		dst := s.mounted[i]
		if _, uerr := s.Runner.Run(ctx, Command{Args: []string{"umount", dst}}); uerr != nil {
			err = errors.CombineErrors(err, errors.Wrapf(uerr, "unmount %s", dst))
		}
	}
	s.mounted = nil

	slog.Info("left target", "target", s.Target)
	return err
}
