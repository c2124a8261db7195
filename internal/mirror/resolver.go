package mirror

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	"github.com/mirrorctl/aptsetup/internal/apt"
)

// ErrUnresolvable is returned when no search candidate of a mirror spec
// could be resolved.
var ErrUnresolvable = errors.New("no resolvable mirror")

// Result is the outcome of mirror resolution.  Mirror always equals Primary.
type Result struct {
	Mirror   string
	Primary  string
	Security string
}

// Params returns the template parameters for r and release.
func (r Result) Params(release string) apt.Params {
	return apt.Params{
		"MIRROR":   r.Mirror,
		"PRIMARY":  r.Primary,
		"SECURITY": r.Security,
		"RELEASE":  release,
	}
}

// Prober tells whether the host of a mirror URL can be resolved.
type Prober interface {
	Resolvable(ctx context.Context, rawURL string) bool
}

// Resolver resolves the mirrors of each role for an architecture.
type Resolver struct {
	Prober Prober
	Logger *slog.Logger
}

// NewResolver creates a Resolver that probes with p.
func NewResolver(p Prober) *Resolver {
	return &Resolver{
		Prober: p,
		Logger: slog.Default(),
	}
}

// Resolve picks the primary and security mirrors for arch.
//
// A role without a matching spec falls back to the built-in default.
// Specs with a URI are taken as is; search lists are probed in order.
func (r *Resolver) Resolve(ctx context.Context, primary, security []Spec, arch string) (Result, error) {
	p, err := r.resolveRole(ctx, Primary, primary, arch)
	if err != nil {
		return Result{}, err
	}
	s, err := r.resolveRole(ctx, Security, security, arch)
	if err != nil {
		return Result{}, err
	}

	result := Result{Mirror: p, Primary: p, Security: s}
	r.logger().Info("resolved mirrors",
		"arch", arch,
		"primary", result.Primary,
		"security", result.Security)
	return result, nil
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Resolver) resolveRole(ctx context.Context, role Role, specs []Spec, arch string) (string, error) {
	spec, ok := SelectSpec(specs, arch)
	if !ok {
		return Default(role, arch), nil
	}
	if spec.URI != "" {
		return spec.URI, nil
	}
	if len(spec.Search) == 0 {
		return Default(role, arch), nil
	}

	found, err := r.search(ctx, spec.Search)
	if err != nil {
		return "", errors.Wrapf(err, "%s mirror for %s", role, arch)
	}
	return found, nil
}

func (r *Resolver) search(ctx context.Context, candidates []string) (string, error) {
	if r.Prober == nil {
		return "", errors.New("no prober to search mirrors with")
	}
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if r.Prober.Resolvable(ctx, candidate) {
			r.logger().Debug("mirror candidate resolvable", "mirror", candidate)
			return candidate, nil
		}
		r.logger().Debug("mirror candidate not resolvable", "mirror", candidate)
	}
	return "", errors.WithHint(
		errors.Mark(errors.Newf("none of %v resolved", candidates), ErrUnresolvable),
		"set uri explicitly or check the DNS configuration")
}
