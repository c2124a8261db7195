package mirror

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/singleflight"
)

// bogusNames never exist.  Resolvers that answer for them redirect
// failed lookups to a search page.
var bogusNames = []string{"does-not-exist.example.com.", "example.invalid."}

// LookupFunc resolves a host name to addresses.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// DNSProbe checks mirror hosts with DNS lookups.
//
// Definite answers are cached per host for the lifetime of the probe;
// timeouts and other temporary failures are asked again next time.  The
// first lookup also resolves a couple of bogus names; an address returned
// for those marks a redirecting resolver, and a real host answered with
// one of those addresses counts as unresolvable.
type DNSProbe struct {
	lookup LookupFunc

	redirectMu   sync.Mutex
	redirectDone bool
	redirects    []string

	group singleflight.Group
	mu    sync.Mutex
	cache map[string]bool
}

// NewDNSProbe creates a probe.  A nil lookup uses net.DefaultResolver.
func NewDNSProbe(lookup LookupFunc) *DNSProbe {
	if lookup == nil {
		lookup = net.DefaultResolver.LookupHost
	}
	return &DNSProbe{
		lookup: lookup,
		cache:  make(map[string]bool),
	}
}

// detectRedirects resolves the bogus names once per probe.  Detection is
// retried on the next call if ctx ended while it ran.
func (p *DNSProbe) detectRedirects(ctx context.Context) []string {
	p.redirectMu.Lock()
	defer p.redirectMu.Unlock()
	if p.redirectDone {
		return p.redirects
	}

	var redirects []string
	for _, name := range bogusNames {
		addrs, err := p.lookup(ctx, name)
		if err != nil {
			continue
		}
		slog.Debug("resolver answers for nonexistent name", "name", name, "addrs", addrs)
		for _, addr := range addrs {
			if !slices.Contains(redirects, addr) {
				redirects = append(redirects, addr)
			}
		}
	}
	if ctx.Err() != nil {
		return redirects
	}
	p.redirects = redirects
	p.redirectDone = true
	return redirects
}

// definite reports whether a lookup outcome is an answer about the host
// rather than a resolver or network hiccup.
func definite(err error) bool {
	if err == nil {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// ResolvableHost returns true if host resolves to an address that is not
// a redirect address.
func (p *DNSProbe) ResolvableHost(ctx context.Context, host string) bool {
	redirects := p.detectRedirects(ctx)

	p.mu.Lock()
	ok, cached := p.cache[host]
	p.mu.Unlock()
	if cached {
		return ok
	}

	v, _, _ := p.group.Do(host, func() (any, error) {
		addrs, err := p.lookup(ctx, host)
		resolvable := err == nil && len(addrs) > 0 && !slices.Contains(redirects, addrs[0])
		slog.Debug("probed mirror host", "host", host, "resolvable", resolvable, "error", err)

		if ctx.Err() == nil && definite(err) {
			p.mu.Lock()
			p.cache[host] = resolvable
			p.mu.Unlock()
		}
		return resolvable, nil
	})
	return v.(bool)
}

// Resolvable returns true if the host part of rawURL resolves.
func (p *DNSProbe) Resolvable(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	return p.ResolvableHost(ctx, u.Hostname())
}
