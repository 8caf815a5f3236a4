package tenant

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"
)

// ErrTenantNotFound is returned by Resolve when no domain record matches and
// the resolver runs with PolicyStrict.
var ErrTenantNotFound = errors.New("no school matches hostname")

// Policy controls what Resolve does when a hostname matches no domain record.
type Policy int

const (
	// PolicyStrict fails closed: unmatched hostnames are an error.
	PolicyStrict Policy = iota
	// PolicyPublicFallback serves the platform partition for unmatched
	// hostnames (the platform's public home page).
	PolicyPublicFallback
)

// Lookup is the minimal capability the resolver needs from the school
// registry. Implemented by the schools service.
type Lookup interface {
	// SpaceForDomain returns the Space owning an exact hostname, or
	// ErrTenantNotFound when no active binding exists.
	SpaceForDomain(ctx context.Context, domain string) (Space, error)
}

// ResolverConfig controls resolution policy and caching.
type ResolverConfig struct {
	PlatformSchema string
	Policy         Policy
	// CacheTTL bounds staleness of the hostname cache; zero disables caching.
	CacheTTL time.Duration
}

// Resolver maps an inbound request hostname to the owning Space. Lookups are
// pure reads; the optional cache is invalidated explicitly on domain record
// changes and expires on TTL otherwise.
type Resolver struct {
	lookup Lookup
	cfg    ResolverConfig

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	space     Space
	expiresAt time.Time
}

func NewResolver(lookup Lookup, cfg ResolverConfig) *Resolver {
	if lookup == nil {
		panic("tenant resolver: lookup is required")
	}
	if cfg.PlatformSchema == "" {
		panic("tenant resolver: platform schema is required")
	}

	r := &Resolver{lookup: lookup, cfg: cfg}
	if cfg.CacheTTL > 0 {
		r.cache = make(map[string]cacheEntry)
	}
	return r
}

// Resolve maps a request Host value to the owning Space. It tries an exact
// domain match first, then falls back to the leading label for
// subdomain-style bindings (`demo` matching `demo.example.org`). Unmatched
// hostnames follow the configured policy.
func (r *Resolver) Resolve(ctx context.Context, host string) (Space, error) {
	hostname := NormalizeHost(host)
	if hostname == "" {
		return r.miss()
	}

	if space, ok := r.cacheGet(hostname); ok {
		return space, nil
	}

	space, err := r.lookup.SpaceForDomain(ctx, hostname)
	if err == nil {
		r.cachePut(hostname, space)
		return space, nil
	}
	if !errors.Is(err, ErrTenantNotFound) {
		return Space{}, err
	}

	if label, _, found := strings.Cut(hostname, "."); found && label != "" {
		space, err = r.lookup.SpaceForDomain(ctx, label)
		if err == nil {
			r.cachePut(hostname, space)
			return space, nil
		}
		if !errors.Is(err, ErrTenantNotFound) {
			return Space{}, err
		}
	}

	return r.miss()
}

// Invalidate drops a hostname from the cache. Callers mutating domain
// records must invalidate both the bound hostname and any host that may have
// matched through the leading-label fallback; Reset covers the latter.
func (r *Resolver) Invalidate(host string) {
	if r.cache == nil {
		return
	}
	r.mu.Lock()
	delete(r.cache, NormalizeHost(host))
	r.mu.Unlock()
}

// Reset drops the whole hostname cache.
func (r *Resolver) Reset() {
	if r.cache == nil {
		return
	}
	r.mu.Lock()
	r.cache = make(map[string]cacheEntry)
	r.mu.Unlock()
}

func (r *Resolver) miss() (Space, error) {
	if r.cfg.Policy == PolicyPublicFallback {
		return PublicSpace(r.cfg.PlatformSchema), nil
	}
	return Space{}, ErrTenantNotFound
}

func (r *Resolver) cacheGet(hostname string) (Space, bool) {
	if r.cache == nil {
		return Space{}, false
	}
	r.mu.RLock()
	entry, ok := r.cache[hostname]
	r.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return Space{}, false
	}
	return entry.space, true
}

func (r *Resolver) cachePut(hostname string, space Space) {
	if r.cache == nil {
		return
	}
	r.mu.Lock()
	r.cache[hostname] = cacheEntry{space: space, expiresAt: time.Now().Add(r.cfg.CacheTTL)}
	r.mu.Unlock()
}

// NormalizeHost strips an optional port and lowercases the hostname.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}
