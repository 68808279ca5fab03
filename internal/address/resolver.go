// Package address resolves the public-facing IP address of the host process and caches it for the
// lifetime of the process.
package address

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultURL is the lookup service used when Options.URL is empty.
	DefaultURL = "https://api.ipify.org"
	// DefaultTimeout bounds a single lookup when Options.Timeout is zero.
	DefaultTimeout = 5 * time.Second

	maxBody = 256
)

// Unset is returned while no address has been resolved.
var Unset = netip.IPv4Unspecified()

// State is the resolution state of a Resolver.
type State int32

const (
	Unresolved State = iota
	Resolving
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolving:
		return "resolving"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Options configures a Resolver.
type Options struct {
	// URL of a service answering with the caller's address as plain text.
	URL string
	// Timeout bounds every lookup.
	Timeout time.Duration
	// Client performs the lookups. http.DefaultClient is used if nil.
	Client *http.Client
	Log    *zap.Logger
}

// Resolver lazily looks up the public address. A successful result is kept until Reset; after a
// failure the next call looks up again. Concurrent callers share a single in-flight lookup.
type Resolver struct {
	url     string
	timeout time.Duration
	client  *http.Client
	log     *zap.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	addr    netip.Addr
	state   State
	lookups atomic.Int64
}

// New returns a Resolver using opts.
func New(opts Options) *Resolver {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Resolver{
		url:     opts.URL,
		timeout: opts.Timeout,
		client:  opts.Client,
		log:     opts.Log,
	}
}

// Resolve returns the cached address or looks it up. On failure it logs the error and returns
// Unset; it never waits longer than the lookup timeout, or ctx, whichever ends first.
func (r *Resolver) Resolve(ctx context.Context) netip.Addr {
	r.mu.RLock()
	if r.state == Resolved {
		addr := r.addr
		r.mu.RUnlock()
		return addr
	}
	r.mu.RUnlock()

	ch := r.group.DoChan("address", func() (any, error) {
		return r.lookup()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return Unset
		}
		return res.Val.(netip.Addr)
	case <-ctx.Done():
		r.log.Warn("public address lookup abandoned", zap.Error(ctx.Err()))
		return Unset
	}
}

// lookup runs once per flight. It re-checks the cache because a flight may start right after a
// previous one stored its result.
func (r *Resolver) lookup() (netip.Addr, error) {
	r.mu.Lock()
	if r.state == Resolved {
		addr := r.addr
		r.mu.Unlock()
		return addr, nil
	}
	r.state = Resolving
	r.mu.Unlock()

	addr, err := r.fetch()

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.state = Failed
		r.log.Warn("couldn't get server IP address", zap.String("url", r.url), zap.Error(err))
		return Unset, err
	}
	r.addr, r.state = addr, Resolved
	r.log.Info("resolved public address", zap.Stringer("address", addr))
	return addr, nil
}

func (r *Resolver) fetch() (netip.Addr, error) {
	r.lookups.Add(1)

	// The lookup is shared by every waiting caller, so it is not bound to any one caller's context.
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return netip.Addr{}, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return netip.Addr{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return netip.Addr{}, fmt.Errorf("lookup service answered %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return netip.Addr{}, err
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return netip.Addr{}, errors.New("empty lookup response")
	}
	addr, err := netip.ParseAddr(text)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("lookup response is not an address: %w", err)
	}
	return addr.Unmap(), nil
}

// State returns the current resolution state.
func (r *Resolver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Lookups returns how many external lookups were issued.
func (r *Resolver) Lookups() int64 {
	return r.lookups.Load()
}

// Reset drops the cached address so the next Resolve looks it up again. A lookup already in
// flight is not affected.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Resolving {
		return
	}
	r.addr, r.state = netip.Addr{}, Unresolved
}

var (
	defaultMu       sync.Mutex
	defaultResolver *Resolver
)

// Default returns the process-wide Resolver, creating one with default options on first use.
func Default() *Resolver {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultResolver == nil {
		defaultResolver = New(Options{})
	}
	return defaultResolver
}

// SetDefault replaces the process-wide Resolver. It is meant to be called once during start-up.
func SetDefault(r *Resolver) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultResolver = r
}
