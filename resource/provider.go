package resource

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

type cacheKey struct {
	name string
	kind Kind
	fp   string
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%d\x00%s\x00%s", k.kind, k.fp, k.name)
}

// Stats counts provider activity since creation.
type Stats struct {
	Hits   uint64
	Misses uint64
	Reads  uint64
}

// Provider resolves resources across an ordered list of sources and caches
// the results. It is safe for concurrent use.
type Provider struct {
	sources []Source
	fp      string

	mu    sync.RWMutex
	cache map[cacheKey]*Handle
	group singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	reads  atomic.Uint64
}

// New returns a provider searching sources in the given order. Nil sources
// are skipped.
func New(sources ...Source) *Provider {
	p := &Provider{cache: make(map[cacheKey]*Handle)}
	for _, s := range sources {
		if s == nil {
			continue
		}
		p.sources = append(p.sources, s)
		p.fp += fingerprint(s) + "\x01"
	}
	return p
}

// Sources returns the configured sources in search order.
func (p *Provider) Sources() []Source {
	return append([]Source(nil), p.sources...)
}

// Resolve returns the handle for name. The first source yielding bytes wins.
// Concurrent first resolutions of the same key share one read and receive
// the same handle.
func (p *Provider) Resolve(ctx context.Context, name string, kind Kind) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key := cacheKey{name: name, kind: kind, fp: p.fp}
	if h := p.lookup(key); h != nil {
		p.hits.Add(1)
		return h, nil
	}
	v, err, _ := p.group.Do(key.String(), func() (any, error) {
		if h := p.lookup(key); h != nil {
			return h, nil
		}
		p.misses.Add(1)
		h, err := p.load(name, kind)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.cache[key] = h
		p.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

func (p *Provider) lookup(key cacheKey) *Handle {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cache[key]
}

func (p *Provider) load(name string, kind Kind) (*Handle, error) {
	paths := candidates(name, kind)
	tried := 0
	for _, src := range p.sources {
		for _, cand := range paths {
			tried++
			p.reads.Add(1)
			data, err := src.ReadFile(cand)
			if err != nil {
				if isMissing(err) {
					continue
				}
				return nil, &ReadError{Name: name, Kind: kind, Source: src.Name(), Path: cand, Err: err}
			}
			owned := append([]byte(nil), data...)
			return newHandle(name, kind, src.Name(), cand, owned), nil
		}
	}
	return nil, &NotFoundError{Name: name, Kind: kind, Tried: tried}
}

// Evict drops the cached handle for name and kind. It reports whether an
// entry was present.
func (p *Provider) Evict(name string, kind Kind) bool {
	key := cacheKey{name: name, kind: kind, fp: p.fp}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.cache[key]
	delete(p.cache, key)
	return ok
}

// EvictPath drops every cached handle that was served from the given
// source-relative path, whatever name it was requested under. It returns the
// number of entries removed.
func (p *Provider) EvictPath(matched string) int {
	clean := cleanName(matched)
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for k, h := range p.cache {
		if h.path == clean {
			delete(p.cache, k)
			n++
		}
	}
	return n
}

// Clear drops every cached handle.
func (p *Provider) Clear() {
	p.mu.Lock()
	p.cache = make(map[cacheKey]*Handle)
	p.mu.Unlock()
}

// Len returns the number of cached handles.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.cache)
}

// Stats returns a snapshot of the provider counters. Reads counts every
// source probe, including misses.
func (p *Provider) Stats() Stats {
	return Stats{Hits: p.hits.Load(), Misses: p.misses.Load(), Reads: p.reads.Load()}
}
