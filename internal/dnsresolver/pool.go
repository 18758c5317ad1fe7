package dnsresolver

import (
	"fmt"
	"time"

	"github.com/zeebo/xxh3"
)

// Pool is an ordered, fixed set of resolvers. Domains are mapped onto it by
// Select, so a domain always lands on the same resolver.
type Pool struct {
	resolvers []Resolver
	servers   []string
}

// NewPool builds one UDP Handle per server, in order, each with the given
// per-query timeout. Any unparsable address fails the whole pool.
func NewPool(servers []string, timeout time.Duration) (*Pool, error) {
	if len(servers) == 0 {
		return nil, ErrNoServers
	}
	p := &Pool{
		resolvers: make([]Resolver, 0, len(servers)),
		servers:   make([]string, 0, len(servers)),
	}
	for i, s := range servers {
		h, err := NewHandle(s, timeout)
		if err != nil {
			return nil, fmt.Errorf("resolver %d: %w", i, err)
		}
		p.resolvers = append(p.resolvers, h)
		p.servers = append(p.servers, h.Server)
	}
	return p, nil
}

// PoolOf wraps already constructed resolvers. Names label them in reports;
// missing names are filled with the resolver's position.
func PoolOf(resolvers []Resolver, names ...string) *Pool {
	p := &Pool{
		resolvers: resolvers,
		servers:   make([]string, len(resolvers)),
	}
	for i := range resolvers {
		if i < len(names) {
			p.servers[i] = names[i]
			continue
		}
		p.servers[i] = fmt.Sprintf("resolver-%d", i)
	}
	return p
}

// Len returns the number of resolvers in the pool.
func (p *Pool) Len() int { return len(p.resolvers) }

// Servers returns the server label of each resolver, by position.
func (p *Pool) Servers() []string {
	return append([]string(nil), p.servers...)
}

// Pick returns the position and resolver assigned to domain.
func (p *Pool) Pick(domain string) (int, Resolver) {
	i := Select(domain, len(p.resolvers))
	return i, p.resolvers[i]
}

// Select maps domain onto [0, n) using a 64-bit xxh3 hash of its bytes.
// The mapping is unseeded, so it is stable within and across runs.
func Select(domain string, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxh3.HashString(domain) % uint64(n))
}
