// Package dnsresolver provides the resolver pool used by the sweep engine.
//
// A Pool holds one Handle per configured upstream server. Each Handle wraps a
// github.com/miekg/dns UDP client bound to a single ip:port and a fixed
// per-query timeout. Handles keep no cache, so negative answers are never
// reused, and they place no limit on concurrent queries.
//
// # Basic Usage
//
//	pool, err := dnsresolver.NewPool([]string{"1.1.1.1", "8.8.8.8:53"}, 5*time.Second)
//	if err != nil {
//		log.Fatal(err)
//	}
//	idx, res := pool.Pick("example.com")
//	ips, err := res.LookupIP(ctx, "example.com")
//	switch {
//	case errors.Is(err, dnsresolver.ErrNoRecords):
//		// definitive negative
//	case errors.Is(err, dnsresolver.ErrTimeout):
//		// server idx did not answer in time
//	}
//
// # Resolver Selection
//
// Select hashes the domain with xxh3 and reduces it modulo the pool size. The
// hash is unseeded, so the same domain always maps to the same server, both
// within a run and across runs, which keeps per-server timeout statistics
// attributable.
//
// # Error Classification
//
// LookupIP runs the A and AAAA queries concurrently and returns every address
// it got. When neither query produced an address, the returned error is
// classified with this precedence:
//
//   - ErrNXDomain: the server reported the name does not exist
//   - ErrTimeout: a query got no answer in time
//   - ErrNoRecords: the name exists but has no address records
//
// Any other failure (SERVFAIL, REFUSED, malformed responses) is returned as
// the aggregated go.uber.org/multierr error of both queries.
package dnsresolver
