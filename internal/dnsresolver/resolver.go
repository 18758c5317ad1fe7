package dnsresolver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNoRecords is returned when a name has no A or AAAA records.
	ErrNoRecords = errors.New("no records found")
	// ErrNXDomain is returned when the server reports the name does not exist.
	// It matches ErrNoRecords under errors.Is.
	ErrNXDomain = fmt.Errorf("%w: non-existent domain", ErrNoRecords)
	// ErrTimeout is returned when a query got no answer within the timeout.
	ErrTimeout = errors.New("query timed out")
	// ErrRcode is returned for unsuccessful response codes other than NXDOMAIN.
	ErrRcode = errors.New("unsuccessful response code")
	// ErrEmptyMsg is returned when the DNS response message is empty.
	ErrEmptyMsg = errors.New("empty message")
	// ErrEmptyHostname is returned when an empty hostname is provided.
	ErrEmptyHostname = errors.New("empty hostname")
	// ErrInvalidServer is returned for server addresses that are not IP or IP:port.
	ErrInvalidServer = errors.New("invalid DNS server address")
	// ErrNoServers is returned when a pool is built without servers.
	ErrNoServers = errors.New("no DNS servers configured")
)

const _defaultPort = 53

var _ Resolver = (*Handle)(nil)

// Resolver resolves a hostname to its IPv4 and IPv6 addresses.
type Resolver interface {
	LookupIP(ctx context.Context, hostname string) ([]net.IP, error)
}

// Exchanger defines the interface for DNS message exchange.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, a string) (r *dns.Msg, rtt time.Duration, err error)
}

// Handle is a resolver bound to a single upstream server. It is immutable
// after construction and safe for concurrent use.
type Handle struct {
	Client  Exchanger
	Server  string
	Timeout time.Duration
}

// NewHandle returns a UDP handle for server, which is either a bare IP
// address (port 53 is assumed) or an ip:port pair.
func NewHandle(server string, timeout time.Duration) (*Handle, error) {
	addr, err := ServerAddr(server)
	if err != nil {
		return nil, err
	}
	return &Handle{
		Client: &dns.Client{
			Net:     "udp",
			Timeout: timeout,
		},
		Server:  addr,
		Timeout: timeout,
	}, nil
}

// ServerAddr normalises server to an ip:port string.
func ServerAddr(server string) (string, error) {
	server = strings.TrimSpace(server)
	if ip, err := netip.ParseAddr(server); err == nil {
		return netip.AddrPortFrom(ip, _defaultPort).String(), nil
	}
	if ap, err := netip.ParseAddrPort(server); err == nil {
		return ap.String(), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidServer, server)
}

// LookupIP resolves hostname to its A and AAAA addresses.
// If the hostname is already an IP address, it returns it directly.
//
// Errors match, in order of precedence, ErrNXDomain, ErrTimeout and
// ErrNoRecords under errors.Is. Anything else is returned as the aggregated
// per-query error.
func (h *Handle) LookupIP(ctx context.Context, hostname string) ([]net.IP, error) {
	if strings.TrimSpace(hostname) == "" {
		return nil, ErrEmptyHostname
	}

	if ip := net.ParseIP(hostname); ip != nil {
		return []net.IP{ip}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	return h.lookupIPs(ctx, hostname)
}

// lookupIPs resolves A and AAAA records concurrently and returns every
// address that succeeded.
func (h *Handle) lookupIPs(ctx context.Context, host string) ([]net.IP, error) {
	grp, ctx := errgroup.WithContext(ctx)

	var (
		mu   sync.Mutex
		ips  []net.IP
		errs []error
	)

	for _, qt := range [...]uint16{dns.TypeA, dns.TypeAAAA} {
		grp.Go(func() error {
			addrs, err := h.lookup(ctx, host, qt)
			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs = append(errs, err) // collect but don’t cancel peer
				return nil
			}
			ips = append(ips, addrs...)
			return nil
		})
	}
	_ = grp.Wait()

	if len(ips) > 0 {
		return ips, nil
	}
	return nil, fmt.Errorf("dns lookup for %q: %w", host, pickErr(errs))
}

// pickErr reduces the per-query failures of one lookup to the error that
// decides what the caller does next.
func pickErr(errs []error) error {
	for _, target := range []error{ErrNXDomain, ErrTimeout, ErrNoRecords} {
		for _, err := range errs {
			if errors.Is(err, target) {
				return err
			}
		}
	}
	if len(errs) == 0 {
		return ErrNoRecords
	}
	return multierr.Combine(errs...)
}

// lookup issues a single qtype query for host.
func (h *Handle) lookup(ctx context.Context, host string, qtype uint16) ([]net.IP, error) {
	// Fresh request each query: ExchangeContext mutates *dns.Msg
	req := &dns.Msg{}
	req.SetQuestion(dns.Fqdn(host), qtype)

	resp, _, err := h.Client.ExchangeContext(ctx, req, h.Server)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s %s: %v", ErrTimeout, dns.TypeToString[qtype], h.Server, err)
		}
		return nil, err
	}
	return parseIPs(resp)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

// parseIPs checks the response code and returns the A and AAAA answers.
func parseIPs(resp *dns.Msg) ([]net.IP, error) {
	if resp == nil {
		return nil, ErrEmptyMsg
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, ErrNXDomain
	default:
		return nil, fmt.Errorf("%w: %s", ErrRcode, dns.RcodeToString[resp.Rcode])
	}

	var ips []net.IP
	for _, r := range resp.Answer {
		switch record := r.(type) {
		case *dns.A:
			ips = append(ips, record.A)
		case *dns.AAAA:
			ips = append(ips, record.AAAA)
		}
	}

	if len(ips) == 0 {
		return nil, ErrNoRecords
	}

	return ips, nil
}
