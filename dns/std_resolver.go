package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"
)

// StdResolver implements Resolver using the standard library net package.
// It cannot report DNSSEC status, so Authentic is always false.
type StdResolver struct {
	resolver *net.Resolver
}

var _ Resolver = (*StdResolver)(nil)

// NewStdResolver creates a resolver using net.DefaultResolver.
func NewStdResolver() *StdResolver {
	return &StdResolver{
		resolver: net.DefaultResolver,
	}
}

// NewStdResolverWithDialer creates a resolver using a custom dialer, which
// allows pointing the pure-Go resolver at specific servers.
func NewStdResolverWithDialer(dial func(ctx context.Context, network, address string) (net.Conn, error)) *StdResolver {
	return &StdResolver{
		resolver: &net.Resolver{
			PreferGo: true,
			Dial:     dial,
		},
	}
}

// NameserverDialer returns a dial function for NewStdResolverWithDialer that
// ignores the system configuration and sends queries to nameservers in turn.
func NameserverDialer(nameservers []string, timeout time.Duration) func(ctx context.Context, network, address string) (net.Conn, error) {
	var next atomic.Uint32
	d := net.Dialer{Timeout: timeout}
	return func(ctx context.Context, network, _ string) (net.Conn, error) {
		if len(nameservers) == 0 {
			return nil, errors.New("dns: no nameservers configured")
		}
		ns := nameservers[int(next.Add(1)-1)%len(nameservers)]
		return d.DialContext(ctx, network, ns)
	}
}

// LookupTXT retrieves TXT records using the standard library.
func (r *StdResolver) LookupTXT(ctx context.Context, name string) (Result[string], error) {
	name = strings.TrimSuffix(name, ".")

	records, err := r.resolver.LookupTXT(ctx, name)
	if err != nil {
		return Result[string]{}, convertError(err)
	}

	if len(records) == 0 {
		return Result[string]{}, ErrDNSNotFound
	}

	return Result[string]{Records: records}, nil
}

// convertError converts standard library DNS errors to package errors.
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return ErrDNSNotFound
		}
		if dnsErr.IsTimeout {
			return fmt.Errorf("%w: %v", ErrDNSTimeout, dnsErr)
		}
		if dnsErr.IsTemporary {
			return fmt.Errorf("%w: %v", ErrDNSServFail, dnsErr)
		}
	}

	return fmt.Errorf("dns lookup failed: %w", err)
}
