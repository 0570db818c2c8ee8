// Package dns provides the TXT record lookups used for DMARC policy
// discovery.
//
// Two transports are available: DNSResolver, built on github.com/miekg/dns
// with optional DNSSEC awareness, and StdResolver, built on net.Resolver.
// CachingResolver wraps either with an age-based cache that can be persisted
// to disk between runs. MockResolver serves canned records in tests.
package dns

import (
	"context"
	"errors"
)

// DNS lookup errors.
var (
	// ErrDNSNotFound indicates the name does not exist or has no records of
	// the requested type.
	ErrDNSNotFound = errors.New("dns: no such record")

	// ErrDNSTimeout indicates the query timed out.
	ErrDNSTimeout = errors.New("dns: timeout")

	// ErrDNSServFail indicates the server returned SERVFAIL.
	ErrDNSServFail = errors.New("dns: server failure")

	// ErrDNSRefused indicates the server refused the query.
	ErrDNSRefused = errors.New("dns: query refused")

	// ErrDNSBogus indicates DNSSEC validation failed upstream.
	ErrDNSBogus = errors.New("dns: DNSSEC validation failed")
)

// Result holds the records of a lookup.
type Result[T any] struct {
	// Records are the answers, in the order the server returned them.
	Records []T

	// Authentic indicates the response was DNSSEC-validated by the upstream
	// resolver.
	Authentic bool
}

// Resolver looks up TXT records.
//
// A name without TXT records must yield ErrDNSNotFound, not an empty
// successful result; callers treat the two the same, but other errors are
// reported as transport failures.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) (Result[string], error)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrDNSNotFound)
}

// IsTimeout reports whether err is a query timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrDNSTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsServFail reports whether err is a server failure.
func IsServFail(err error) bool {
	return errors.Is(err, ErrDNSServFail)
}

// IsTemporary reports whether a later attempt might succeed.
func IsTemporary(err error) bool {
	return IsTimeout(err) || IsServFail(err) || errors.Is(err, ErrDNSRefused)
}
