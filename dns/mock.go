package dns

import (
	"context"
	"slices"
	"sync"
)

// MockResolver is a Resolver used for testing.
// Set DNS records in the fields, which map FQDNs (with trailing dot) to values.
type MockResolver struct {
	TXT map[string][]string

	// Fail contains records that will return a temporary error (SERVFAIL).
	// Format: "type name", e.g. "txt example.com." where type is lowercase.
	Fail []string

	// AllAuthentic sets the default value for Authentic in responses.
	AllAuthentic bool

	// Queries, if non-nil, records every name looked up, in order.
	Queries *QueryLog
}

var _ Resolver = MockResolver{}

// QueryLog collects the names a MockResolver was asked for.
type QueryLog struct {
	mu    sync.Mutex
	names []string
}

// Names returns the logged names in query order.
func (l *QueryLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.names)
}

func (l *QueryLog) add(name string) {
	l.mu.Lock()
	l.names = append(l.names, name)
	l.mu.Unlock()
}

// mockReq represents a mock DNS request.
type mockReq struct {
	Type string // E.g. "txt"
	Name string // FQDN with trailing dot
}

func (mr mockReq) String() string {
	return mr.Type + " " + mr.Name
}

// ensureFQDN ensures the name ends with a dot.
func ensureFQDN(name string) string {
	if len(name) == 0 || name[len(name)-1] != '.' {
		return name + "."
	}
	return name
}

// LookupTXT returns TXT records for the given name.
func (r MockResolver) LookupTXT(ctx context.Context, name string) (Result[string], error) {
	fqdn := ensureFQDN(name)
	mr := mockReq{"txt", fqdn}
	result := Result[string]{Authentic: r.AllAuthentic}

	if r.Queries != nil {
		r.Queries.add(fqdn)
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if slices.Contains(r.Fail, mr.String()) {
		return result, ErrDNSServFail
	}

	records, ok := r.TXT[fqdn]
	if !ok || len(records) == 0 {
		return result, ErrDNSNotFound
	}

	result.Records = records
	return result, nil
}
