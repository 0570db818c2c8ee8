package dmarc

import (
	"strconv"
	"strings"
)

// URI is a destination address for DMARC aggregate or failure reports.
type URI struct {
	// Address is the URI without its size limit.
	Address string

	// MaxSize is the declared report size limit in bytes, with Unit already
	// applied. Only meaningful if HasMaxSize is set.
	MaxSize uint64

	// HasMaxSize reports whether a "!size" limit was declared.
	HasMaxSize bool

	// Unit is the declared size unit: "" (bytes), "k", "m", "g", or "t".
	// Units are powers of 2 (k = 2^10, etc.).
	Unit string
}

// String returns the URI formatted for a DMARC record.
func (u URI) String() string {
	if !u.HasMaxSize {
		return u.Address
	}
	shift, _ := unitShift(u.Unit)
	return u.Address + "!" + strconv.FormatUint(u.MaxSize>>shift, 10) + u.Unit
}

// Record is a parsed DMARC DNS TXT record.
//
// Optional tags that were absent are left at their zero value; no RFC
// defaults are filled in.
//
// Example record:
//
//	v=DMARC1; p=reject; rua=mailto:dmarc@example.com
type Record struct {
	// Version is always "DMARC1".
	Version string

	// Policy is the requested policy for messages that fail DMARC (p tag).
	Policy Policy

	// SubdomainPolicy is the policy for subdomains (sp tag).
	SubdomainPolicy Policy

	// AggregateReportAddresses are URIs for aggregate reports (rua tag).
	AggregateReportAddresses []URI

	// FailureReportAddresses are URIs for failure reports (ruf tag).
	FailureReportAddresses []URI

	// ADKIM is the DKIM alignment mode (adkim tag).
	ADKIM Align

	// ASPF is the SPF alignment mode (aspf tag).
	ASPF Align

	// AggregateReportingInterval is the reporting interval in seconds (ri tag).
	AggregateReportingInterval *uint64

	// FailureReportingOptions control when failure reports are sent (fo tag).
	// "0" = if all auth fail
	// "1" = if any auth fail
	// "d" = on DKIM failure
	// "s" = on SPF failure
	FailureReportingOptions []string

	// ReportingFormat lists the failure report formats (rf tag).
	ReportingFormat []string

	// Percentage of messages the policy applies to (pct tag).
	Percentage *int
}

// String returns the record in tag=value form. Parsing the result yields an
// equal Record.
func (r Record) String() string {
	var b strings.Builder
	b.WriteString("v=")
	b.WriteString(r.Version)

	write := func(do bool, tag, value string) {
		if do {
			b.WriteString("; ")
			b.WriteString(tag)
			b.WriteString("=")
			b.WriteString(value)
		}
	}
	uris := func(l []URI) string {
		s := make([]string, len(l))
		for i, u := range l {
			s[i] = u.String()
		}
		return strings.Join(s, ":")
	}

	write(r.Policy != PolicyEmpty, "p", string(r.Policy))
	write(r.SubdomainPolicy != PolicyEmpty, "sp", string(r.SubdomainPolicy))
	write(len(r.AggregateReportAddresses) > 0, "rua", uris(r.AggregateReportAddresses))
	write(len(r.FailureReportAddresses) > 0, "ruf", uris(r.FailureReportAddresses))
	write(r.ADKIM != "", "adkim", string(r.ADKIM))
	write(r.ASPF != "", "aspf", string(r.ASPF))
	if r.AggregateReportingInterval != nil {
		write(true, "ri", strconv.FormatUint(*r.AggregateReportingInterval, 10))
	}
	write(len(r.FailureReportingOptions) > 0, "fo", strings.Join(r.FailureReportingOptions, ":"))
	write(len(r.ReportingFormat) > 0, "rf", strings.Join(r.ReportingFormat, ":"))
	if r.Percentage != nil {
		write(true, "pct", strconv.Itoa(*r.Percentage))
	}

	return b.String()
}

// EffectivePolicy returns the policy that applies to a domain governed by this
// record. inherited is true when the record was found at the domain's
// organizational domain rather than at the domain itself; a valid
// SubdomainPolicy then takes precedence. Without a valid policy the result is
// PolicyNone.
func (r *Record) EffectivePolicy(inherited bool) Policy {
	if inherited && r.SubdomainPolicy.Valid() {
		return r.SubdomainPolicy
	}
	if r.Policy.Valid() {
		return r.Policy
	}
	return PolicyNone
}
