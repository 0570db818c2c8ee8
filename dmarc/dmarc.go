package dmarc

import (
	"errors"
	"fmt"
)

// DMARC discovery errors. The typed errors below match these with errors.Is.
var (
	// ErrSyntax indicates a DMARC record has invalid syntax.
	ErrSyntax = errors.New("dmarc: malformed DMARC DNS record")

	// ErrMultipleRecords indicates multiple DMARC DNS records were found at
	// one name.
	ErrMultipleRecords = errors.New("dmarc: multiple DMARC DNS records found")

	// ErrDNS indicates a DNS lookup error occurred.
	ErrDNS = errors.New("dmarc: DNS lookup error")
)

// RecordSyntaxError describes why a record could not be parsed.
type RecordSyntaxError struct {
	// Tag is the offending tag, empty if the error is not tied to one.
	Tag string

	// Value is the raw value of Tag, or the raw component when Tag is empty.
	Value string

	Reason string
}

func (e *RecordSyntaxError) Error() string {
	switch {
	case e.Tag != "":
		return fmt.Sprintf("dmarc: %s: %s=%q", e.Reason, e.Tag, e.Value)
	case e.Value != "":
		return fmt.Sprintf("dmarc: %s: %q", e.Reason, e.Value)
	}
	return "dmarc: " + e.Reason
}

func (e *RecordSyntaxError) Is(target error) bool { return target == ErrSyntax }

// RecordError is returned when the single DMARC record found for a domain
// does not parse.
type RecordError struct {
	Domain string // domain the record was published for
	Record string // raw TXT record
	Err    error  // *RecordSyntaxError
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("dmarc: could not parse record %q for %s: %v", e.Record, e.Domain, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// MultiplePoliciesError is returned when more than one DMARC record is
// published for a domain. The publisher must fix this; no record is chosen.
type MultiplePoliciesError struct {
	Domain  string
	Records []string
}

func (e *MultiplePoliciesError) Error() string {
	return fmt.Sprintf("dmarc: more than one DMARC policy published for %s", e.Domain)
}

func (e *MultiplePoliciesError) Is(target error) bool { return target == ErrMultipleRecords }

// LookupError is returned when the TXT lookup for a DMARC record failed.
type LookupError struct {
	Name string // queried name, "_dmarc.<domain>"
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("dmarc: looking up %s: %v", e.Name, e.Err)
}

func (e *LookupError) Is(target error) bool { return target == ErrDNS }

func (e *LookupError) Unwrap() error { return e.Err }

// Policy determines how receivers should handle messages that fail DMARC.
type Policy string

const (
	// PolicyEmpty means the tag was absent.
	PolicyEmpty Policy = ""

	// PolicyNone requests no specific action be taken for failing messages.
	PolicyNone Policy = "none"

	// PolicyQuarantine requests that failing messages be treated as suspicious.
	PolicyQuarantine Policy = "quarantine"

	// PolicyReject requests that failing messages be rejected.
	PolicyReject Policy = "reject"
)

// Valid reports whether p is one of none, quarantine or reject.
func (p Policy) Valid() bool {
	switch p {
	case PolicyNone, PolicyQuarantine, PolicyReject:
		return true
	}
	return false
}

// Align specifies the alignment mode for identifier comparison.
type Align string

const (
	// AlignRelaxed requires the organizational domains to match.
	AlignRelaxed Align = "r"

	// AlignStrict requires exact domain matches.
	AlignStrict Align = "s"
)

// ResolvedPolicy is the outcome of Resolve.
type ResolvedPolicy struct {
	// Domain is the normalized domain that was asked about.
	Domain string

	// RecordDomain is where the DMARC record was found: Domain itself or its
	// organizational domain. Empty if Found is false.
	RecordDomain string

	// Found reports whether a DMARC record was found.
	Found bool

	// Policy is the verdict. PolicyNone when no record was found.
	Policy Policy

	// Record is the parsed record, nil if none was found.
	Record *Record
}

// Inherited reports whether the policy came from the organizational domain.
func (r ResolvedPolicy) Inherited() bool {
	return r.Found && r.RecordDomain != r.Domain
}
