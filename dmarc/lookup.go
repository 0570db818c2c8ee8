package dmarc

import (
	"context"
	"strings"

	"github.com/synqronlabs/dmarcpolicy/dns"
	"github.com/synqronlabs/dmarcpolicy/publicsuffix"
)

// Discovery is the outcome of DMARC policy discovery.
type Discovery struct {
	// Domain is the normalized domain that was asked about.
	Domain string

	// RecordDomain is where the record was found, empty if Record is nil.
	RecordDomain string

	// Record is the parsed record, nil if no record was found.
	Record *Record

	// Raw is the TXT record text Record was parsed from.
	Raw string
}

// Lookup performs DMARC policy discovery for domain.
//
// It first queries "_dmarc.<domain>". If no DMARC record is published there,
// it falls back once to the organizational domain, as determined with rules,
// and queries "_dmarc.<orgdomain>". TXT records that do not start with the
// DMARC version signature are ignored.
//
// Finding no record anywhere is not an error: the returned Discovery has a nil
// Record. Errors are *MultiplePoliciesError, *RecordError or *LookupError; a
// lookup failure during the fallback is returned too, since the absence of a
// record at domain alone does not mean there is no policy.
func Lookup(ctx context.Context, resolver dns.Resolver, rules *publicsuffix.RuleSet, domain string) (Discovery, error) {
	domain = normalizeDomain(domain)
	d := Discovery{Domain: domain}

	record, raw, err := lookupRecord(ctx, resolver, domain)
	if err != nil || record != nil {
		if record != nil {
			d.RecordDomain, d.Record, d.Raw = domain, record, raw
		}
		return d, err
	}

	orgDomain, ok := rules.OrganizationalDomain(domain)
	if !ok || orgDomain == domain {
		return d, nil
	}

	record, raw, err = lookupRecord(ctx, resolver, orgDomain)
	if record != nil {
		d.RecordDomain, d.Record, d.Raw = orgDomain, record, raw
	}
	return d, err
}

// Resolve returns the policy that applies to mail from domain.
//
// The record's subdomain policy applies when the record was found at the
// organizational domain and sets a valid "sp"; otherwise its "p" applies. With
// no record, or no valid policy in it, the verdict is PolicyNone.
func Resolve(ctx context.Context, resolver dns.Resolver, rules *publicsuffix.RuleSet, domain string) (ResolvedPolicy, error) {
	d, err := Lookup(ctx, resolver, rules, domain)
	if err != nil {
		return ResolvedPolicy{Domain: d.Domain, Policy: PolicyNone}, err
	}

	res := ResolvedPolicy{
		Domain: d.Domain,
		Policy: PolicyNone,
	}
	if d.Record == nil {
		return res, nil
	}

	res.Found = true
	res.RecordDomain = d.RecordDomain
	res.Record = d.Record
	res.Policy = d.Record.EffectivePolicy(d.RecordDomain != d.Domain)
	return res, nil
}

// lookupRecord fetches and parses the DMARC record published for domain.
// A nil record with a nil error means none is published.
func lookupRecord(ctx context.Context, resolver dns.Resolver, domain string) (*Record, string, error) {
	name := "_dmarc." + domain + "."

	result, err := resolver.LookupTXT(ctx, name)
	if err != nil {
		if dns.IsNotFound(err) {
			return nil, "", nil
		}
		return nil, "", &LookupError{Name: name, Err: err}
	}

	var txts []string
	for _, txt := range result.Records {
		if IsDMARCRecord(txt) {
			txts = append(txts, txt)
		}
	}

	switch len(txts) {
	case 0:
		return nil, "", nil
	case 1:
	default:
		return nil, "", &MultiplePoliciesError{Domain: domain, Records: txts}
	}

	record, err := ParseRecord(txts[0])
	if err != nil {
		return nil, "", &RecordError{Domain: domain, Record: txts[0], Err: err}
	}
	return record, txts[0], nil
}

// normalizeDomain lower-cases domain and removes one trailing dot.
func normalizeDomain(domain string) string {
	return strings.TrimSuffix(strings.ToLower(domain), ".")
}
