// Package dmarc resolves the policy a receiver should apply to mail from a
// domain, per the policy discovery rules of RFC 7489.
//
// A domain publishes its policy as a TXT record under "_dmarc.<domain>". When
// a domain has no record of its own, the record of its organizational domain
// (determined with a Public Suffix List) governs it, and the record's
// subdomain policy ("sp") takes precedence over its main policy ("p").
//
// # Basic Usage
//
//	rules, err := publicsuffix.ParseString(pslText)
//	if err != nil {
//	    // Handle error
//	}
//	resolver := dns.NewResolver(dns.ResolverConfig{})
//
//	res, err := dmarc.Resolve(ctx, resolver, rules, "mail.example.com")
//	if err != nil {
//	    // The domain's policy could not be determined.
//	}
//	fmt.Println(res.Policy) // none, quarantine or reject
//
// Parsing a record:
//
//	record, err := dmarc.ParseRecord("v=DMARC1; p=reject; rua=mailto:dmarc@example.com")
//
// # Errors
//
// Errors can be classified with errors.Is against ErrSyntax (malformed
// record), ErrMultipleRecords (more than one policy published at one name)
// and ErrDNS (the TXT lookup itself failed). None of these are turned into a
// "none" verdict by this package; that decision is left to the caller.
//
// # References
//
//   - RFC 7489: Domain-based Message Authentication, Reporting, and Conformance (DMARC)
//   - Public Suffix List: https://publicsuffix.org/
package dmarc
