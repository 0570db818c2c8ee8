package publicsuffix

import (
	"strings"

	"golang.org/x/net/idna"
)

const acePrefix = "xn--"

// OrganizationalDomain returns the registrable domain for domain: its public
// suffix plus one more label.
//
// It returns false if domain has an empty label (including a leading or
// trailing dot, or empty input) or is itself a public suffix. Matching is done
// on lower-cased labels with punycode labels decoded, but the result is built
// from the lower-cased input labels, so punycode input yields punycode output.
//
// A name whose top-level label is not listed is treated as if that label were
// a rule, per the PSL's implicit "*" rule.
func (rs *RuleSet) OrganizationalDomain(domain string) (string, bool) {
	labels := strings.Split(strings.ToLower(domain), ".")
	for _, l := range labels {
		if l == "" {
			return "", false
		}
	}

	decoded := make([]string, len(labels))
	for i, l := range labels {
		decoded[i] = decodeLabel(l)
	}

	last := len(labels) - 1
	for i := range labels {
		suffix := strings.Join(decoded[i:], ".")
		if rs.IsException(suffix) {
			return strings.Join(labels[i:], "."), true
		}

		wild := "*"
		if i < last {
			wild += "." + strings.Join(decoded[i+1:], ".")
		}
		if i == last || rs.IsRule(suffix) || rs.IsRule(wild) {
			if i == 0 {
				return "", false
			}
			return strings.Join(labels[i-1:], "."), true
		}
	}

	// Not reached: the last label always matches.
	return "", false
}

// decodeLabel returns the Unicode form of an ACE label, or the label itself if
// it is not an ACE label or does not decode.
func decodeLabel(label string) string {
	if !strings.HasPrefix(label, acePrefix) {
		return label
	}
	u, err := idna.Punycode.ToUnicode(label)
	if err != nil {
		return label
	}
	return u
}
