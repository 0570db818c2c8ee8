package dmarc

import (
	"math/bits"
	"strconv"
	"strings"
	"unicode"
)

// versionTag must be the first component of every record.
const versionTag = "v"

// tagParser validates a tag value and stores it in the record.
type tagParser func(r *Record, value string) error

// tagParsers maps each recognized tag to its parser.
var tagParsers = map[string]tagParser{
	versionTag: parseVersion,
	"p":        parsePolicy("p", func(r *Record) *Policy { return &r.Policy }),
	"sp":       parsePolicy("sp", func(r *Record) *Policy { return &r.SubdomainPolicy }),
	"rua":      parseURIs("rua", func(r *Record) *[]URI { return &r.AggregateReportAddresses }),
	"ruf":      parseURIs("ruf", func(r *Record) *[]URI { return &r.FailureReportAddresses }),
	"adkim":    parseAlign("adkim", func(r *Record) *Align { return &r.ADKIM }),
	"aspf":     parseAlign("aspf", func(r *Record) *Align { return &r.ASPF }),
	"ri":       parseInterval,
	"fo":       parseFailureOptions,
	"rf":       parseReportFormats,
	"pct":      parsePercentage,
}

// ParseRecord parses a DMARC TXT record.
//
// The grammar is strict: every component must be "tag=value", "v=DMARC1" must
// come first, no tag may repeat and unknown tags are rejected. A trailing ";"
// is allowed. Errors are *RecordSyntaxError; no partially parsed record is
// ever returned.
func ParseRecord(s string) (*Record, error) {
	components := strings.Split(strings.TrimSpace(s), ";")
	if components[len(components)-1] == "" {
		components = components[:len(components)-1]
	}
	if len(components) == 0 {
		return nil, &RecordSyntaxError{Reason: "missing version"}
	}

	r := &Record{}
	seen := make(map[string]bool, len(components))

	for i, c := range components {
		key, value, ok := strings.Cut(c, "=")
		if !ok {
			return nil, &RecordSyntaxError{Value: c, Reason: "missing separator"}
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if seen[key] {
			return nil, &RecordSyntaxError{Tag: key, Value: value, Reason: "duplicate key"}
		}
		seen[key] = true

		if (i == 0) != (key == versionTag) {
			return nil, &RecordSyntaxError{Tag: key, Value: value, Reason: "version must be first"}
		}

		parse, ok := tagParsers[key]
		if !ok {
			return nil, &RecordSyntaxError{Tag: key, Value: value, Reason: "unrecognized component"}
		}
		if err := parse(r, value); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// IsDMARCRecord reports whether a TXT record claims to be a DMARC record:
// optional whitespace, "v", "=", "DMARC1" and ";", with optional whitespace
// around "=" and before ";". Only such records take part in policy discovery.
func IsDMARCRecord(s string) bool {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	rest, ok := strings.CutPrefix(s, "v")
	if !ok {
		return false
	}
	rest, ok = strings.CutPrefix(strings.TrimLeftFunc(rest, unicode.IsSpace), "=")
	if !ok {
		return false
	}
	rest, ok = strings.CutPrefix(strings.TrimLeftFunc(rest, unicode.IsSpace), "DMARC1")
	if !ok {
		return false
	}
	return strings.HasPrefix(strings.TrimLeftFunc(rest, unicode.IsSpace), ";")
}

func parseVersion(r *Record, value string) error {
	// Case-sensitive, per the RFC 7489 ABNF (%x44 %x4d %x41 %x52 %x43 %x31).
	if value != "DMARC1" {
		return &RecordSyntaxError{Tag: versionTag, Value: value, Reason: "invalid version"}
	}
	r.Version = value
	return nil
}

func parsePolicy(tag string, field func(*Record) *Policy) tagParser {
	return func(r *Record, value string) error {
		p := Policy(value)
		if !p.Valid() {
			return &RecordSyntaxError{Tag: tag, Value: value, Reason: "invalid request"}
		}
		*field(r) = p
		return nil
	}
}

func parseAlign(tag string, field func(*Record) *Align) tagParser {
	return func(r *Record, value string) error {
		switch a := Align(value); a {
		case AlignRelaxed, AlignStrict:
			*field(r) = a
			return nil
		}
		return &RecordSyntaxError{Tag: tag, Value: value, Reason: "invalid alignment"}
	}
}

// parseURIs parses a ":"-separated list of URIs, each with an optional
// "!size" limit.
func parseURIs(tag string, field func(*Record) *[]URI) tagParser {
	return func(r *Record, value string) error {
		var uris []URI
		for _, v := range strings.Split(value, ":") {
			addr, limit, sized := strings.Cut(v, "!")
			u := URI{Address: addr}
			if sized {
				size, unit, ok := parseSize(limit)
				if !ok {
					return &RecordSyntaxError{Tag: tag, Value: value, Reason: "invalid size limit"}
				}
				u.MaxSize, u.HasMaxSize, u.Unit = size, true, unit
			}
			uris = append(uris, u)
		}
		*field(r) = uris
		return nil
	}
}

// unitShift returns the power of two a size unit letter stands for.
func unitShift(unit string) (uint, bool) {
	switch unit {
	case "":
		return 0, true
	case "k":
		return 10, true
	case "m":
		return 20, true
	case "g":
		return 30, true
	case "t":
		return 40, true
	}
	return 0, false
}

// parseSize parses digits with an optional k/m/g/t unit into bytes. The unit
// letter is returned lower-cased. Empty input and overflow are rejected.
func parseSize(s string) (size uint64, unit string, ok bool) {
	if s == "" {
		return 0, "", false
	}
	digits := s
	switch c := s[len(s)-1]; c {
	case 'k', 'K', 'm', 'M', 'g', 'G', 't', 'T':
		digits, unit = s[:len(s)-1], strings.ToLower(string(c))
	}
	if !allDigits(digits) {
		return 0, "", false
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, "", false
	}
	shift, _ := unitShift(unit)
	hi, lo := bits.Mul64(n, 1<<shift)
	if hi != 0 {
		return 0, "", false
	}
	return lo, unit, true
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseInterval(r *Record, value string) error {
	if !allDigits(value) {
		return &RecordSyntaxError{Tag: "ri", Value: value, Reason: "invalid interval"}
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return &RecordSyntaxError{Tag: "ri", Value: value, Reason: "invalid interval"}
	}
	r.AggregateReportingInterval = &n
	return nil
}

func parseFailureOptions(r *Record, value string) error {
	stripped := strings.Join(strings.Fields(value), "")
	opts := strings.Split(stripped, ":")
	for _, o := range opts {
		switch o {
		case "0", "1", "d", "s":
		default:
			return &RecordSyntaxError{Tag: "fo", Value: value, Reason: "invalid failure reporting options"}
		}
	}
	r.FailureReportingOptions = opts
	return nil
}

func parseReportFormats(r *Record, value string) error {
	formats := strings.Split(value, ":")
	for i, f := range formats {
		formats[i] = strings.TrimSpace(f)
	}
	r.ReportingFormat = formats
	return nil
}

func parsePercentage(r *Record, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return &RecordSyntaxError{Tag: "pct", Value: value, Reason: "invalid percentage"}
	}
	r.Percentage = &n
	return nil
}
