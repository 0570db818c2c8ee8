// Package publicsuffix computes organizational domains from a Public Suffix
// List.
//
// A RuleSet is parsed once from the list's flat-file format and is immutable
// afterwards, so one RuleSet may serve any number of concurrent lookups. To
// pick up a newer list, parse a new RuleSet and swap it in, for instance
// through a Store.
//
//	rules, err := publicsuffix.ParseString("com\n*.ck\n!www.ck\n")
//	org, ok := rules.OrganizationalDomain("mail.example.com") // "example.com", true
package publicsuffix

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrSuffixData is matched by every error describing an unusable rule list.
var ErrSuffixData = errors.New("publicsuffix: unusable rule list")

// SuffixDataError describes a malformed or unavailable rule list.
type SuffixDataError struct {
	Line   int    // 1-based line number, 0 if not tied to a line
	Token  string // offending rule token, if any
	Reason string
	Err    error // underlying cause, if any
}

func (e *SuffixDataError) Error() string {
	var b strings.Builder
	b.WriteString("publicsuffix: ")
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	if e.Token != "" {
		fmt.Fprintf(&b, "rule %q: ", e.Token)
	}
	b.WriteString(e.Reason)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *SuffixDataError) Is(target error) bool { return target == ErrSuffixData }

func (e *SuffixDataError) Unwrap() error { return e.Err }

// RuleSet is an immutable set of public suffix rules and exceptions.
//
// A nil *RuleSet is valid and empty: only the implicit "*" rule applies.
type RuleSet struct {
	rules      map[string]struct{}
	exceptions map[string]struct{}
}

// Parse reads a rule list in the Public Suffix List format.
//
// Only the first whitespace-delimited token of each line is significant. A
// line whose first token is "//" is a comment. A token starting with "!" is an
// exception; any other token is a rule, which may use "*" as its leftmost
// label only.
func Parse(r io.Reader) (*RuleSet, error) {
	rs := &RuleSet{
		rules:      make(map[string]struct{}),
		exceptions: make(map[string]struct{}),
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0] == "//" {
			continue
		}
		tok := fields[0]

		if rest, ok := strings.CutPrefix(tok, "!"); ok {
			if err := checkRule(rest, false); err != "" {
				return nil, &SuffixDataError{Line: line, Token: tok, Reason: err}
			}
			rs.exceptions[rest] = struct{}{}
			continue
		}
		if err := checkRule(tok, true); err != "" {
			return nil, &SuffixDataError{Line: line, Token: tok, Reason: err}
		}
		rs.rules[tok] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, &SuffixDataError{Line: line, Reason: "reading rule list", Err: err}
	}
	if len(rs.rules) == 0 {
		return nil, &SuffixDataError{Reason: "no rules"}
	}
	return rs, nil
}

// ParseString is Parse on an in-memory list.
func ParseString(s string) (*RuleSet, error) {
	return Parse(strings.NewReader(s))
}

// checkRule returns a non-empty reason if tok is not a well-formed rule.
func checkRule(tok string, wildcardOK bool) string {
	if tok == "" {
		return "empty rule"
	}
	for i, label := range strings.Split(tok, ".") {
		switch {
		case label == "":
			return "empty label"
		case !strings.Contains(label, "*"):
		case !wildcardOK:
			return "wildcard in exception"
		case label != "*" || i > 0:
			return "wildcard allowed only as the leftmost label"
		}
	}
	return ""
}

// Len returns the number of rules, not counting exceptions.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// IsRule reports whether s is listed as a rule, verbatim.
func (rs *RuleSet) IsRule(s string) bool {
	if rs == nil {
		return false
	}
	_, ok := rs.rules[s]
	return ok
}

// IsException reports whether s is listed as an exception (without the "!").
func (rs *RuleSet) IsException(s string) bool {
	if rs == nil {
		return false
	}
	_, ok := rs.exceptions[s]
	return ok
}
