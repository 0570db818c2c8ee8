package publicsuffix

import (
	"errors"
	"os"
	"strings"
	"testing"
)

func loadTestRules(t *testing.T) *RuleSet {
	t.Helper()
	f, err := os.Open("testdata/test_psl.dat")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rs, err := Parse(f)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return rs
}

// TestOrganizationalDomain runs the reference vectors of the upstream PSL
// test suite (tests/test_psl.txt). An empty want means no organizational
// domain.
func TestOrganizationalDomain(t *testing.T) {
	rs := loadTestRules(t)

	tests := []struct {
		domain string
		want   string
	}{
		// null input.
		{"", ""},
		// Mixed case.
		{"COM", ""},
		{"example.COM", "example.com"},
		{"WwW.example.COM", "example.com"},
		// Leading dot.
		{".com", ""},
		{".example", ""},
		{".example.com", ""},
		{".example.example", ""},
		// Trailing dot and inner empty label.
		{"example.com.", ""},
		{"www..example.com", ""},
		// Unlisted TLD.
		{"example", ""},
		{"example.example", "example.example"},
		{"b.example.example", "example.example"},
		{"a.b.example.example", "example.example"},
		// TLD with only 1 rule.
		{"biz", ""},
		{"domain.biz", "domain.biz"},
		{"b.domain.biz", "domain.biz"},
		{"a.b.domain.biz", "domain.biz"},
		// TLD with some 2-level rules.
		{"com", ""},
		{"example.com", "example.com"},
		{"b.example.com", "example.com"},
		{"a.b.example.com", "example.com"},
		{"www.example.com", "example.com"},
		{"uk.com", ""},
		{"example.uk.com", "example.uk.com"},
		{"b.example.uk.com", "example.uk.com"},
		{"a.b.example.uk.com", "example.uk.com"},
		{"test.ac", "test.ac"},
		// TLD with only 1 (wildcard) rule.
		{"mm", ""},
		{"c.mm", ""},
		{"b.c.mm", "b.c.mm"},
		{"a.b.c.mm", "b.c.mm"},
		// More complex TLD.
		{"jp", ""},
		{"test.jp", "test.jp"},
		{"www.test.jp", "test.jp"},
		{"ac.jp", ""},
		{"test.ac.jp", "test.ac.jp"},
		{"www.test.ac.jp", "test.ac.jp"},
		{"kyoto.jp", ""},
		{"test.kyoto.jp", "test.kyoto.jp"},
		{"ide.kyoto.jp", ""},
		{"b.ide.kyoto.jp", "b.ide.kyoto.jp"},
		{"a.b.ide.kyoto.jp", "b.ide.kyoto.jp"},
		{"c.kobe.jp", ""},
		{"b.c.kobe.jp", "b.c.kobe.jp"},
		{"a.b.c.kobe.jp", "b.c.kobe.jp"},
		{"city.kobe.jp", "city.kobe.jp"},
		{"www.city.kobe.jp", "city.kobe.jp"},
		// TLD with a wildcard rule and exceptions.
		{"ck", ""},
		{"test.ck", ""},
		{"b.test.ck", "b.test.ck"},
		{"a.b.test.ck", "b.test.ck"},
		{"www.ck", "www.ck"},
		{"www.www.ck", "www.ck"},
		// US K12.
		{"us", ""},
		{"test.us", "test.us"},
		{"www.test.us", "test.us"},
		{"ak.us", ""},
		{"test.ak.us", "test.ak.us"},
		{"www.test.ak.us", "test.ak.us"},
		{"k12.ak.us", ""},
		{"test.k12.ak.us", "test.k12.ak.us"},
		{"www.test.k12.ak.us", "test.k12.ak.us"},
		// IDN labels.
		{"食狮.com.cn", "食狮.com.cn"},
		{"食狮.公司.cn", "食狮.公司.cn"},
		{"www.食狮.公司.cn", "食狮.公司.cn"},
		{"shishi.公司.cn", "shishi.公司.cn"},
		{"公司.cn", ""},
		{"食狮.中国", "食狮.中国"},
		{"www.食狮.中国", "食狮.中国"},
		{"shishi.中国", "shishi.中国"},
		{"中国", ""},
		// Same as above, but punycoded.
		{"xn--85x722f.com.cn", "xn--85x722f.com.cn"},
		{"xn--85x722f.xn--55qx5d.cn", "xn--85x722f.xn--55qx5d.cn"},
		{"www.xn--85x722f.xn--55qx5d.cn", "xn--85x722f.xn--55qx5d.cn"},
		{"shishi.xn--55qx5d.cn", "shishi.xn--55qx5d.cn"},
		{"xn--55qx5d.cn", ""},
		{"xn--85x722f.xn--fiqs8s", "xn--85x722f.xn--fiqs8s"},
		{"www.xn--85x722f.xn--fiqs8s", "xn--85x722f.xn--fiqs8s"},
		{"shishi.xn--fiqs8s", "shishi.xn--fiqs8s"},
		{"xn--fiqs8s", ""},
		// Upper-case punycode is lower-cased in the result.
		{"WWW.XN--85X722F.XN--FIQS8S", "xn--85x722f.xn--fiqs8s"},
		// A label that is not valid punycode is matched verbatim.
		{"a.xn--.com", "xn--.com"},
	}

	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			got, ok := rs.OrganizationalDomain(tt.domain)
			if ok != (tt.want != "") || got != tt.want {
				t.Errorf("OrganizationalDomain(%q) = %q, %v; want %q", tt.domain, got, ok, tt.want)
			}
		})
	}
}

func TestOrganizationalDomainEncodingsAgree(t *testing.T) {
	rs := loadTestRules(t)

	pairs := [][2]string{
		{"www.食狮.公司.cn", "www.xn--85x722f.xn--55qx5d.cn"},
		{"mail.食狮.中国", "mail.xn--85x722f.xn--fiqs8s"},
	}
	for _, p := range pairs {
		u, uok := rs.OrganizationalDomain(p[0])
		a, aok := rs.OrganizationalDomain(p[1])
		if !uok || !aok {
			t.Fatalf("no organizational domain for %q (%v) or %q (%v)", p[0], uok, p[1], aok)
		}
		if strings.Count(u, ".") != strings.Count(a, ".") {
			t.Errorf("%q -> %q and %q -> %q disagree", p[0], u, p[1], a)
		}
		if decodeLabel(strings.SplitN(a, ".", 2)[0]) != strings.SplitN(u, ".", 2)[0] {
			t.Errorf("%q and %q do not name the same domain", u, a)
		}
	}
}

func TestParse(t *testing.T) {
	rs, err := ParseString(`
// comment line
com   trailing commentary
*.ck
!www.ck

  co.uk
`)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}

	if rs.Len() != 3 {
		t.Errorf("Len() = %d, want 3", rs.Len())
	}
	for _, r := range []string{"com", "*.ck", "co.uk"} {
		if !rs.IsRule(r) {
			t.Errorf("missing rule %q", r)
		}
	}
	if !rs.IsException("www.ck") {
		t.Error("missing exception www.ck")
	}
	if rs.IsRule("www.ck") || rs.IsRule("!www.ck") || rs.IsRule("//") || rs.IsRule("trailing") {
		t.Error("unexpected rule")
	}
}

func TestParseBad(t *testing.T) {
	bad := []struct {
		name  string
		input string
		line  int
	}{
		{"empty list", "", 0},
		{"only comments", "// a\n// b\n", 0},
		{"wildcard not leftmost", "com\nfoo.*.com\n", 2},
		{"partial wildcard label", "*a.com\n", 1},
		{"wildcard in exception", "*.ck\n!*.www.ck\n", 2},
		{"empty exception", "com\n!\n", 2},
		{"empty label", "com\nco..uk\n", 2},
		{"leading dot", ".com\n", 1},
	}

	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input)
			if err == nil {
				t.Fatalf("expected error for %q", tt.input)
			}
			if !errors.Is(err, ErrSuffixData) {
				t.Errorf("error %v does not match ErrSuffixData", err)
			}
			var sde *SuffixDataError
			if !errors.As(err, &sde) {
				t.Fatalf("error %T is not *SuffixDataError", err)
			}
			if sde.Line != tt.line {
				t.Errorf("line = %d, want %d", sde.Line, tt.line)
			}
		})
	}
}
