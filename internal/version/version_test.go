package version

import "testing"

func TestParseStripsPrefix(t *testing.T) {
	a := Parse("v1.2.3")
	b := Parse("1.2.3")
	if !a.Parsed() || !b.Parsed() {
		t.Fatalf("expected both to parse: %+v %+v", a, b)
	}
	if Compare(a, b) != Equal {
		t.Fatalf("parse not idempotent after prefix stripping: %+v vs %+v", a, b)
	}
}

func TestParseReleasePrefix(t *testing.T) {
	v := Parse("release-2.3.4")
	if !v.Parsed() {
		t.Fatalf("expected release- prefix to strip and parse: %+v", v)
	}
}

func TestParseUnparseable(t *testing.T) {
	v := Parse("latest")
	if v.Parsed() {
		t.Fatalf("expected latest to be unparseable, got %+v", v)
	}
	if v.Raw != "latest" {
		t.Fatalf("expected raw to be preserved, got %q", v.Raw)
	}
}

func TestComparePrecedence(t *testing.T) {
	cases := []struct {
		a, b string
		want Ordering
	}{
		{"1.2.3", "1.2.4", Less},
		{"1.2.4", "1.2.3", Greater},
		{"1.2.3", "1.2.3", Equal},
		{"1.0.0-rc1", "1.0.0", Less},
		{"2.0.0", "1.9.9", Greater},
	}
	for _, c := range cases {
		got := Compare(Parse(c.a), Parse(c.b))
		if got != c.want {
			t.Errorf("Compare(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestCompareLexicalFallback(t *testing.T) {
	if Compare(Parse("latest"), Parse("stable")) != Less {
		t.Fatalf("expected lexical fallback for unparseable versions")
	}
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, candidate string
		want               bool
	}{
		{"*", "anything", true},
		{"*", "", true},
		{"7.*", "7.1.0", true},
		{"7.*", "8.0.0", false},
		{"*-stable", "1.2.3-stable", true},
		{"prefix*suffix", "prefixXXXsuffix", true},
		{"exact", "exact", true},
		{"exact", "other", false},
		{"a*b*c", "abc", false}, // more than one star: falls through to exact
	}
	for _, c := range cases {
		got := GlobMatch(c.pattern, c.candidate)
		if got != c.want {
			t.Errorf("GlobMatch(%q, %q) = %v, want %v", c.pattern, c.candidate, got, c.want)
		}
	}
}
