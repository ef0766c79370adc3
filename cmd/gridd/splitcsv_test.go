package main

import "testing"

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := splitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestParseStereotype(t *testing.T) {
	caps, err := parseStereotype("browserName=firefox, platform=linux")
	if err != nil {
		t.Fatalf("parseStereotype: %v", err)
	}
	if caps["browserName"] != "firefox" || caps["platform"] != "linux" {
		t.Fatalf("unexpected caps: %v", caps)
	}
	if _, err := parseStereotype("no-separator"); err == nil {
		t.Fatalf("expected error for entry without '='")
	}
	if _, err := parseStereotype(""); err == nil {
		t.Fatalf("expected error for empty stereotype")
	}
}
