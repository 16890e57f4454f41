package util

import "testing"

func TestStripHTML(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"homework due friday", "homework due friday"},
		{"<b>homework</b> due <i>friday</i>", "homework due friday"},
		{"<script>alert('x')</script>hello", "alert('x')hello"},
		{"<img src=x onerror=alert(1)>", ""},
	}
	for _, c := range cases {
		if got := StripHTML(c.in); got != c.want {
			t.Fatalf("StripHTML(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
