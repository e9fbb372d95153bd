package urlnorm

import "testing"

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
		host string
	}{
		{
			name: "strips tracking params and fragment",
			in:   "HTTPS://Example.com:443/News/Story/?utm_source=x&utm_medium=y&fbclid=abc#comments",
			want: "https://example.com/News/Story",
			host: "example.com",
		},
		{
			name: "sorts surviving query params",
			in:   "https://example.com/a?b=2&a=1",
			want: "https://example.com/a?a=1&b=2",
			host: "example.com",
		},
		{
			name: "keeps non-default port",
			in:   "http://example.com:8080/x/",
			want: "http://example.com:8080/x",
			host: "example.com",
		},
		{
			name: "bare host gets root path",
			in:   "https://example.com",
			want: "https://example.com/",
			host: "example.com",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, host, err := Canonicalize(tc.in)
			if err != nil {
				t.Fatalf("Canonicalize(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("Canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
			if host != tc.host {
				t.Fatalf("host = %q, want %q", host, tc.host)
			}
		})
	}

	sameA, _, _ := Canonicalize("https://example.com/story?utm_campaign=a")
	sameB, _, _ := Canonicalize("https://EXAMPLE.com/story")
	if sameA != sameB {
		t.Fatalf("equivalent urls split: %q vs %q", sameA, sameB)
	}

	for _, bad := range []string{"", "   ", "not a url", "/relative/path"} {
		if _, _, err := Canonicalize(bad); err == nil {
			t.Fatalf("Canonicalize(%q) should fail", bad)
		}
	}
}
