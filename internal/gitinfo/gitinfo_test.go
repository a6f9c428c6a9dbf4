package gitinfo

import "testing"

func TestWebBaseURLFromSSH(t *testing.T) {
	got := webBaseURL("git@github.com:example/repo.git")
	want := "https://github.com/example/repo"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWebBaseURLFromHTTPS(t *testing.T) {
	got := webBaseURL("https://github.com/example/repo.git")
	want := "https://github.com/example/repo"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWebBaseURLUnrecognized(t *testing.T) {
	if got := webBaseURL("not-a-remote"); got != "" {
		t.Errorf("expected empty string for unrecognized remote, got %q", got)
	}
}

func TestSpanPath(t *testing.T) {
	cases := map[string]string{
		"a_test.go:2:1-2:10":            "a_test.go",
		"pkg/foo/bar_test.go:10:5-12:9": "pkg/foo/bar_test.go",
	}
	for in, want := range cases {
		if got := spanPath(in); got != want {
			t.Errorf("spanPath(%q) = %q, want %q", in, got, want)
		}
	}
}
