package server

import "testing"

func TestGitPathAllowed(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/repo.git/info/refs?service=git-upload-pack", true},
		{"/repo.git/git-receive-pack", true},
		{"/nested/repo.git/objects/pack/pack-abc123.pack", true},
		{"/../etc/passwd", false},
		{"/repo.git/../../../etc/passwd", false},
		{"/repo.git/info/refs\x00", false},
		{"/repo.git/info refs", false},
	}
	for _, c := range cases {
		if got := gitPathAllowed(c.path); got != c.want {
			t.Errorf("gitPathAllowed(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}
