package gitcgi

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/riley-cms/riley-cms/internal/apperror"
)

// candidatePaths are the common install locations probed when no
// explicit backend_path is configured (§4.C).
var candidatePaths = []string{
	"/usr/lib/git-core/git-http-backend",
	"/usr/libexec/git-core/git-http-backend",
	"/usr/local/libexec/git-core/git-http-backend",
	"/usr/local/lib/git-core/git-http-backend",
	"/opt/homebrew/libexec/git-core/git-http-backend",
}

// LocateBackend resolves the git-http-backend binary per §4.C: an
// explicit override, then a fixed candidate list, then `git --exec-path`.
func LocateBackend(configuredPath string) (string, error) {
	if configuredPath != "" {
		if fi, err := os.Stat(configuredPath); err == nil && !fi.IsDir() {
			return configuredPath, nil
		}
		return "", apperror.New(apperror.KindGit, "configured git.backend_path does not exist: "+configuredPath)
	}

	for _, c := range candidatePaths {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			return c, nil
		}
	}

	out, err := exec.Command("git", "--exec-path").Output()
	if err == nil {
		execPath := strings.TrimSpace(string(out))
		if execPath != "" {
			candidate := filepath.Join(execPath, "git-http-backend")
			if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
				return candidate, nil
			}
		}
	}

	return "", apperror.New(apperror.KindGit, "git-http-backend not found: configure git.backend_path, or install git with CGI support")
}
