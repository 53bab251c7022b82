package gitcgi

import (
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v6"

	"github.com/riley-cms/riley-cms/internal/apperror"
)

// ValidateRepoPath confirms repoPath looks like a Git working tree or
// bare repository before spawning the CGI child (§4.C): it must contain
// either a .git/ directory or a HEAD file.
func ValidateRepoPath(repoPath string) error {
	if fi, err := os.Stat(filepath.Join(repoPath, ".git")); err == nil && fi.IsDir() {
		return nil
	}
	if fi, err := os.Stat(filepath.Join(repoPath, "HEAD")); err == nil && !fi.IsDir() {
		return nil
	}
	return apperror.New(apperror.KindGit, "repo path is not a Git working tree or bare repository: "+repoPath)
}

// ValidateRepoOpenable goes one step further than ValidateRepoPath: it
// actually opens the repository read-only with go-git, confirming the
// object database and refs are structurally sound. This is used by
// `riley-cms validate`, not on the request hot path — a plain
// file-existence check (ValidateRepoPath) is all the CGI bridge needs
// per request.
func ValidateRepoOpenable(repoPath string) error {
	if err := ValidateRepoPath(repoPath); err != nil {
		return err
	}
	if _, err := git.PlainOpen(repoPath); err != nil {
		return apperror.Wrap(apperror.KindGit, "repo failed to open", err)
	}
	return nil
}
