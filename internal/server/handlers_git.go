package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/riley-cms/riley-cms/internal/gitcgi"
	"github.com/riley-cms/riley-cms/internal/orchestrator"
)

// gitPathAllowed is the §4.G allow-list: a `/git/…` path may contain
// only these characters. Checked before auth so a probing request never
// even reaches the Basic-auth check.
func gitPathAllowed(path string) bool {
	if strings.Contains(path, "..") {
		return false
	}
	for _, r := range path {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_./=?&+", r):
		default:
			return false
		}
	}
	return true
}

// handleGit is the Git Smart HTTP bridge (§4.C, §4.F, §4.G): validate
// the path, check Git Basic auth independently of the Bearer middleware,
// spawn the CGI bridge, stream its response, and hand the completion
// handle to the Post-Push Orchestrator.
func (s *Server) handleGit(w http.ResponseWriter, r *http.Request) {
	pathInfo := "/" + chi.URLParam(r, "*")
	if !gitPathAllowed(pathInfo) {
		writeError(w, http.StatusBadRequest, "invalid git path")
		return
	}

	if !s.deps.Auth.CheckGitBasic(r.Header.Get("Authorization")) {
		w.Header().Set("WWW-Authenticate", `Basic realm="Git"`)
		writeError(w, http.StatusUnauthorized, "git authentication required")
		return
	}

	req := &gitcgi.Request{
		RepoPath:      s.deps.RepoPath,
		PathInfo:      pathInfo,
		Method:        r.Method,
		QueryString:   r.URL.RawQuery,
		ContentType:   r.Header.Get("Content-Type"),
		ContentLength: r.Header.Get("Content-Length"),
		Body:          r.Body,
	}

	resp, err := s.deps.GitBridge.Spawn(req)
	if err != nil {
		writeAppError(w, s.logger, err)
		return
	}

	for key, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
	_ = resp.Body.Close()

	isReceivePack := orchestrator.IsReceivePack(pathInfo, r.URL.RawQuery)
	s.deps.Orchestrator.HandleCompletion(resp.Completion, isReceivePack, resp.StatusCode, s.deps.GitTimeout)
}
