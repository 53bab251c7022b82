// Package auth implements the two independent credential checks of §4.F:
// Bearer-token admin detection for the API, and Basic-auth git-token
// verification for the Git route.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"log"
	"strings"
)

// Status is the outcome of the Bearer middleware (§3 AuthStatus).
type Status int

const (
	Public Status = iota
	Admin
)

// Checker holds the resolved tokens used to classify requests. Tokens
// are compared by SHA-256 digest in constant time so neither length nor
// content of the presented credential leaks through timing (§4.F, §8).
type Checker struct {
	apiTokenHash []byte // nil/empty => API auth disabled, everyone is Public
	gitTokenHash []byte // nil/empty => Git route denies all requests

	logger *log.Logger
}

// New builds a Checker from already-resolved token strings. An empty
// token disables the corresponding auth path, and New logs a warning
// for each empty token.
func New(apiToken, gitToken string, logger *log.Logger) *Checker {
	if logger == nil {
		logger = log.New(log.Writer(), "[riley-cms:auth] ", log.LstdFlags)
	}
	c := &Checker{logger: logger}
	if apiToken == "" {
		logger.Println("warning: api_token is empty; all API requests will be treated as Public")
	} else {
		c.apiTokenHash = hashToken(apiToken)
	}
	if gitToken == "" {
		logger.Println("warning: git_token is empty; all Git requests will be denied")
	} else {
		c.gitTokenHash = hashToken(gitToken)
	}
	return c
}

func hashToken(t string) []byte {
	sum := sha256.Sum256([]byte(t))
	return sum[:]
}

func constantTimeMatch(hash []byte, candidate string) bool {
	if len(hash) == 0 {
		return false
	}
	candidateHash := hashToken(candidate)
	return subtle.ConstantTimeCompare(hash, candidateHash) == 1
}

// CheckBearer classifies an Authorization header value for the API
// Bearer path (§4.F). A missing header, malformed header, or mismatched
// token all resolve to Public — only an exact match yields Admin.
func (c *Checker) CheckBearer(authorizationHeader string) Status {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorizationHeader, prefix) {
		return Public
	}
	token := strings.TrimPrefix(authorizationHeader, prefix)
	if constantTimeMatch(c.apiTokenHash, token) {
		return Admin
	}
	return Public
}

// CheckGitBasic validates the Authorization header for the Git Basic
// path (§4.F). The username is ignored; only the password is compared
// against the resolved git_token.
func (c *Checker) CheckGitBasic(authorizationHeader string) bool {
	const prefix = "Basic "
	if !strings.HasPrefix(authorizationHeader, prefix) {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(authorizationHeader, prefix))
	if err != nil {
		return false
	}
	_, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}
	return constantTimeMatch(c.gitTokenHash, password)
}
