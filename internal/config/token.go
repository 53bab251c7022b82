package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/riley-cms/riley-cms/internal/apperror"
)

// TokenSource is a configured credential value: either a literal string
// or the form "env:NAME" indirecting through an environment variable
// (§4.B). The zero value resolves to an empty, disabled token.
type TokenSource string

const envPrefix = "env:"

// Resolve returns the literal value, or the named environment variable's
// current value for an "env:NAME" source. A missing environment variable
// is a configuration error surfaced at resolve time, not at load time;
// nothing is cached, so every call reads the environment afresh.
func (t TokenSource) Resolve() (string, error) {
	s := string(t)
	if !strings.HasPrefix(s, envPrefix) {
		return s, nil
	}
	name := strings.TrimPrefix(s, envPrefix)
	if name == "" {
		return "", apperror.New(apperror.KindConfig, "env: token source has empty variable name")
	}
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", apperror.New(apperror.KindConfig, fmt.Sprintf("environment variable %s is not set", name))
	}
	return v, nil
}

// IsSet reports whether the source has any configured value at all,
// without resolving env indirection.
func (t TokenSource) IsSet() bool {
	return string(t) != ""
}
