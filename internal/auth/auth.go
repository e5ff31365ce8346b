// Package auth supplies Tradier bearer tokens to the REST client and the
// stream transports.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoToken is returned when a source has no token to offer.
var ErrNoToken = errors.New("no access token")

// DefaultEnvVar is the environment variable consulted by EnvToken.
const DefaultEnvVar = "TRADIER_API_KEY"

// TokenSource yields the current access token. Implementations may refresh
// the token between calls.
type TokenSource interface {
	Token() (string, error)
}

// StaticToken is a fixed token.
type StaticToken string

// Token returns the token.
func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", ErrNoToken
	}
	return string(t), nil
}

// EnvToken reads the token from an environment variable on every call.
type EnvToken struct {
	Var string // Empty means DefaultEnvVar
}

// Token returns the variable's value.
func (e EnvToken) Token() (string, error) {
	name := e.Var
	if name == "" {
		name = DefaultEnvVar
	}
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return "", fmt.Errorf("%s: %w", name, ErrNoToken)
	}
	return v, nil
}

// FileToken reads the token from a file on every call, so an external
// process can rotate it in place.
type FileToken struct {
	Path string
}

// Token returns the file's trimmed contents.
func (f FileToken) Token() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("%s: %w", f.Path, ErrNoToken)
	}
	return v, nil
}

// Resolve picks a source from configuration: an explicit token wins, then a
// token file, then the environment.
func Resolve(token, tokenFile string) TokenSource {
	switch {
	case token != "":
		return StaticToken(token)
	case tokenFile != "":
		return FileToken{Path: tokenFile}
	default:
		return EnvToken{}
	}
}

// Headers returns the HTTP headers that authenticate a request made with ts.
func Headers(ts TokenSource) (map[string]string, error) {
	token, err := ts.Token()
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"Authorization": "Bearer " + token,
		"Accept":        "application/json",
	}, nil
}
