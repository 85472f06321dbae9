// Package auth supplies bearer credentials to the REST client and the push
// channel. Token refresh is owned by an external session layer; this
// package only hands out whatever credential that layer currently holds.
package auth

// TokenProvider supplies the bearer credential attached to REST calls and
// channel handshakes.
type TokenProvider interface {
	Token() (string, error)
}

// StaticToken is a TokenProvider for a fixed credential, useful for
// service accounts and tests.
type StaticToken string

// Token returns the fixed credential.
func (t StaticToken) Token() (string, error) { return string(t), nil }

// TokenFunc adapts a function to the TokenProvider interface.
type TokenFunc func() (string, error)

// Token calls f.
func (f TokenFunc) Token() (string, error) { return f() }
