// Package gateway talks to the router whose WAN address is being watched.
// Two transports implement the same Client contract: the controller REST
// API and the router's own SSH CLI.
package gateway

import (
	"context"
	"fmt"
	"regexp"
)

// Transport identifies how the router is reached.
type Transport string

const (
	TransportController Transport = "controller"
	TransportSSH        Transport = "ssh"
)

// Client is the capability set the monitor needs from a router.
type Client interface {
	// Authenticate establishes (or re-establishes) the device session.
	Authenticate(ctx context.Context) error

	// ReadWANAddress returns the address currently held by the WAN port.
	ReadWANAddress(ctx context.Context) (string, error)

	// SetWANPortEnabled administratively disables or enables the WAN port.
	SetWANPortEnabled(ctx context.Context, enabled bool) error

	// Close tears the session down. The client may be authenticated again.
	Close() error
}

// CommandRunner executes a command on the remote router and returns its
// combined stdout/stderr output. It is supplied by the ssh package;
// gateway does NOT import ssh directly.
type CommandRunner func(ctx context.Context, cmd string) (string, error)

// Shell is an open SSH session to the router.
type Shell interface {
	Exec(ctx context.Context, cmd string) (string, error)
	ServerVersion() string
	Close() error
}

// Dialer opens a new Shell. Authentication failures must wrap
// ErrAuthenticationFailed so the monitor can tell them from transport errors.
type Dialer func(ctx context.Context) (Shell, error)

// ifaceRe restricts interface names to characters that are safe to
// interpolate into CLI commands.
var ifaceRe = regexp.MustCompile(`^[A-Za-z0-9._/-]{1,32}$`)

// ValidateInterface checks an interface name before it is interpolated into
// any command string, to prevent command injection.
func ValidateInterface(name string) error {
	if !ifaceRe.MatchString(name) {
		return fmt.Errorf("invalid interface name %q", name)
	}
	return nil
}
