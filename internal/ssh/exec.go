package ssh

import (
	"bytes"
	"context"
	"fmt"
	"strings"
)

// Exec runs one router command in its own session and returns its trimmed
// stdout. Anything the router wrote to stderr is logged and, when the
// command fails, attached to the error. A non-zero exit comes back as a
// wrapped *ssh.ExitError alongside whatever was printed to stdout.
//
// Each call is bounded by the connection's command timeout as well as ctx.
func (c *Client) Exec(ctx context.Context, cmd string) (string, error) {
	c.mu.RLock()
	conn, connected, timeout := c.conn, c.connected, c.cmdTimeout
	c.mu.RUnlock()
	if !connected || conn == nil {
		return "", fmt.Errorf("ssh: exec %q: not connected", cmd)
	}
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("ssh: exec %q: %w", cmd, err)
	}

	session, err := conn.NewSession()
	if err != nil {
		return "", fmt.Errorf("ssh: open session for %q: %w", cmd, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	// Closing the session unblocks Run.
	stop := context.AfterFunc(ctx, func() { session.Close() })
	err = session.Run(cmd)
	if !stop() {
		return "", fmt.Errorf("ssh: exec %q: %w", cmd, ctx.Err())
	}

	output := strings.TrimSpace(stdout.String())
	errText := strings.TrimSpace(stderr.String())
	log := c.log.WithField("cmd", cmd)
	log.Tracef("%d bytes", len(output))
	if errText != "" {
		log.Debugf("stderr: %.200s", errText)
	}
	if err != nil {
		if errText != "" {
			return output, fmt.Errorf("ssh: exec %q: %s: %w", cmd, errText, err)
		}
		return output, fmt.Errorf("ssh: exec %q: %w", cmd, err)
	}
	return output, nil
}
