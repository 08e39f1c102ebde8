// Package snmp reads system and address information from the router over
// SNMP v2c. It is an exploration aid; the monitor does not use it.
package snmp

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/sirupsen/logrus"

	"github.com/tonyperkins/homelab/internal/addr"
)

const (
	OIDSysDescr    = "1.3.6.1.2.1.1.1.0"
	OIDSysName     = "1.3.6.1.2.1.1.5.0"
	OIDIPAdEntAddr = "1.3.6.1.2.1.4.20.1.1"
)

// Options configures Dial.
type Options struct {
	Target    string
	Port      uint16
	Community string
	Timeout   time.Duration
	Retries   int
}

// Address is one entry of the router's IP address table.
type Address struct {
	IP    string
	Class addr.Classification
}

// session is the part of *gosnmp.GoSNMP the client uses.
type session interface {
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	BulkWalk(root string, fn gosnmp.WalkFunc) error
}

// Client is a connected SNMP session.
type Client struct {
	sess  session
	close func() error
	log   *logrus.Entry
}

// Dial opens a UDP SNMP v2c session.
func Dial(opts Options, log *logrus.Entry) (*Client, error) {
	if opts.Port == 0 {
		opts.Port = 161
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	g := &gosnmp.GoSNMP{
		Target:    opts.Target,
		Port:      opts.Port,
		Community: opts.Community,
		Version:   gosnmp.Version2c,
		Timeout:   opts.Timeout,
		Retries:   opts.Retries,
	}
	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp: connect %s:%d: %w", opts.Target, opts.Port, err)
	}
	return &Client{
		sess:  g,
		close: func() error { return g.Conn.Close() },
		log:   log.WithField("target", opts.Target),
	}, nil
}

// SystemInfo returns sysDescr and sysName.
func (c *Client) SystemInfo() (descr, name string, err error) {
	pkt, err := c.sess.Get([]string{OIDSysDescr, OIDSysName})
	if err != nil {
		return "", "", fmt.Errorf("snmp: get system info: %w", err)
	}
	if pkt.Error != gosnmp.NoError {
		return "", "", fmt.Errorf("snmp: get system info: %s", pkt.Error)
	}
	for _, v := range pkt.Variables {
		switch strings.TrimPrefix(v.Name, ".") {
		case OIDSysDescr:
			descr = pduString(v)
		case OIDSysName:
			name = pduString(v)
		}
	}
	return descr, name, nil
}

// Addresses walks ipAdEntAddr and classifies every address found.
func (c *Client) Addresses() ([]Address, error) {
	var out []Address
	err := c.sess.BulkWalk(OIDIPAdEntAddr, func(v gosnmp.SnmpPDU) error {
		ip, ok := pduAddress(v)
		if !ok {
			c.log.Debugf("Skipping %s of type %s", v.Name, v.Type)
			return nil
		}
		out = append(out, Address{IP: ip, Class: addr.Classify(ip)})
		return nil
	})
	if err != nil {
		return out, fmt.Errorf("snmp: walk address table: %w", err)
	}
	return out, nil
}

// Close releases the UDP socket.
func (c *Client) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

func pduString(v gosnmp.SnmpPDU) string {
	switch val := v.Value.(type) {
	case []byte:
		return strings.TrimSpace(string(val))
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

func pduAddress(v gosnmp.SnmpPDU) (string, bool) {
	if v.Type != gosnmp.IPAddress {
		return "", false
	}
	ip, ok := v.Value.(string)
	if !ok || addr.Classify(ip) == addr.Invalid {
		return "", false
	}
	return ip, true
}
