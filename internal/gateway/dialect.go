package gateway

import (
	"fmt"
	"strings"
)

// Dialect is the command vocabulary of one router CLI family.
// "{if}" in any command is replaced by the WAN interface name.
type Dialect struct {
	Name    string
	Read    []string // diagnostic commands, tried in order
	Disable []string // configuration sequence that takes the port down
	Enable  []string // configuration sequence that brings it back
}

const (
	DialectOmada    = "omada"
	DialectMikroTik = "mikrotik"
	DialectEdgeOS   = "edgeos"
	DialectAuto     = "auto"
)

var dialects = map[string]Dialect{
	// TP-Link Omada gateways (ER707 and friends) with the Cisco-like CLI.
	DialectOmada: {
		Name: DialectOmada,
		Read: []string{
			"show interface {if}",
			"show ip interface brief",
			"show interface brief",
			"show wan",
			"show running-config interface {if}",
			"ifconfig {if}",
			"ip addr show {if}",
		},
		Disable: []string{"configure terminal", "interface {if}", "shutdown", "exit", "exit"},
		Enable:  []string{"configure terminal", "interface {if}", "no shutdown", "exit", "exit"},
	},
	DialectMikroTik: {
		Name: DialectMikroTik,
		Read: []string{
			`/ip address print terse where interface="{if}"`,
			`/ip address print terse where interface~"ether1|pppoe"`,
			`/ip dhcp-client print terse`,
		},
		Disable: []string{`/interface disable [find name="{if}"]`},
		Enable:  []string{`/interface enable [find name="{if}"]`},
	},
	// EdgeOS and other Linux-based routers.
	DialectEdgeOS: {
		Name: DialectEdgeOS,
		Read: []string{
			"ip addr show {if} 2>/dev/null",
			"ifconfig {if} 2>/dev/null",
			"ip -o addr show 2>/dev/null",
		},
		Disable: []string{"sudo ip link set {if} down"},
		Enable:  []string{"sudo ip link set {if} up"},
	},
}

// LookupDialect returns the named dialect. "auto" is not a dialect; it is
// resolved by DetectDialect after connecting.
func LookupDialect(name string) (Dialect, error) {
	d, ok := dialects[strings.ToLower(name)]
	if !ok {
		return Dialect{}, fmt.Errorf("unknown cli dialect %q", name)
	}
	return d, nil
}

// DialectNames lists the accepted dialect names, including "auto".
func DialectNames() []string {
	return []string{DialectOmada, DialectMikroTik, DialectEdgeOS, DialectAuto}
}

// render substitutes the interface name into cmds.
func render(cmds []string, iface string) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = strings.ReplaceAll(c, "{if}", iface)
	}
	return out
}
