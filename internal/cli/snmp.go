package cli

import (
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/tonyperkins/homelab/internal/config"
	"github.com/tonyperkins/homelab/internal/logging"
	"github.com/tonyperkins/homelab/internal/snmp"
	"github.com/tonyperkins/homelab/internal/tui/components"
)

var (
	snmpTarget    string
	snmpCommunity string
	snmpPort      uint16

	snmpCmd = &cobra.Command{
		Use:   "snmp",
		Short: "Read the router's description and address table over SNMP v2c",
		Long: `Query sysDescr and sysName, then walk the IP address table and classify
every address found. Useful to see whether the router exposes its WAN
address over SNMP.

The target defaults to snmp.target, then the ssh host, then the
controller's host.`,
		RunE: runSNMP,
	}
)

func init() {
	snmpCmd.Flags().StringVar(&snmpTarget, "target", "", "router address")
	snmpCmd.Flags().StringVar(&snmpCommunity, "community", "", "community string (default public)")
	snmpCmd.Flags().Uint16Var(&snmpPort, "port", 0, "UDP port (default 161)")
	rootCmd.AddCommand(snmpCmd)
}

func runSNMP(cmd *cobra.Command, _ []string) error {
	opts := snmp.Options{Target: snmpTarget, Community: snmpCommunity, Port: snmpPort}

	cfg, cfgErr := config.Load(configPath())
	if cfgErr == nil {
		fillSNMPOptions(&opts, cfg)
	}
	if opts.Target == "" {
		if cfgErr != nil {
			return cfgErr
		}
		return fmt.Errorf("snmp: no target; use --target or set snmp.target")
	}
	if opts.Community == "" {
		opts.Community = "public"
	}
	if opts.Port == 0 {
		opts.Port = 161
	}

	client, err := snmp.Dial(opts, logging.Discard())
	if err != nil {
		return err
	}
	defer client.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "SNMP v2c %s:%d\n\n", opts.Target, opts.Port)

	descr, name, err := client.SystemInfo()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "System:      %s\n", descr)
	if name != "" {
		fmt.Fprintf(out, "Name:        %s\n", name)
	}
	fmt.Fprintln(out)

	addrs, err := client.Addresses()
	printAddresses(out, addrs, !isTerminal(out))
	return err
}

func fillSNMPOptions(opts *snmp.Options, cfg *config.Config) {
	if opts.Target == "" {
		opts.Target = cfg.SNMP.Target
	}
	if opts.Target == "" {
		opts.Target = cfg.SSH.Host
	}
	if opts.Target == "" {
		if u, err := url.Parse(cfg.Controller.URL); err == nil {
			opts.Target = u.Hostname()
		}
	}
	if opts.Community == "" {
		opts.Community = cfg.SNMP.Community
	}
	if opts.Port == 0 && cfg.SNMP.Port > 0 && cfg.SNMP.Port <= 65535 {
		opts.Port = uint16(cfg.SNMP.Port)
	}
	opts.Timeout = cfg.SNMP.Timeout()
}

func printAddresses(out io.Writer, addrs []snmp.Address, plain bool) {
	if len(addrs) == 0 {
		fmt.Fprintln(out, "No addresses in the IP address table")
		return
	}
	t := components.NewTable("Address", "Class")
	t.Plain = plain
	for _, a := range addrs {
		t.AddRow(a.IP, a.Class.String())
	}
	io.WriteString(out, t.View())
}
