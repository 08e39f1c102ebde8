package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tonyperkins/homelab/internal/config"
	"github.com/tonyperkins/homelab/internal/gateway"
	"github.com/tonyperkins/homelab/internal/logging"
	"github.com/tonyperkins/homelab/internal/probe"
	"github.com/tonyperkins/homelab/internal/tui"
)

var (
	checkPlain bool

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Test the connection to the router once and exit",
		Long: `Run through the same steps the monitor does once: reach the controller,
log in, resolve the controller and site, fetch the gateway and read and
classify its WAN address. With the ssh transport: log in, pick the CLI
dialect and read the WAN address.

The WAN port is never touched.`,
		RunE: runCheck,
	}
)

func init() {
	checkCmd.Flags().BoolVar(&checkPlain, "plain", false, "plain line output instead of the live view")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg, io.Discard)
	if err != nil {
		return err
	}
	defer closer.Close()
	log := logging.Component(logger, "check")

	steps, target, cleanup, err := checkSteps(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	if checkPlain || !isTerminal(out) {
		return runCheckPlain(cmd.Context(), out, target, steps)
	}
	return runCheckTUI(cmd.Context(), target, steps)
}

func checkSteps(cfg *config.Config, log *logrus.Entry) ([]probe.Step, string, func(), error) {
	if cfg.Transport == string(gateway.TransportSSH) {
		c, err := newCLIClient(cfg, log)
		if err != nil {
			return nil, "", nil, err
		}
		target := sshOptions(cfg).Address()
		return probe.CLISteps(c, target), target, func() { c.Close() }, nil
	}
	c := newControllerClient(cfg, log)
	return probe.ControllerSteps(c, cfg.Controller.URL), cfg.Controller.URL, func() { c.Close() }, nil
}

func runCheckPlain(ctx context.Context, out io.Writer, target string, steps []probe.Step) error {
	fmt.Fprintf(out, "Checking %s\n", target)
	results := probe.Run(ctx, steps, func(r probe.Result, done bool) {
		if done {
			fmt.Fprintln(out, tui.PlainResult(r))
		}
	})
	return results.Err()
}

func runCheckTUI(ctx context.Context, target string, steps []probe.Step) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(tui.NewCheckModel("Checking "+target), tea.WithContext(ctx))
	go func() {
		probe.Run(ctx, steps, func(r probe.Result, done bool) {
			if done {
				p.Send(tui.StepDoneMsg{Result: r})
			} else {
				p.Send(tui.StepStartMsg{Name: r.Name})
			}
		})
		p.Send(tui.CheckDoneMsg{})
	}()

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("check view: %w", err)
	}
	m := final.(tui.CheckModel)
	if m.Aborted() {
		return context.Canceled
	}
	return m.Results().Err()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
