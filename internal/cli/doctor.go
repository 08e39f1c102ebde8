package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tonyperkins/homelab/internal/config"
	"github.com/tonyperkins/homelab/internal/diag"
	"github.com/tonyperkins/homelab/internal/logging"
	"github.com/tonyperkins/homelab/internal/tui"
)

var (
	doctorPlain bool

	doctorCmd = &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose configuration, connectivity and credentials",
		RunE:  runDoctor,
	}
)

// errDoctorFailed is returned when at least one diagnostic failed.
var errDoctorFailed = errors.New("one or more checks failed")

func init() {
	doctorCmd.Flags().BoolVar(&doctorPlain, "plain", false, "no colors")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	plain := doctorPlain || !isTerminal(out)

	env := &diag.Env{ConfigPath: configPath()}
	if err := config.LoadDotEnv("."); err != nil {
		env.ConfigErr = err
	} else {
		env.Config, env.ConfigErr = config.Load(env.ConfigPath)
	}
	if env.Config != nil {
		env.Reach = reachFunc(env.Config)
		env.Login = func(ctx context.Context) error {
			client, err := newClient(env.Config, logging.Discard())
			if err != nil {
				return err
			}
			defer client.Close()
			return client.Authenticate(ctx)
		}
	}

	heading := "WAN monitor diagnostics"
	if !plain {
		heading = tui.AccentStyle.Render(heading)
	}
	fmt.Fprintf(out, "%s\n\n", heading)

	findings := diag.Run(cmd.Context(), env, func(f diag.Finding) {
		io.WriteString(out, tui.RenderFinding(f, plain))
	})
	fmt.Fprintf(out, "\n%s\n", tui.RenderSummary(findings, plain))

	if diag.Failed(findings) {
		return errDoctorFailed
	}
	return nil
}
