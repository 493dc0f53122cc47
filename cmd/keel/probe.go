package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	fsAdapter "github.com/bft-labs/keel/internal/adapters/fs"
	httpAdapter "github.com/bft-labs/keel/internal/adapters/http"
)

var errUnhealthy = errors.New("service unhealthy")

func newProbeCmd(c *cli) *cobra.Command {
	var fromStatus bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Make one liveness attempt; exit 0 on success, 1 on failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.resolve(cmd)
			if err != nil {
				return err
			}
			// Health checks run as root unless the image sets a USER.
			if _, err := c.privs.dropTo(cfg.User); err != nil {
				return err
			}

			if fromStatus {
				st, err := fsAdapter.NewStatusFileRepository(cfg.StateDir).Load(cmd.Context())
				if err != nil {
					return err
				}
				if st.Health.ExitCode() != 0 {
					return fmt.Errorf("%w: supervisor reports %s", errUnhealthy, st.Health)
				}
				return nil
			}

			policy, err := httpAdapter.PolicyByName(cfg.HealthPolicy)
			if err != nil {
				return err
			}
			prober := httpAdapter.NewProber(&http.Client{}, httpAdapter.BaseURL(cfg.Host, cfg.Port), cfg.HealthPath, cfg.HealthTimeout, policy)
			if err := prober.Probe(cmd.Context()); err != nil {
				return fmt.Errorf("%w: %w", errUnhealthy, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromStatus, "from-status", false, "report the health state tracked by the running supervisor instead of probing")
	return cmd
}
