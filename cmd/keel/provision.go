package main

import (
	"github.com/spf13/cobra"

	"github.com/bft-labs/keel/internal/ports"
)

func newProvisionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create the data area and hand ownership to the service identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.resolve(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			id, err := resolveIdentity(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}

			report, err := newProvisioner(cfg, id, logger).Provision(cmd.Context())
			if err != nil {
				return err
			}

			fields := []ports.Field{
				ports.String("identity", id.String()),
				ports.Bool("created", report.Created),
				ports.Int("ownership_changes", report.Changed),
			}
			if report.Database != nil {
				fields = append(fields,
					ports.Bool("database_exists", report.Database.Exists),
					ports.String("database_journal", report.Database.Journal),
				)
			}
			logger.Info("provisioning finished", fields...)
			return nil
		},
	}
}
