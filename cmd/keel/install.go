package main

import (
	"github.com/spf13/cobra"

	"github.com/bft-labs/keel/internal/adapters/process"
	"github.com/bft-labs/keel/internal/installer"
	"github.com/bft-labs/keel/internal/ports"
)

func newInstallCmd(c *cli) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install declared dependencies unless the manifests are unchanged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.resolve(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			command, err := cfg.InstallArgs()
			if err != nil {
				return err
			}

			inst := installer.New(process.NewRunner(logger), logger)
			res, err := inst.Install(cmd.Context(), installer.Config{
				Root:      cfg.AppDir,
				Manifests: cfg.Manifests,
				CacheDir:  cfg.CacheDir,
				Command:   command,
				Force:     force,
			})
			if err != nil {
				return err
			}

			logger.Info("install finished",
				ports.String("digest", res.Digest),
				ports.Bool("skipped", res.Skipped),
			)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "install even if the manifests are unchanged")
	return cmd
}
