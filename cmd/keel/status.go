package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	fsAdapter "github.com/bft-labs/keel/internal/adapters/fs"
)

func newStatusCmd(c *cli) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the supervisor's last recorded status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := c.resolve(cmd)
			if err != nil {
				return err
			}

			st, err := fsAdapter.NewStatusFileRepository(cfg.StateDir).Load(cmd.Context())
			if err != nil {
				return err
			}

			var out []byte
			switch output {
			case "json":
				out, err = json.MarshalIndent(st, "", "  ")
			case "yaml":
				out, err = yaml.Marshal(st)
			default:
				return fmt.Errorf("unknown output format %q", output)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format (json, yaml)")
	return cmd
}
