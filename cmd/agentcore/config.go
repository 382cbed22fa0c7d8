package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

func newConfigCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	var sources bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := cli.loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			file := mgr.Metadata().File()
			if file == "" {
				file = "(none, defaults and environment only)"
			}
			fmt.Fprintf(out, "%s %s\n\n", bold("Config file:"), file)

			data, err := mgr.Config().YAML()
			if err != nil {
				return err
			}
			fmt.Fprint(out, string(data))

			if sources {
				fmt.Fprintf(out, "\n%s\n", bold("Sources:"))
				all := mgr.Metadata().Sources()
				keys := make([]string, 0, len(all))
				for key := range all {
					keys = append(keys, key)
				}
				slices.Sort(keys)
				for _, key := range keys {
					fmt.Fprintf(out, "  %-45s %s\n", key, gray(string(all[key])))
				}
			}
			return nil
		},
	}
	show.Flags().BoolVar(&sources, "sources", false, "Also print where each value came from")
	cmd.AddCommand(show)
	return cmd
}
