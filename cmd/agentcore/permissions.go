package main

import (
	"fmt"
	"io"

	"agentcore/internal/permission"

	"github.com/spf13/cobra"
)

func newPermissionsCommand(cli *CLI) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "permissions",
		Short: "Inspect tool permission rules",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check TOOL [TARGET...]",
		Short: "Show which list decides a tool request",
		Long: `Evaluate the configured permission lists for a tool and its targets.
Lists are checked in the order deny, ask, allow; the first match decides.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := cli.loadConfig()
			if err != nil {
				return err
			}
			lists, err := mgr.PermissionLists(cmd.Context())
			if err != nil {
				return err
			}
			decision, rule := permission.Explain(lists, args[0], args[1:])
			printDecision(cmd.OutOrStdout(), args[0], decision, rule)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the active allow, ask and deny lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := cli.loadConfig()
			if err != nil {
				return err
			}
			lists, err := mgr.PermissionLists(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printList(out, "deny", lists.Deny)
			printList(out, "ask", lists.Ask)
			printList(out, "allow", lists.Allow)
			return nil
		},
	})
	return cmd
}

func printDecision(out io.Writer, tool string, decision permission.Decision, rule *permission.Rule) {
	var label string
	switch decision {
	case permission.Deny:
		label = red(decision.String())
	case permission.Ask:
		label = yellow(decision.String())
	case permission.Allow:
		label = green(decision.String())
	default:
		label = gray(decision.String())
	}
	fmt.Fprintf(out, "%s %s\n", bold(tool+":"), label)
	if rule != nil {
		fmt.Fprintf(out, "  matched %s\n", rule.String())
		return
	}
	fmt.Fprintln(out, gray("  no rule matched; the approver decides"))
}

func printList(out io.Writer, name string, entries []string) {
	fmt.Fprintf(out, "%s (%d)\n", bold(name), len(entries))
	for _, entry := range entries {
		fmt.Fprintf(out, "  %s\n", entry)
	}
}
