package cli

import "github.com/spf13/cobra"

func newSuppressionCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suppressed",
		Short: "Manage records excluded from shared imports",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List suppressed record uuids",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ids, err := rt.app.suppressed.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, id := range ids {
					rt.app.printf("%s\n", id)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <uuid>",
			Short: "Allow a shared record to be imported again",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return rt.app.suppressed.Remove(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every suppression",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return rt.app.suppressed.Clear(cmd.Context())
			},
		},
	)
	return cmd
}
