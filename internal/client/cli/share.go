package cli

import (
	"github.com/dmitrijs2005/myhealthdata/internal/client/sharing"
	"github.com/spf13/cobra"
)

func newShareCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "share <uuid>",
		Short: "Create or reuse a share for a record and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.withTimeout(cmd)
			defer cancel()

			r, err := rt.app.records.Get(ctx, args[0])
			if err != nil {
				return err
			}
			h, err := rt.app.sharing.CreateShare(ctx, r)
			if err != nil {
				return err
			}
			rt.app.printf("Share URL: %s\n", h.URL)
			if len(h.Participants) > 0 {
				rt.app.printf("Participants: %s\n", sharing.Summarize(h.Participants))
			}
			return nil
		},
	}
}

func newAcceptCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "accept <share-url>",
		Short: "Join a record someone shared with you",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.withTimeout(cmd)
			defer cancel()

			share, err := rt.app.sharing.AcceptShare(ctx, args[0])
			if err != nil {
				return err
			}
			title := share.Title
			if title == "" {
				title = share.Name
			}
			rt.app.printf("Joined %q. Run `phr fetch` to import it.\n", title)
			return nil
		},
	}
}

func newParticipantsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "participants <uuid>",
		Short: "Refresh and print who a record is shared with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.withTimeout(cmd)
			defer cancel()

			r, err := rt.app.records.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !r.Cloud.IsSharingEnabled {
				rt.app.printf("%s is not shared\n", r.DisplayName())
				return nil
			}
			if err := rt.app.sharing.RefreshParticipants(ctx, r); err != nil {
				return err
			}
			rt.app.printf("Participants: %s\n", r.Cloud.ParticipantsSummary)
			return nil
		},
	}
}
