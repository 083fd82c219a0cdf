package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/myhealthdata/internal/client/fetcher"
	"github.com/spf13/cobra"
)

func newCloudCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cloud",
		Short: "Control cloud mirroring of records",
	}
	cmd.AddCommand(
		newCloudToggleCmd(rt, "enable", "Mirror a record to the cloud and push it now", true),
		newCloudToggleCmd(rt, "disable", "Stop mirroring a record; the cloud copy is kept", false),
		newSyncCmd(rt),
		newCloudStatusCmd(rt),
	)
	return cmd
}

func newCloudToggleCmd(rt *runtime, use, short string, enable bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <uuid>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.withTimeout(cmd)
			defer cancel()

			r, err := rt.app.records.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !enable {
				if err := rt.app.syncer.DisableCloud(ctx, r); err != nil {
					return err
				}
				rt.app.printf("Cloud mirroring disabled for %s\n", r.DisplayName())
				return nil
			}
			if err := rt.app.syncer.EnableCloud(ctx, r); err != nil {
				rt.app.printf("Cloud mirroring enabled for %s, push failed; it will be retried on the next sync\n", r.DisplayName())
				return err
			}
			rt.app.printf("Cloud mirroring enabled for %s\n", r.DisplayName())
			return nil
		},
	}
}

func newSyncCmd(rt *runtime) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "sync [uuid]",
		Short: "Push one record, or every mirrored record with --all",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := rt.withTimeout(cmd)
			defer cancel()

			if all {
				rep, err := rt.app.syncer.SyncAll(ctx)
				if err != nil {
					return err
				}
				rt.app.printf("Synced %d record(s) in %s\n", rep.Synced, rep.Duration.Round(time.Millisecond))
				errs := make([]error, 0, len(rep.Failures))
				for _, f := range rep.Failures {
					rt.app.printf("  failed: %v\n", f)
					errs = append(errs, f)
				}
				return errors.Join(errs...)
			}

			r, err := rt.app.records.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !r.Cloud.IsCloudEnabled {
				rt.app.printf("%s is not mirrored; run `phr cloud enable %s` first\n", r.DisplayName(), r.UUID)
				return nil
			}
			if err := rt.app.syncer.SyncIfNeeded(ctx, r); err != nil {
				return err
			}
			rt.app.printf("Synced %s\n", r.DisplayName())
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "push every mirrored record")
	return cmd
}

func newCloudStatusCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the cloud account status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := rt.withTimeout(cmd)
			defer cancel()
			st, err := rt.app.remote.AccountStatus(ctx)
			if err != nil {
				return err
			}
			rt.app.printf("Account status: %s\n", st)
			return nil
		},
	}
}

func newFetchCmd(rt *runtime) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Import records from the cloud, own and shared",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := rt.withTimeout(cmd)
			defer cancel()

			docs, fetchErr := rt.app.fetcher.FetchAll(ctx)
			if dryRun {
				rt.app.printf("%d document(s) available\n", len(docs))
				for _, d := range docs {
					rt.app.printf("  %s\n", d.RecordName)
				}
				return fetchErr
			}
			res, err := rt.app.fetcher.Import(ctx, docs)
			rt.printResult(res)
			return errors.Join(fetchErr, err)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list documents without importing")
	return cmd
}

func newWatchCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Fetch periodically until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt.app.printf("Fetching every %s, press Ctrl+C to stop\n", rt.app.cfg.FetchInterval)
			err := rt.app.fetcher.Watch(ctx, rt.app.cfg.FetchInterval, func(res fetcher.Result, err error) {
				rt.printResult(res)
				if err != nil {
					rt.app.printf("  error: %v\n", err)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func (rt *runtime) printResult(res fetcher.Result) {
	rt.app.printf("created %d, updated %d, kept local %d, skipped %d\n",
		res.Count(fetcher.OutcomeCreated), res.Count(fetcher.OutcomeUpdated),
		res.Count(fetcher.OutcomeKeptLocal), res.Count(fetcher.OutcomeSkipped))
	for _, d := range res.Documents {
		if d.Err != nil {
			rt.app.printf("  skipped %s: %v\n", d.RecordName, d.Err)
		}
		for _, w := range d.Warnings {
			rt.app.printf("  warning %s: %v\n", d.RecordName, w)
		}
	}
}
