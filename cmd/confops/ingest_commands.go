package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"confops/internal/download"
	"confops/internal/ingest"
	"confops/internal/metrics"
	"confops/internal/notifications"
	"confops/internal/organize"
	"confops/internal/records"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var reload bool
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Pull confirmed sessions and speakers into records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "ingest", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				svc := ingest.New(env.cfg, env.records, env.logger, ingest.WithSessionSource(newPretalxClient(env.cfg)))
				result, err := svc.Sessions(runCtx, reload)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				env.count("ingest", metrics.OutcomeSuccess, result.Records)
				source := "talk-management API"
				if result.FromCache {
					source = "cache"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records from %d submissions and %d speakers (%s)\n",
					result.Records, result.Submissions, result.Speakers, source)
				return notifications.RunSummary{}, nil
			})
		},
	}
	cmd.Flags().BoolVar(&reload, "reload", false, "Ignore cached API responses")
	return cmd
}

func newDescribeCommand(ctx *commandContext) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Generate teaser, short and long texts with the language model",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "describe", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				client, err := newLLMClient(env.cfg)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				svc := ingest.New(env.cfg, env.records, env.logger, ingest.WithCompleter(client))
				result, err := svc.Descriptions(runCtx, replace)
				env.count("describe", metrics.OutcomeSuccess, result.Updated)
				env.count("describe", metrics.OutcomeSkipped, result.Skipped)
				env.count("describe", metrics.OutcomeFailed, result.Failed)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %d records, skipped %d, failed %d\n", result.Updated, result.Skipped, result.Failed)
				return notifications.RunSummary{Succeeded: result.Updated, Failed: result.Failed}, nil
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Regenerate texts that already exist")
	return cmd
}

func newManifestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest",
		Short: "Read the recording spreadsheet into the manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "manifest", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				client, err := newSheetsClient(runCtx, env.cfg, env.logger)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				svc := ingest.New(env.cfg, env.records, env.logger, ingest.WithSheetReader(client))
				result, err := svc.Manifest(runCtx)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				env.count("manifest", metrics.OutcomeSuccess, result.Entries)
				env.count("manifest", metrics.OutcomeSkipped, result.Skipped)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Manifest has %d entries, %d rows skipped\n", result.Entries, result.Skipped)
				if result.SheetsFailed > 0 {
					fmt.Fprintf(out, "%d worksheets could not be read; see the log\n", result.SheetsFailed)
				}
				return notifications.RunSummary{}, nil
			})
		},
	}
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the manifest recordings from the video host",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "download", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				entries, err := records.LoadManifest(env.cfg.ManifestPath())
				if err != nil {
					return notifications.RunSummary{}, err
				}
				n := env.cfg.Vimeo.Workers
				if cmd.Flags().Changed("workers") {
					n = workers
				}
				pool := download.NewPool(env.cfg, newVimeoClient(env.cfg), env.logger, download.WithWorkers(n))
				result, err := pool.Run(runCtx, entries)
				env.count("download", metrics.OutcomeSuccess, result.Downloaded)
				env.count("download", metrics.OutcomeSkipped, result.Skipped)
				env.count("download", metrics.OutcomeFailed, result.Failed)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Downloaded %d, skipped %d, failed %d\n", result.Downloaded, result.Skipped, result.Failed)
				return notifications.RunSummary{Succeeded: result.Downloaded, Failed: result.Failed}, nil
			})
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent downloads (default vimeo.workers)")
	return cmd
}

func newOrganizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "organize",
		Short: "Copy downloads into per-channel upload folders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "organize", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				tables, err := loadTables(env.cfg)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				report, err := organize.CopyToChannels(runCtx, env.cfg, env.records, tables.Channels, env.logger)
				env.count("organize", metrics.OutcomeSuccess, len(report.Copied))
				env.count("organize", metrics.OutcomeSkipped, len(report.Present))
				env.count("organize", metrics.OutcomeFailed, len(report.Failed))
				if err != nil {
					return notifications.RunSummary{}, err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Copied %d, already present %d, failed %d\n", len(report.Copied), len(report.Present), len(report.Failed))
				for _, line := range []struct {
					label string
					codes []string
				}{
					{"Missing download", report.Missing},
					{"Do not record", report.DoNotRecord},
					{"No channel", report.Unassigned},
					{"Failed", report.Failed},
				} {
					if len(line.codes) > 0 {
						fmt.Fprintf(out, "%s: %s\n", line.label, strings.Join(line.codes, ", "))
					}
				}
				return notifications.RunSummary{Succeeded: len(report.Copied), Failed: len(report.Failed)}, nil
			})
		},
	}
}
