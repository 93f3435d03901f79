package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"confops/internal/logging"
	"confops/internal/mapping"
	"confops/internal/metadata"
	"confops/internal/metrics"
	"confops/internal/notifications"
	"confops/internal/publish"
	"confops/internal/queue"
	"confops/internal/reconcile"
	"confops/internal/schedule"
)

func newMappingCommand(ctx *commandContext) *cobra.Command {
	mappingCmd := &cobra.Command{
		Use:   "mapping",
		Short: "Session-to-channel and session-to-video mappings",
	}
	mappingCmd.AddCommand(&cobra.Command{
		Use:   "build",
		Short: "Assign channels and match uploaded videos to sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "mapping", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				recs, broken, err := loadAllRecords(env.records)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				channels, unassigned := mapping.BuildChannels(recs, env.cfg.Pretalx.VideoToTrack, env.cfg.Pretalx.TrackToChannel)

				client, err := newYouTubeClient(runCtx, env.cfg, env.logger)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				items, err := mapping.FetchPlaylists(runCtx, client, env.cfg.Playlists(), env.cfg.CacheDir("youtube"))
				if err != nil {
					return notifications.RunSummary{}, err
				}
				tables := mapping.Tables{Channels: channels, VideoIDs: mapping.BuildVideoIDs(items)}
				if err := mapping.SaveTables(env.cfg.MappingDir(), tables); err != nil {
					return notifications.RunSummary{}, err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Mapped %d sessions to channels and %d to uploaded videos (%d playlist items)\n",
					len(tables.Channels), len(tables.VideoIDs), len(items))
				if len(unassigned) > 0 {
					fmt.Fprintf(out, "No channel: %s\n", strings.Join(unassigned, ", "))
				}
				if len(broken) > 0 {
					fmt.Fprintf(out, "Unreadable records: %s\n", strings.Join(broken, ", "))
				}
				return notifications.RunSummary{}, nil
			})
		},
	})
	return mappingCmd
}

func newPrepareCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prepare [code...]",
		Short: "Derive platform metadata for the manifest sessions",
		Long: "Prepare renders the title and description of each session and writes the video\n" +
			"resource to the prepared queue. Without codes the manifest sessions are used,\n" +
			"or every record when no manifest exists.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "prepare", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				tables, err := loadTables(env.cfg)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				codes := args
				if len(codes) == 0 {
					if codes, err = manifestOrRecordCodes(env.cfg.ManifestPath(), env.records); err != nil {
						return notifications.RunSummary{}, err
					}
				}
				preparer, err := metadata.NewPreparer(env.cfg, env.records, env.queues, tables, env.logger,
					metadata.WithTemplateArgs(metadata.ChannelFlags(env.cfg.ChannelNames()...)))
				if err != nil {
					return notifications.RunSummary{}, err
				}
				result, err := preparer.PrepareAll(runCtx, codes)
				env.count("prepare", metrics.OutcomeSuccess, result.Prepared)
				env.count("prepare", metrics.OutcomeSkipped, result.Skipped)
				env.count("prepare", metrics.OutcomeFailed, result.Failed)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Prepared %d (%d records updated), skipped %d, failed %d\n",
					result.Prepared, result.RecordsUpdated, result.Skipped, result.Failed)
				return notifications.RunSummary{Succeeded: result.Prepared, Failed: result.Failed}, nil
			})
		},
	}
}

type scheduleFlags struct {
	start    string
	interval time.Duration
	end      string
	steps    string
	from     []string
}

func (f scheduleFlags) plan() (schedule.Plan, []queue.Name, error) {
	var plan schedule.Plan
	start, err := parseInstant("start", f.start)
	if err != nil {
		return plan, nil, err
	}
	plan.Start = start
	plan.Interval = f.interval
	if f.end != "" {
		if plan.End, err = parseInstant("end", f.end); err != nil {
			return plan, nil, err
		}
	}
	if f.steps != "" {
		if plan.Steps, err = schedule.StepsFromString(f.steps); err != nil {
			return plan, nil, err
		}
	}
	var from []queue.Name
	for _, value := range f.from {
		name, err := queue.ParseName(strings.TrimSpace(value))
		if err != nil {
			return plan, nil, fmt.Errorf("%w: --from %v", schedule.ErrInvalidInput, err)
		}
		from = append(from, name)
	}
	return plan, from, nil
}

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	var flags scheduleFlags
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Assign publish instants to prepared videos",
		Long: "Schedule shuffles the videos of the --from queues (default: prepared) and gives\n" +
			"each the next instant of either a fixed --interval after --start, or one of\n" +
			"--steps instants spread from --start to --end.",
		Example: "  confops schedule --start '2024-05-01 09:00' --interval 4h\n" +
			"  confops schedule --start 2024-05-01 --end 2024-05-31 --steps 40 --from prepared --from scheduled-for-update",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, from, err := flags.plan()
			if err != nil {
				return err
			}
			return ctx.runWorkflow(cmd, "schedule", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				assignments, err := schedule.New(env.queues, env.logger).Assign(runCtx, from, plan)
				env.count("schedule", metrics.OutcomeSuccess, len(assignments))
				if err != nil {
					return notifications.RunSummary{}, err
				}
				out := cmd.OutOrStdout()
				if len(assignments) == 0 {
					fmt.Fprintln(out, "Nothing to schedule")
					return notifications.RunSummary{}, nil
				}
				fmt.Fprintln(out, renderAssignments(assignments))
				return notifications.RunSummary{Succeeded: len(assignments)}, nil
			})
		},
	}
	cmd.Flags().StringVar(&flags.start, "start", "", "First publish instant")
	cmd.Flags().DurationVar(&flags.interval, "interval", 0, "Fixed spacing between instants")
	cmd.Flags().StringVar(&flags.end, "end", "", "Last publish instant of the window")
	cmd.Flags().StringVar(&flags.steps, "steps", "", "Number of instants in the window (> 1)")
	cmd.Flags().StringSliceVar(&flags.from, "from", nil, "Queues to take videos from (repeatable)")
	_ = cmd.MarkFlagRequired("start")
	cmd.MarkFlagsMutuallyExclusive("interval", "end")
	cmd.MarkFlagsRequiredTogether("end", "steps")
	return cmd
}

func renderAssignments(assignments []schedule.Assignment) string {
	rows := make([][]string, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, []string{a.Code, a.From.String(), a.PublishAt.Local().Format("2006-01-02 15:04 MST")})
	}
	return renderTable([]string{"Session", "From", "Publish at"}, rows, []columnAlignment{alignLeft, alignLeft, alignLeft})
}

func newPushCommand(ctx *commandContext) *cobra.Command {
	var channel string
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Write scheduled metadata to the video platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "push", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				tables, err := loadTables(env.cfg)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				client, err := newYouTubeClient(runCtx, env.cfg, env.logger)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				publisher := publish.New(env.queues, env.records, client, preparingDispatcher(env), tables.Channels, env.logger)
				result, err := publisher.PushScheduled(runCtx, channel)
				env.count("push", metrics.OutcomeSuccess, result.Pushed)
				env.count("push", metrics.OutcomeSkipped, result.Skipped)
				env.count("push", metrics.OutcomeFailed, result.Failed)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d, skipped %d, failed %d\n", result.Pushed, result.Skipped, result.Failed)
				return notifications.RunSummary{Succeeded: result.Pushed, Failed: result.Failed}, nil
			})
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "Only push videos of this channel (default: all)")
	return cmd
}

func newReleaseNowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "release-now <code>",
		Short: "Publish one session within seconds and queue its post and mail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.TrimSpace(args[0])
			return ctx.runWorkflow(cmd, "release", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				tables, err := loadTables(env.cfg)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				client, err := newYouTubeClient(runCtx, env.cfg, env.logger)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				publisher := publish.New(env.queues, env.records, client, preparingDispatcher(env), tables.Channels, env.logger)
				if err := publisher.ReleaseNow(runCtx, code); err != nil {
					env.count("release", metrics.OutcomeFailed, 1)
					return notifications.RunSummary{}, err
				}
				env.count("release", metrics.OutcomeSuccess, 1)

				title, videoID := code, ""
				if rec, err := env.records.Load(code); err == nil {
					title, videoID = rec.Title, rec.PlatformVideoID
				}
				if err := env.notifier.NotifyReleased(runCtx, code, title, videoID); err != nil {
					logging.WarnWithContext(env.logger, "release notification failed", "notify_failed", logging.Error(err))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %s; it goes public in %s\n", code, publish.ReleaseDelay)
				return notifications.RunSummary{}, nil
			})
		},
	}
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Move videos the platform has made public to published",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "reconcile", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				result, err := runReconcile(runCtx, env)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				printReconcile(cmd, result)
				return notifications.RunSummary{Succeeded: result.Published, Failed: result.Failed, Details: result.Codes}, nil
			})
		},
	}
}

func runReconcile(ctx context.Context, env *runEnv) (reconcile.Result, error) {
	client, err := newYouTubeClient(ctx, env.cfg, env.logger)
	if err != nil {
		return reconcile.Result{}, err
	}
	result, err := reconcile.New(env.queues, env.records, client, preparingDispatcher(env), env.logger).Run(ctx)
	env.count("reconcile", metrics.OutcomeSuccess, result.Published)
	env.count("reconcile", metrics.OutcomeSkipped, result.Pending)
	env.count("reconcile", metrics.OutcomeFailed, result.Failed)
	return result, err
}

func printReconcile(cmd *cobra.Command, result reconcile.Result) {
	fmt.Fprintf(cmd.OutOrStdout(), "Due %d, published %d, still pending %d, failed %d\n",
		result.Due, result.Published, result.Pending, result.Failed)
}
