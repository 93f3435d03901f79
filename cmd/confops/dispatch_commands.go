package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"confops/internal/dispatch"
	"confops/internal/logging"
	"confops/internal/metrics"
	"confops/internal/notifications"
	"confops/internal/publish"
	"confops/internal/services"
)

func newSendPostsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "send-posts",
		Short: "Publish the next queued social post",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "send-posts", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				result, err := sendPosts(runCtx, env)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				printSend(cmd, "posts", result)
				return notifications.RunSummary{Succeeded: result.Sent, Failed: result.Failed}, nil
			})
		},
	}
}

func newSendEmailsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "send-emails",
		Short: "Send every queued speaker email",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "send-emails", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				result, err := sendEmails(runCtx, env)
				if err != nil {
					return notifications.RunSummary{}, err
				}
				printSend(cmd, "emails", result)
				return notifications.RunSummary{Succeeded: result.Sent, Failed: result.Failed}, nil
			})
		},
	}
}

// newNotifyRunCommand chains the periodic steps. Each step runs even when an
// earlier one failed; the first error is returned after all of them.
func newNotifyRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-run",
		Short: "Reconcile, then send one post and all emails (the cron job)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runWorkflow(cmd, "notify-run", func(runCtx context.Context, env *runEnv) (notifications.RunSummary, error) {
				var summary notifications.RunSummary
				var errs []error

				if result, err := runReconcile(runCtx, env); err != nil {
					errs = append(errs, fmt.Errorf("reconcile: %w", err))
				} else {
					printReconcile(cmd, result)
					summary.Succeeded += result.Published
					summary.Failed += result.Failed
					summary.Details = append(summary.Details, result.Codes...)
				}
				if err := runCtx.Err(); err != nil {
					return summary, err
				}

				if result, err := sendPosts(runCtx, env); err != nil {
					errs = append(errs, fmt.Errorf("send posts: %w", err))
				} else {
					printSend(cmd, "posts", result)
					summary.Succeeded += result.Sent
					summary.Failed += result.Failed
				}
				if err := runCtx.Err(); err != nil {
					return summary, err
				}

				if result, err := sendEmails(runCtx, env); err != nil {
					errs = append(errs, fmt.Errorf("send emails: %w", err))
				} else {
					printSend(cmd, "emails", result)
					summary.Succeeded += result.Sent
					summary.Failed += result.Failed
				}

				reportBacklog(runCtx, env)
				return summary, errors.Join(errs...)
			})
		},
	}
}

func sendPosts(ctx context.Context, env *runEnv) (dispatch.SendResult, error) {
	poster, err := newPoster(env.cfg)
	if err != nil {
		return dispatch.SendResult{}, err
	}
	result, err := dispatch.New(env.queues, env.records, poster, nil, env.cfg.Event.TeamSignature, env.logger).SendPendingPosts(ctx)
	env.count("post", metrics.OutcomeSuccess, result.Sent)
	env.count("post", metrics.OutcomeFailed, result.Failed)
	return result, err
}

func sendEmails(ctx context.Context, env *runEnv) (dispatch.SendResult, error) {
	mailer, err := newMailer(env.cfg)
	if err != nil {
		return dispatch.SendResult{}, err
	}
	result, err := dispatch.New(env.queues, env.records, nil, mailer, env.cfg.Event.TeamSignature, env.logger).SendPendingEmails(ctx)
	env.count("email", metrics.OutcomeSuccess, result.Sent)
	env.count("email", metrics.OutcomeFailed, result.Failed)
	return result, err
}

// reportBacklog warns through ntfy when pushed videos are waiting on the
// platform. Missing mappings only skip the report.
func reportBacklog(ctx context.Context, env *runEnv) {
	tables, err := loadTables(env.cfg)
	if err != nil {
		if !errors.Is(err, services.ErrNotFound) {
			logging.WarnWithContext(env.logger, "backlog report skipped", "backlog_skipped", logging.Error(err))
		}
		return
	}
	totals, err := publish.New(env.queues, env.records, nil, nil, tables.Channels, env.logger).UnpublishedTotals(ctx)
	if err != nil {
		logging.WarnWithContext(env.logger, "backlog report skipped", "backlog_skipped", logging.Error(err))
		return
	}
	if len(totals) == 0 {
		return
	}
	if err := env.notifier.NotifyBacklog(ctx, totals); err != nil {
		logging.WarnWithContext(env.logger, "backlog notification failed", "notify_failed", logging.Error(err))
	}
}

func printSend(cmd *cobra.Command, what string, result dispatch.SendResult) {
	fmt.Fprintf(cmd.OutOrStdout(), "Sent %d of %d queued %s, failed %d\n", result.Sent, result.Attempted, what, result.Failed)
}
