package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"confops/internal/mapping"
	"confops/internal/publish"
	"confops/internal/queue"
	"confops/internal/services"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts and videos waiting on the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			counts, err := queue.Counts(cmd.Context(), store, queue.AllQueues()...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, queueTable(counts))

			tables, err := mapping.LoadTables(cfg.MappingDir())
			if err != nil && !errors.Is(err, services.ErrNotFound) {
				return err
			}
			totals, err := publish.New(store, nil, nil, nil, tables.Channels, nil).UnpublishedTotals(cmd.Context())
			if err != nil {
				return err
			}
			if len(totals) == 0 {
				fmt.Fprintln(out, "No videos waiting on the platform")
				return nil
			}
			fmt.Fprintln(out, backlogTable(totals))
			return nil
		},
	}
}

func queueTable(counts map[queue.Name]int) string {
	var rows [][]string
	total := 0
	for _, fam := range []queue.Family{queue.FamilyRelease, queue.FamilyPost, queue.FamilyEmail} {
		for i, name := range queue.Queues(fam) {
			label := ""
			if i == 0 {
				label = string(fam)
			}
			rows = append(rows, []string{label, name.String(), strconv.Itoa(counts[name])})
			total += counts[name]
		}
	}
	return tableSpec{
		title:   "Queues",
		headers: []string{"Family", "Queue", "Items"},
		rows:    rows,
		footer:  []string{"", "total", strconv.Itoa(total)},
		aligns:  []columnAlignment{alignLeft, alignLeft, alignRight},
	}.render()
}

func backlogTable(totals map[string]int) string {
	rows := make([][]string, 0, len(totals))
	sum := 0
	for _, channel := range publish.SortedChannels(totals) {
		name := channel
		if name == "" {
			name = "(no channel)"
		}
		rows = append(rows, []string{name, strconv.Itoa(totals[channel])})
		sum += totals[channel]
	}
	return tableSpec{
		title:   "Waiting on platform",
		headers: []string{"Channel", "Videos"},
		rows:    rows,
		footer:  []string{"total", strconv.Itoa(sum)},
		aligns:  []columnAlignment{alignLeft, alignRight},
	}.render()
}
