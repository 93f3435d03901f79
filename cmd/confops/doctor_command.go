package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"confops/internal/preflight"
	"confops/internal/runlock"
)

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
	ansiBlue  = "\x1b[34m"
)

const checkLabelWidth = 24

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var probeLLM bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, queue store and vendor settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{ProbeLLM: probeLLM})

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderChecks("confops doctor", results, colorize) {
				fmt.Fprintln(out, line)
			}
			lock := "free"
			if pid := runlock.Holder(cfg.LockPath()); pid > 0 {
				lock = fmt.Sprintf("held by pid %d", pid)
			}
			fmt.Fprintln(out, renderInfoLine("Run lock", lock, colorize))

			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d of %d checks failed", len(failed), len(results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&probeLLM, "probe-llm", false, "Send a test completion to the language model")
	return cmd
}

func renderChecks(title string, results []preflight.Result, colorize bool) []string {
	heading := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(heading))
	if colorize {
		heading, rule = ansiBlue+heading+ansiReset, ansiBlue+rule+ansiReset
	}
	lines := []string{heading, rule}
	for _, r := range results {
		lines = append(lines, renderCheckLine(r, colorize))
	}
	return lines
}

func renderCheckLine(r preflight.Result, colorize bool) string {
	label, color := "ERROR", ansiRed
	if r.Passed {
		label, color = "OK", ansiGreen
	}
	return paint(formatLine(r.Name, label, r.Detail), color, colorize)
}

func renderInfoLine(name, detail string, colorize bool) string {
	return paint(formatLine(name, "INFO", detail), ansiBlue, colorize)
}

func formatLine(name, label, detail string) string {
	status := "[" + label + "]"
	if detail != "" {
		status += " " + detail
	}
	return fmt.Sprintf("  %-*s %s", checkLabelWidth, name+":", status)
}

func paint(line, color string, colorize bool) string {
	if !colorize {
		return line
	}
	return color + line + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
