package preflight

import (
	"context"

	"confops/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options tunes which checks RunAll performs.
type Options struct {
	// ProbeLLM issues a live completion against the configured LLM.
	ProbeLLM bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Video directory", cfg.Paths.VideoDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if cfg.Paths.TemplateFile != "" {
		results = append(results, CheckFile("Description template", cfg.Paths.TemplateFile))
	}

	results = append(results, CheckQueueStore(ctx, cfg))
	results = append(results, CheckCredentials(cfg)...)

	if opts.ProbeLLM {
		results = append(results, CheckLLM(ctx, "LLM", cfg.GetLLM()))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
