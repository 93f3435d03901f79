// Package logs finds and tails the per-run log files written below
// paths.log_dir. It backs `confops logs`, which shows the end of the latest
// run and can keep following it while a cron job is still working.
package logs
