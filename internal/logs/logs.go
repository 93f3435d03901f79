package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"confops/internal/services"
)

// RunLogPattern matches the files written by logging.NewFromConfig.
const RunLogPattern = "confops-*.log"

const pollInterval = 250 * time.Millisecond

// RunLogPath returns the log file of runID below dir.
func RunLogPath(dir, runID string) string {
	return filepath.Join(dir, "confops-"+strings.TrimSpace(runID)+".log")
}

// Latest returns the most recently modified run log in dir.
func Latest(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, RunLogPattern))
	if err != nil {
		return "", fmt.Errorf("list run logs: %w", err)
	}
	var newest string
	var newestMod time.Time
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest, newestMod = path, info.ModTime()
		}
	}
	if newest == "" {
		return "", services.Wrap(services.ErrNotFound, "logs", "latest", "no run logs in "+dir, nil)
	}
	return newest, nil
}

// Last returns up to n trailing lines of path and the offset just past them.
func Last(path string, n int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, services.Wrap(services.ErrNotFound, "logs", "open", "no log at "+path, err)
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	var window []string
	offset, err := scan(file, func(line string) {
		if n <= 0 {
			return
		}
		if len(window) == n {
			window = window[1:]
		}
		window = append(window, line)
	})
	if err != nil {
		return nil, 0, err
	}
	return window, offset, nil
}

// Follow calls emit for every line appended to path after offset until ctx
// is done. A partially written last line is held back until it ends.
func Follow(ctx context.Context, path string, offset int64, emit func(string)) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		next, err := readFrom(path, offset, emit)
		if err != nil {
			return err
		}
		offset = next
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	read, err := scan(file, emit)
	if err != nil {
		return offset, err
	}
	return offset + read, nil
}

// scan emits complete lines and returns the number of bytes they used.
func scan(r io.Reader, emit func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return consumed, nil
			}
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		emit(strings.TrimRight(line, "\r\n"))
	}
}
