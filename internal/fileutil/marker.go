package fileutil

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/gofrs/flock"
)

// ReadLines returns the non-empty trimmed lines of path. A missing file reads
// as empty.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// ContainsLine reports whether path holds line.
func ContainsLine(path, line string) (bool, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return false, err
	}
	for _, l := range lines {
		if l == line {
			return true, nil
		}
	}
	return false, nil
}

// AppendLineIfAbsent appends line to path unless it is already present. The
// check and the append run under an exclusive lock on path+".lock", so
// concurrent callers in any process append a line at most once. It reports
// whether the line was added.
func AppendLineIfAbsent(path, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.ContainsAny(line, "\r\n") {
		return false, fmt.Errorf("invalid marker line %q", line)
	}
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return false, fmt.Errorf("lock %s: %w", path, err)
	}
	defer func() { _ = lock.Unlock() }()

	present, err := ContainsLine(path, line)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	if present {
		return false, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("append %s: %w", path, err)
	}
	return true, f.Close()
}
