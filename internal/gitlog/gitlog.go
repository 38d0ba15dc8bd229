// Package gitlog reads commit history from a local git repository.
//
// The engine treats history as a pull-based, finite sequence of commit
// records. This package shells out to the git CLI rather than linking a
// repository library; the same invocation works against any checkout and
// keeps the binary free of repository-format knowledge.
package gitlog

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Commit is one history record: identifier, timestamp, summary text, and
// the list of files the commit touched.
type Commit struct {
	SHA     string
	Time    time.Time
	Summary string
	Files   []string

	// Parents is the number of parent commits. More than one marks a merge.
	Parents int
}

// IsMerge reports whether the commit has more than one parent.
func (c Commit) IsMerge() bool {
	return c.Parents > 1
}

// Reader yields up to N most recent commits from a history source.
type Reader interface {
	Recent(ctx context.Context, limit int) ([]Commit, error)
}

// record and field separators used in the custom git log format. Unit and
// record separator bytes cannot appear in commit subjects or file paths.
const (
	recordSep = "\x1e"
	fieldSep  = "\x1f"
)

// CLIReader reads history by invoking the git binary against a repository
// working directory.
type CLIReader struct {
	repoPath string
}

// NewReader creates a reader for the repository at repoPath.
func NewReader(repoPath string) *CLIReader {
	return &CLIReader{repoPath: repoPath}
}

// Recent returns up to limit most recent commits, newest first. A repository
// with no commits yields an empty slice, not an error.
func (r *CLIReader) Recent(ctx context.Context, limit int) ([]Commit, error) {
	if limit <= 0 {
		return nil, nil
	}

	format := recordSep + "%H" + fieldSep + "%ct" + fieldSep + "%P" + fieldSep + "%s"
	cmd := exec.CommandContext(ctx, "git",
		"log",
		"--max-count="+strconv.Itoa(limit),
		"--pretty=format:"+format,
		"--name-only",
	)
	cmd.Dir = r.repoPath

	out, err := cmd.Output()
	if err != nil {
		// A repository with no commits makes git log exit non-zero; treat
		// that as an empty history rather than a failure.
		if ee, ok := err.(*exec.ExitError); ok {
			msg := string(ee.Stderr)
			if strings.Contains(msg, "does not have any commits") {
				return nil, nil
			}
			return nil, fmt.Errorf("git log: %s", strings.TrimSpace(msg))
		}
		return nil, fmt.Errorf("git log: %w", err)
	}

	return parseLog(out)
}

// parseLog converts raw git log output (custom format above, with
// --name-only file blocks) into Commit records.
func parseLog(out []byte) ([]Commit, error) {
	var commits []Commit

	for _, record := range strings.Split(string(out), recordSep) {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}

		// First line is the header; remaining non-empty lines are files.
		lines := strings.Split(record, "\n")
		fields := strings.Split(lines[0], fieldSep)
		if len(fields) != 4 {
			return nil, fmt.Errorf("malformed log record: %q", lines[0])
		}

		ts, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed commit timestamp %q: %w", fields[1], err)
		}

		parents := 0
		if p := strings.TrimSpace(fields[2]); p != "" {
			parents = len(strings.Fields(p))
		}

		var files []string
		for _, line := range lines[1:] {
			line = strings.TrimSpace(line)
			if line != "" {
				files = append(files, line)
			}
		}

		commits = append(commits, Commit{
			SHA:     fields[0],
			Time:    time.Unix(ts, 0).UTC(),
			Summary: fields[3],
			Files:   files,
			Parents: parents,
		})
	}

	return commits, nil
}
