// Package extract turns commit history into candidate patterns.
//
// Extraction maps one commit to one candidate: the commit's subject becomes
// the pattern description, its changed files become the pattern file set,
// and the candidate id is derived deterministically from the commit and
// description so repeated extraction of the same history yields the same
// candidates.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/blackwell-systems/recall/internal/gitlog"
)

// Candidate is a pattern candidate produced from a single commit.
type Candidate struct {
	// ID is hex(SHA-256(source commit || description)), stable across runs.
	ID string

	// Description is the commit subject with any conventional-commit
	// prefix stripped.
	Description string

	// Files lists the paths the commit touched, sorted.
	Files []string

	// SourceCommit is the originating commit identifier.
	SourceCommit string

	// CreatedAt is the commit timestamp.
	CreatedAt time.Time

	// Tags carries the commit type plus detected language tags.
	Tags []string
}

// conventionalRe matches conventional-commit subjects: type(scope)?: subject.
var conventionalRe = regexp.MustCompile(
	`^(feat|fix|docs|style|refactor|perf|test|chore|build|ci)(\([^)]+\))?: (.+)$`,
)

// automatedMarkers flag commits produced by tooling rather than a person.
var automatedMarkers = []string{
	"Merge pull request",
	"Merge branch",
	"Auto-generated",
	"Automated commit",
	"Version bump",
	"[skip ci]",
	"[ci skip]",
}

// languageByExt maps file extensions to language tags.
var languageByExt = map[string]string{
	".rs":   "rust",
	".py":   "python",
	".ts":   "typescript",
	".tsx":  "typescript",
	".js":   "javascript",
	".jsx":  "javascript",
	".go":   "go",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".cc":   "cpp",
	".cxx":  "cpp",
	".hpp":  "cpp",
}

// Extractor produces pattern candidates from a history reader.
type Extractor struct {
	reader gitlog.Reader
}

// New creates an extractor over the given history reader.
func New(reader gitlog.Reader) *Extractor {
	return &Extractor{reader: reader}
}

// Extract walks up to limit most recent commits and returns the candidates
// they yield. Merge commits, automated commits, and commits touching no
// files are skipped. An empty history yields an empty slice, not an error.
func (e *Extractor) Extract(ctx context.Context, limit int) ([]Candidate, error) {
	commits, err := e.reader.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(commits))
	for _, c := range commits {
		if cand, ok := FromCommit(c); ok {
			candidates = append(candidates, cand)
		}
	}
	return candidates, nil
}

// FromCommit converts one commit into a candidate. The second return value
// is false when the commit is skipped (merge, automated, or no files).
func FromCommit(c gitlog.Commit) (Candidate, bool) {
	if c.IsMerge() || isAutomated(c.Summary) || len(c.Files) == 0 {
		return Candidate{}, false
	}

	commitType, description := parseSummary(c.Summary)

	files := append([]string(nil), c.Files...)
	sort.Strings(files)

	tags := append([]string{commitType}, languageTags(files)...)

	return Candidate{
		ID:           candidateID(c.SHA, description),
		Description:  description,
		Files:        files,
		SourceCommit: c.SHA,
		CreatedAt:    c.Time,
		Tags:         tags,
	}, true
}

// candidateID derives the stable pattern identifier for a commit/description
// pair.
func candidateID(sha, description string) string {
	h := sha256.New()
	h.Write([]byte(sha))
	h.Write([]byte(description))
	return hex.EncodeToString(h.Sum(nil))
}

// parseSummary splits a commit subject into its conventional-commit type and
// the remaining description. Non-conventional subjects default to "chore"
// with the full subject as description.
func parseSummary(summary string) (commitType, description string) {
	firstLine := summary
	if i := strings.IndexByte(summary, '\n'); i >= 0 {
		firstLine = summary[:i]
	}

	if m := conventionalRe.FindStringSubmatch(firstLine); m != nil {
		return m[1], m[3]
	}
	return "chore", firstLine
}

// isAutomated reports whether a commit summary looks tool-generated.
func isAutomated(summary string) bool {
	for _, marker := range automatedMarkers {
		if strings.Contains(summary, marker) {
			return true
		}
	}
	return false
}

// languageTags derives sorted, de-duplicated language tags from file
// extensions.
func languageTags(files []string) []string {
	seen := make(map[string]bool)
	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f))
		if lang, ok := languageByExt[ext]; ok {
			seen[lang] = true
		}
	}

	tags := make([]string, 0, len(seen))
	for lang := range seen {
		tags = append(tags, lang)
	}
	sort.Strings(tags)
	return tags
}
