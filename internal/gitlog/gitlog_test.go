package gitlog

import "testing"

const sampleLog = "\x1e" + "abc123" + "\x1f" + "1700000000" + "\x1f" + "parent1" + "\x1f" + "feat(auth): add JWT validation" + "\n\n" +
	"auth/middleware.go\nauth/middleware_test.go\n" +
	"\x1e" + "def456" + "\x1f" + "1700000100" + "\x1f" + "parent1 parent2" + "\x1f" + "Merge branch 'main'" + "\n\n" +
	"\x1e" + "0a0b0c" + "\x1f" + "1699999000" + "\x1f" + "" + "\x1f" + "initial commit" + "\n\n" +
	"README.md\n"

func TestParseLog(t *testing.T) {
	commits, err := parseLog([]byte(sampleLog))
	if err != nil {
		t.Fatalf("parseLog: %v", err)
	}
	if len(commits) != 3 {
		t.Fatalf("got %d commits, want 3", len(commits))
	}

	first := commits[0]
	if first.SHA != "abc123" {
		t.Errorf("SHA = %q, want abc123", first.SHA)
	}
	if first.Summary != "feat(auth): add JWT validation" {
		t.Errorf("Summary = %q", first.Summary)
	}
	if len(first.Files) != 2 || first.Files[0] != "auth/middleware.go" {
		t.Errorf("Files = %v", first.Files)
	}
	if first.Time.Unix() != 1700000000 {
		t.Errorf("Time = %v", first.Time)
	}
	if first.IsMerge() {
		t.Error("single-parent commit reported as merge")
	}
}

func TestParseLog_MergeDetection(t *testing.T) {
	commits, err := parseLog([]byte(sampleLog))
	if err != nil {
		t.Fatalf("parseLog: %v", err)
	}

	merge := commits[1]
	if !merge.IsMerge() {
		t.Error("two-parent commit not reported as merge")
	}
	if len(merge.Files) != 0 {
		t.Errorf("merge Files = %v, want none", merge.Files)
	}

	root := commits[2]
	if root.Parents != 0 {
		t.Errorf("root commit Parents = %d, want 0", root.Parents)
	}
}

func TestParseLog_Empty(t *testing.T) {
	commits, err := parseLog(nil)
	if err != nil {
		t.Fatalf("parseLog: %v", err)
	}
	if len(commits) != 0 {
		t.Errorf("got %d commits from empty output, want 0", len(commits))
	}
}

func TestParseLog_MalformedHeader(t *testing.T) {
	if _, err := parseLog([]byte("\x1e" + "only-two\x1ffields\n")); err == nil {
		t.Error("expected error for malformed record")
	}
}
