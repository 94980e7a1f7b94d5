package cli

import (
	"bytes"
	"strings"
	"testing"
)

// execute runs a fresh command tree with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	err := root.Execute()
	return stdout.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "crpt version "+version) {
		t.Errorf("unexpected output %q", out)
	}
}

func TestRootHelp(t *testing.T) {
	out, err := execute(t)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	for _, sub := range []string{"submit", "validate", "simulate", "version"} {
		if !strings.Contains(out, sub) {
			t.Errorf("help should list %s:\n%s", sub, out)
		}
	}
}

func TestUnknownCommand(t *testing.T) {
	if _, err := execute(t, "fetch"); err == nil {
		t.Errorf("expected error for unknown command")
	}
}
