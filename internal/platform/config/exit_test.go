package config

import (
	"bytes"
	"testing"
)

func captureExit(t *testing.T) *int {
	t.Helper()
	code := -1
	previous := osExit
	osExit = func(c int) { code = c }
	t.Cleanup(func() { osExit = previous })
	return &code
}

func TestExitToWritesMessageAndExitCode(t *testing.T) {
	code := captureExit(t)
	var buf bytes.Buffer

	exitTo(&buf, 1, "fatal: %s", "something broke")

	if *code != 1 {
		t.Fatalf("expected exit code 1, got %d", *code)
	}
	if buf.String() != "fatal: something broke\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestExitToKeepsSingleTrailingNewline(t *testing.T) {
	captureExit(t)
	var buf bytes.Buffer

	exitTo(&buf, 1, "done\n")

	if buf.String() != "done\n" {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestExitWithCodeNormalizesNonPositiveCodes(t *testing.T) {
	code := captureExit(t)

	ExitWithCode(0, "bad")
	if *code != 1 {
		t.Fatalf("expected exit code 1, got %d", *code)
	}

	ExitWithCode(2, "integrity")
	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
}
