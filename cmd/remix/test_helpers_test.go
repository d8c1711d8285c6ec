package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// writeTestConfig lays down a config file rooted in a temp directory and
// returns its path plus the base directory.
func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()

	base := t.TempDir()
	cfgPath := filepath.Join(base, "remix.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
output_dir = %q
log_dir = %q

[models]
default = "testnet"

[separation]
chunk_seconds = 10
overlap_seconds = 1

[decompose]
components = 2
window_size = 256
hop_size = 64

[logging]
level = "error"
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "output"),
		filepath.Join(base, "logs"))

	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return cfgPath, base
}

// runCommand executes the CLI in-process and captures its output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}
