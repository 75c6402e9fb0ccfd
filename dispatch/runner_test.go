package dispatch

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aouyang1/inkframe/testutil"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestExecRunner(t *testing.T) {
	sh := requireShell(t)
	dir := t.TempDir()

	tests := []struct {
		name       string
		body       string
		wantExit   int
		wantStdout string
		wantStderr string
	}{
		{name: "echo args", body: `echo "$1 $2"`, wantStdout: "horizontal /img.png\n"},
		{name: "stderr and exit", body: "echo oops >&2\nexit 3", wantExit: 3, wantStderr: "oops\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := testutil.WriteFile(t, dir, strings.ReplaceAll(tt.name, " ", "_")+".sh", []byte(tt.body+"\n"))
			r := ExecRunner{Interpreter: sh, Timeout: 10 * time.Second}

			res, err := r.Run(context.Background(), script, "horizontal", "/img.png", filepath.Join(dir, "out.h"))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if res.ExitCode != tt.wantExit || res.Stdout != tt.wantStdout || res.Stderr != tt.wantStderr {
				t.Errorf("Run() = %+v", res)
			}
		})
	}
}

func TestExecRunner_Timeout(t *testing.T) {
	sh := requireShell(t)
	script := testutil.WriteFile(t, t.TempDir(), "slow.sh", []byte("sleep 10\n"))

	start := time.Now()
	res, err := ExecRunner{Interpreter: sh, Timeout: 200 * time.Millisecond}.Run(context.Background(), script)
	if err == nil {
		t.Fatal("Run() error = nil, want timeout")
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
	if elapsed := time.Since(start); elapsed > 8*time.Second {
		t.Errorf("Run() took %s", elapsed)
	}
}

func TestExecRunner_MissingInterpreter(t *testing.T) {
	r := ExecRunner{Interpreter: filepath.Join(t.TempDir(), "no-such-python")}
	if _, err := r.Run(context.Background(), "render.py"); err == nil {
		t.Error("Run() error = nil")
	}
}
