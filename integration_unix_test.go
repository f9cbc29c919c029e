//go:build unix

package daemonize

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// TestDaemonHelperProcess is not a real test. It is the program the
// detachment tests launch: re-executed copies of the test binary walk
// the same staged bootstrap a production binary would.
func TestDaemonHelperProcess(t *testing.T) {
	if os.Getenv("DAEMONIZE_HELPER") != "1" {
		return
	}

	hold, err := time.ParseDuration(os.Getenv("DAEMONIZE_HOLD"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "bad hold duration: %v\n", err)
		os.Exit(3)
	}

	d := New(os.Getenv("DAEMONIZE_NAME")).
		WithPIDFile(os.Getenv("DAEMONIZE_PIDFILE")).
		WithWorkingDirectory(os.TempDir())

	if err := d.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "daemonize: %v\n", err)
		os.Exit(3)
	}

	// Only the final daemon reaches this point; earlier stages exit
	// inside Start.
	time.Sleep(hold)
	os.Exit(0)
}

// launchHelper starts the test binary as the daemon launcher and
// returns its combined output and exit error.
func launchHelper(t *testing.T, name, pidPath string, hold time.Duration) (string, error) {
	t.Helper()

	cmd := exec.Command(os.Args[0], "-test.run=TestDaemonHelperProcess")
	for _, kv := range os.Environ() {
		// Supervision must not be inherited from the test runner
		if strings.HasPrefix(kv, NotifySocketEnv+"=") {
			continue
		}
		cmd.Env = append(cmd.Env, kv)
	}
	cmd.Env = append(cmd.Env,
		"DAEMONIZE_HELPER=1",
		"DAEMONIZE_NAME="+name,
		"DAEMONIZE_PIDFILE="+pidPath,
		"DAEMONIZE_HOLD="+hold.String(),
	)

	out, err := cmd.CombinedOutput()
	return string(out), err
}

func processAlive(pid int) bool {
	return unix.Kill(pid, 0) == nil
}

func TestDetachedDaemonLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns real daemon processes")
	}

	name := testIdentity(t)
	pidPath := filepath.Join(t.TempDir(), name+".pid")

	out, err := launchHelper(t, name, pidPath, 3*time.Second)
	if err != nil {
		t.Fatalf("launcher failed: %v\noutput: %s", err, out)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pid, err := WaitForPID(ctx, pidPath)
	if err != nil {
		t.Fatalf("waiting for pid record: %v", err)
	}
	if pid == os.Getpid() {
		t.Fatal("pid record names the test process; no detachment happened")
	}
	if !processAlive(pid) {
		t.Fatalf("daemon pid %d is not alive", pid)
	}

	// A second launch against the live instance must be refused
	out, err = launchHelper(t, name, pidPath, time.Second)
	if err == nil {
		t.Fatalf("second launch succeeded against a live instance\noutput: %s", out)
	}
	if !strings.Contains(out, "already running") {
		t.Errorf("second launch output %q should name the live instance", out)
	}

	// Once the daemon exits the identity is free again
	deadline := time.Now().Add(10 * time.Second)
	for processAlive(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("daemon pid %d still alive past its hold period", pid)
		}
		time.Sleep(50 * time.Millisecond)
	}

	out, err = launchHelper(t, name, pidPath, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("relaunch after daemon exit failed: %v\noutput: %s", err, out)
	}
}
