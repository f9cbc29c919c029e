//go:build unix

package daemonize

import (
	"fmt"
	"os"
	"strings"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"
)

// NotifySocketEnv names the Unix domain socket the supervising service
// manager listens on for readiness notifications. Its presence selects
// supervised mode.
const NotifySocketEnv = "NOTIFY_SOCKET"

// notifySocket returns the notification socket path when one is
// present and well-formed (absolute path or abstract-namespace
// address), or the empty string in manual mode. Detection happens once,
// before any fork decision.
func notifySocket() string {
	s := os.Getenv(NotifySocketEnv)
	if len(s) < 2 || (s[0] != '/' && s[0] != '@') {
		return ""
	}
	return s
}

// notifyReady sends the readiness handshake to the service manager: a
// single datagram of newline-joined KEY=VALUE tokens, minimally
// READY=1. Fire-and-forget by convention of the protocol; the caller
// treats failure as non-fatal. The socket variable is unset after the
// send so it does not leak into the daemon's children.
func notifyReady(socket string, pid int, status string) error {
	// The environment may have been rewritten since detection.
	if os.Getenv(NotifySocketEnv) != socket {
		if err := os.Setenv(NotifySocketEnv, socket); err != nil {
			return stageErr(StageNotify, socket, ErrNotify, err)
		}
	}

	state := []string{
		sdaemon.SdNotifyReady,
		fmt.Sprintf("MAINPID=%d", pid),
	}
	if status != "" {
		state = append(state, "STATUS="+status)
	}

	sent, err := sdaemon.SdNotify(true, strings.Join(state, "\n"))
	if err != nil {
		return stageErr(StageNotify, socket, ErrNotify, err)
	}
	if !sent {
		return stageErr(StageNotify, socket, ErrNotify,
			fmt.Errorf("no notification socket"))
	}
	return nil
}
