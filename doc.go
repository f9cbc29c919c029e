// Package daemonize turns the calling process into a supervised
// background service on Unix and Windows, guaranteeing single-instance
// execution, safe privilege transition, and crash-visible I/O.
//
// The core functionality centers around the Daemon type, a fluent
// builder that collects configuration and then performs the ordered
// bootstrap sequence when Start is called:
//
//	d := daemonize.New("myservice").
//	    WithPIDFile("/var/run/myservice.pid").
//	    WithWorkingDirectory("/var/lib/myservice").
//	    WithStdout(daemonize.UsePath("/var/log/myservice.log")).
//	    WithStderr(daemonize.UsePath("/var/log/myservice.log")).
//	    WithUser("myservice").
//	    WithGroup("myservice").
//	    WithPrivilegedAction(setup)
//
//	if err := d.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	// Only the final daemon process reaches this point.
//	serveForever()
//
// # Bootstrap sequence
//
// On Unix, Start first acquires the instance lock, then inspects
// NOTIFY_SOCKET. When a service manager is supervising the process, no
// detachment happens: the process stays in the foreground, applies its
// environment, stdio, chroot and privilege configuration, and sends a
// READY=1 datagram once the privileged action has succeeded. When
// started manually, the process detaches with the re-exec equivalent
// of the classic double fork: the original invocation spawns a new
// session leader and exits, the session leader spawns the final daemon
// and exits, and the final daemon completes the bootstrap. The held
// lock descriptor is inherited across both stages, so the lock is
// never dropped and re-acquired mid-flight.
//
// On Windows, Start acquires a global named mutex, then relaunches the
// executable as a detached, console-less process with the configured
// stdio handles bound at spawn time.
//
// # Single-instance locking
//
// Holding the instance lock is the sole authority that no other
// instance with the same identity is running. Acquisition is
// non-blocking: a second bootstrap for the same identity fails
// immediately with ErrAlreadyRunning. The lock is released by the
// operating system when the daemon exits.
//
// # Launcher-side helpers
//
// WatchPID and WaitForPID let the launching side observe the daemon's
// pid record appearing on disk, which is the supported way to learn
// the final daemon's pid after the original invocation has exited.
//
// # Design philosophy
//
// This library prioritizes:
//
//   - A fixed, inspectable bootstrap order with fail-closed semantics
//     for the security-relevant steps (chroot before privilege drop,
//     no continuation on partial failure)
//   - No hidden global state: the lock is an explicit handle, released
//     on every abort path
//   - Crash visibility: once stdio has been redirected, every fatal
//     bootstrap failure, including a panicking privileged action, is
//     written to the redirected sink before the process exits
//
// It is not a service-manager replacement: there is no restart
// supervision, no dependency ordering between services, and no Windows
// Service Control Manager integration.
package daemonize
