//go:build linux

// Package unixfd provides platform-specific file descriptor
// operations.
package unixfd

import "golang.org/x/sys/unix"

// Dup2 duplicates oldfd onto newfd. Linux lacks the dup2 syscall on
// newer architectures, so dup3 is used throughout.
func Dup2(oldfd, newfd int) error {
	return unix.Dup3(oldfd, newfd, 0)
}
