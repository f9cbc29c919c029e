package daemonize

import "os"

type stdioMode int

const (
	stdioDevnull stdioMode = iota
	stdioFile
	stdioPath
	stdioInherit
)

// Stdio describes where one of the daemon's standard streams is bound
// during bootstrap. The zero value discards the stream.
type Stdio struct {
	mode stdioMode
	file *os.File
	path string
}

// Devnull discards the stream. This is the default for all three
// streams.
func Devnull() Stdio {
	return Stdio{mode: stdioDevnull}
}

// UseFile redirects the stream to an already-open file. The caller
// keeps ownership of the descriptor.
func UseFile(f *os.File) Stdio {
	return Stdio{mode: stdioFile, file: f}
}

// UsePath redirects the stream to the named file, created if missing
// and opened in append mode during bootstrap.
func UsePath(path string) Stdio {
	return Stdio{mode: stdioPath, path: path}
}

// Inherit keeps the stream attached to its current descriptor. Useful
// for debugging; a detached daemon inheriting a terminal defeats the
// purpose of daemonizing.
func Inherit() Stdio {
	return Stdio{mode: stdioInherit}
}

// String returns a human-readable description of the binding
func (s Stdio) String() string {
	switch s.mode {
	case stdioFile:
		if s.file != nil {
			return "file:" + s.file.Name()
		}
		return "file:<nil>"
	case stdioPath:
		return "path:" + s.path
	case stdioInherit:
		return "inherit"
	default:
		return "devnull"
	}
}

// open resolves the binding to a concrete descriptor. A nil file with
// a nil error means the stream keeps its current binding. The second
// return reports whether the caller owns the descriptor and must close
// it after handing it off.
func (s Stdio) open(forRead bool) (*os.File, bool, error) {
	switch s.mode {
	case stdioInherit:
		return nil, false, nil
	case stdioFile:
		return s.file, false, nil
	case stdioPath:
		flag := os.O_CREATE | os.O_WRONLY | os.O_APPEND
		if forRead {
			flag = os.O_RDONLY
		}
		f, err := os.OpenFile(s.path, flag, 0o644)
		if err != nil {
			return nil, false, err
		}
		return f, true, nil
	default:
		f, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
		if err != nil {
			return nil, false, err
		}
		return f, true, nil
	}
}
