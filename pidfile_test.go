package daemonize

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	pf := NewPIDFile(path)

	if err := pf.Write(os.Getpid()); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	pid, err := pf.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("Read() = %d, want %d", pid, os.Getpid())
	}
}

func TestPIDFileRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	pf := NewPIDFile(path)

	if err := pf.Write(1111); err != nil {
		t.Fatal(err)
	}
	if err := pf.Write(2222); err != nil {
		t.Fatal(err)
	}

	pid, err := pf.Read()
	if err != nil {
		t.Fatal(err)
	}
	if pid != 2222 {
		t.Errorf("Read() after rewrite = %d, want 2222", pid)
	}
}

func TestPIDFileReadInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"non-numeric", "not-a-pid\n"},
		{"zero", "0\n"},
		{"negative", "-5\n"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.pid")
			if err := os.WriteFile(path, []byte(tt.data), 0o644); err != nil {
				t.Fatal(err)
			}

			_, err := NewPIDFile(path).Read()
			if !errors.Is(err, ErrInvalidPID) {
				t.Errorf("Read() error = %v, want ErrInvalidPID", err)
			}
		})
	}
}

func TestPIDFileReadMissing(t *testing.T) {
	pf := NewPIDFile(filepath.Join(t.TempDir(), "absent.pid"))
	_, err := pf.Read()
	if !os.IsNotExist(err) {
		t.Errorf("Read() error = %v, want not-exist", err)
	}
}

func TestPIDFileRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	pf := NewPIDFile(path)

	if err := pf.Write(1234); err != nil {
		t.Fatal(err)
	}
	if !pf.Exists() {
		t.Fatal("record missing after Write()")
	}

	if err := pf.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if pf.Exists() {
		t.Error("record present after Remove()")
	}

	// Removing an absent record is not an error
	if err := pf.Remove(); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}
