package daemonize

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStdioDevnull(t *testing.T) {
	f, owned, err := Devnull().open(false)
	if err != nil {
		t.Fatalf("open() error = %v", err)
	}
	if f == nil {
		t.Fatal("open() returned nil file for devnull")
	}
	if !owned {
		t.Error("devnull descriptor should be owned by the caller")
	}
	_ = f.Close()
}

func TestStdioUsePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	f, owned, err := UsePath(path).open(false)
	if err != nil {
		t.Fatalf("open() error = %v", err)
	}
	if !owned {
		t.Error("path descriptor should be owned by the caller")
	}
	if _, err := f.WriteString("hello\n"); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Errorf("sink content = %q, want %q", data, "hello\n")
	}

	// Append mode: a second open must not truncate
	f2, _, err := UsePath(path).open(false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f2.WriteString("again\n"); err != nil {
		t.Fatal(err)
	}
	_ = f2.Close()

	data, err = os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\nagain\n" {
		t.Errorf("sink content = %q, want %q", data, "hello\nagain\n")
	}
}

func TestStdioUseFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "sink")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	got, owned, err := UseFile(f).open(false)
	if err != nil {
		t.Fatalf("open() error = %v", err)
	}
	if got != f {
		t.Error("open() should hand back the caller's file")
	}
	if owned {
		t.Error("caller-supplied descriptor must not be owned")
	}
}

func TestStdioInherit(t *testing.T) {
	f, owned, err := Inherit().open(false)
	if err != nil {
		t.Fatalf("open() error = %v", err)
	}
	if f != nil {
		t.Error("inherit should keep the current binding")
	}
	if owned {
		t.Error("inherit owns nothing")
	}
}

func TestStdioString(t *testing.T) {
	if got := Devnull().String(); got != "devnull" {
		t.Errorf("Devnull().String() = %q", got)
	}
	if got := UsePath("/var/log/x.log").String(); got != "path:/var/log/x.log" {
		t.Errorf("UsePath().String() = %q", got)
	}
	if got := Inherit().String(); got != "inherit" {
		t.Errorf("Inherit().String() = %q", got)
	}
}
