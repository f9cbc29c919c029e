package daemonize

import (
	"os"
	"reflect"
	"testing"
)

func TestBuildEnviron(t *testing.T) {
	base := []string{"HOME=/root", "PATH=/bin", "TERM=xterm"}

	tests := []struct {
		name      string
		clear     bool
		overrides map[string]string
		want      []string
	}{
		{
			name: "no directives keeps base",
			want: []string{"HOME=/root", "PATH=/bin", "TERM=xterm"},
		},
		{
			name:  "clear drops inherited",
			clear: true,
			want:  []string{},
		},
		{
			name:      "override replaces in place",
			overrides: map[string]string{"PATH": "/usr/bin"},
			want:      []string{"HOME=/root", "PATH=/usr/bin", "TERM=xterm"},
		},
		{
			name:      "new keys appended sorted",
			overrides: map[string]string{"ZZZ": "1", "AAA": "2"},
			want:      []string{"HOME=/root", "PATH=/bin", "TERM=xterm", "AAA=2", "ZZZ=1"},
		},
		{
			name:      "clear with overrides keeps only overrides",
			clear:     true,
			overrides: map[string]string{"PATH": "/bin", "LANG": "C"},
			want:      []string{"LANG=C", "PATH=/bin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildEnviron(base, tt.clear, tt.overrides)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("buildEnviron() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReplaceEnv(t *testing.T) {
	t.Run("replaces existing entry", func(t *testing.T) {
		got := replaceEnv([]string{"A=1", "B=2"}, "A", "9")
		want := []string{"A=9", "B=2"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("replaceEnv() = %v, want %v", got, want)
		}
	})

	t.Run("appends missing entry", func(t *testing.T) {
		got := replaceEnv([]string{"A=1"}, "C", "3")
		want := []string{"A=1", "C=3"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("replaceEnv() = %v, want %v", got, want)
		}
	})
}

func TestApplyEnviron(t *testing.T) {
	t.Setenv("DAEMONIZE_TEST_KEEP", "original")

	if err := applyEnviron(false, map[string]string{"DAEMONIZE_TEST_SET": "value"}); err != nil {
		t.Fatalf("applyEnviron() error = %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("DAEMONIZE_TEST_SET") })

	if got := os.Getenv("DAEMONIZE_TEST_KEEP"); got != "original" {
		t.Errorf("inherited variable = %q, want %q", got, "original")
	}
	if got := os.Getenv("DAEMONIZE_TEST_SET"); got != "value" {
		t.Errorf("override = %q, want %q", got, "value")
	}
}
