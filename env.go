package daemonize

import (
	"os"
	"sort"
	"strings"
)

// buildEnviron computes the environment for a spawned bootstrap stage
// from the inherited environment, the clear directive, and the
// explicit overrides. Overrides replace inherited entries in place;
// new keys are appended in sorted order so the result is deterministic.
func buildEnviron(base []string, clear bool, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))

	if !clear {
		for _, kv := range base {
			key, _, ok := strings.Cut(kv, "=")
			if !ok {
				continue
			}
			if v, replaced := overrides[key]; replaced {
				env = append(env, key+"="+v)
				seen[key] = true
				continue
			}
			env = append(env, kv)
		}
	}

	missing := make([]string, 0, len(overrides))
	for key := range overrides {
		if !seen[key] {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	for _, key := range missing {
		env = append(env, key+"="+overrides[key])
	}

	return env
}

// replaceEnv returns env with key set to value, replacing an existing
// entry or appending one.
func replaceEnv(env []string, key, value string) []string {
	out := make([]string, 0, len(env)+1)
	replaced := false
	for _, kv := range env {
		if k, _, ok := strings.Cut(kv, "="); ok && k == key {
			out = append(out, key+"="+value)
			replaced = true
			continue
		}
		out = append(out, kv)
	}
	if !replaced {
		out = append(out, key+"="+value)
	}
	return out
}

// applyEnviron applies the clear directive and the overrides to the
// current process. Used on the supervised path, where no new process
// is spawned.
func applyEnviron(clear bool, overrides map[string]string) error {
	if clear {
		os.Clearenv()
	}
	for key, value := range overrides {
		if err := os.Setenv(key, value); err != nil {
			return stageErr(StageEnv, key, ErrInvalidConfig, err)
		}
	}
	return nil
}
