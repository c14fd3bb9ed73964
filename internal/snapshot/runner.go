package snapshot

import (
	"fmt"
	"os/exec"
)

// Runner invokes an external tool and returns its combined
// stdout/stderr. The output is logged by the caller, never parsed.
type Runner interface {
	Run(name string, args ...string) ([]byte, error)
}

// ExecRunner runs tools with os/exec. Invocations block until the
// tool exits; no timeout is imposed.
type ExecRunner struct{}

// Run executes the named tool and captures its combined output.
func (ExecRunner) Run(name string, args ...string) ([]byte, error) {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("running %s: %w", name, err)
	}
	return out, nil
}
