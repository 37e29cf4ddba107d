// Package testutil holds helpers shared by aishi tests.
package testutil

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"aishi/internal/chain"
)

// Well-known development accounts, used as deployer and holders in tests.
var (
	Deployer = chain.MustParseAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266")
	Alice    = chain.MustParseAddress("0x70997970c51812dc3a010c7d01b50e0d17dc79c8")
	Bob      = chain.MustParseAddress("0x3c44cdddb6a900fa2b585dd299e03d12fa4293bc")
)

// SetupTestEnv isolates HOME and XDG_DATA_HOME and clears AISHI_ variables
// for the duration of the test. Returns the temporary home directory.
func SetupTestEnv(t *testing.T) string {
	t.Helper()
	tmpHome := t.TempDir()

	t.Setenv("HOME", tmpHome)
	t.Setenv("XDG_DATA_HOME", "")
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, "AISHI_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}

	return tmpHome
}

// BuildAishiBinary builds the aishi command in the current directory with
// the testmode tag, which swaps the drand network for an offline stand-in.
func BuildAishiBinary(t *testing.T) string {
	t.Helper()

	binPath := filepath.Join(t.TempDir(), "aishi-test")
	buildCmd := exec.Command("go", "build", "-tags", "testmode", "-o", binPath, ".")
	if output, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("failed to build binary: %v\n%s", err, output)
	}

	return binPath
}

// Result is the outcome of one binary invocation.
type Result struct {
	Stdout string
	Stderr string
	Err    error
}

// RunBinary runs bin with args, extra environment and optional stdin.
func RunBinary(t *testing.T, bin string, env []string, stdin string, args ...string) Result {
	t.Helper()

	cmd := exec.Command(bin, args...)
	cmd.Env = append(os.Environ(), env...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	return Result{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}

// UUIDRegex is a compiled regex for validating UUID format.
var UUIDRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsUUID validates that a string is a valid UUID.
func IsUUID(s string) bool {
	return UUIDRegex.MatchString(s)
}
