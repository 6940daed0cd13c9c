//go:build integration

package integration

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"testing"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	URL        string
	Token      string
	Resource   string
	BinaryPath string
	Verbose    bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	resource := os.Getenv("STRAPI_TEST_RESOURCE")
	if resource == "" {
		resource = "articles"
	}

	return &TestConfig{
		URL:        os.Getenv("STRAPI_TEST_URL"),
		Token:      os.Getenv("STRAPI_TEST_TOKEN"),
		Resource:   resource,
		BinaryPath: getBinaryPath(),
		Verbose:    os.Getenv("STRAPI_VERBOSE") == "true",
	}
}

// getBinaryPath determines the path to the strapi binary
func getBinaryPath() string {
	if path := os.Getenv("STRAPI_BINARY_PATH"); path != "" {
		return path
	}

	for _, candidate := range []string{"../../strapi", "./strapi", "../strapi"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "strapi"
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.URL == "" {
		t.Skip("STRAPI_TEST_URL not set, skipping integration test")
	}

	if _, err := exec.LookPath(config.BinaryPath); err != nil {
		t.Skipf("strapi binary not found at %s, skipping integration test", config.BinaryPath)
	}
}

// CommandRunner runs the strapi binary against the configured server
type CommandRunner struct {
	config *TestConfig
	t      *testing.T
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	t.Helper()

	return &CommandRunner{
		config: config,
		t:      t,
	}
}

// Run executes a strapi command with the server URL and token in its
// environment and an empty home directory, and returns its output
func (runner *CommandRunner) Run(args ...string) (string, string, error) {
	cmd := exec.Command(runner.config.BinaryPath, args...) // #nosec G204
	cmd.Env = append(os.Environ(),
		"STRAPI_URL="+runner.config.URL,
		"STRAPI_TOKEN="+runner.config.Token,
		"HOME="+runner.t.TempDir(),
	)

	var stdoutBuf, stderrBuf bytes.Buffer

	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.BinaryPath, strings.Join(args, " "))
	}

	err := cmd.Run()
	stdout, stderr := stdoutBuf.String(), stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}
