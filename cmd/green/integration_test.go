//go:build integration

package main

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getProjectRoot returns the path to the green project root
func getProjectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	// cmd/green/integration_test.go -> project root
	return filepath.Join(filepath.Dir(filename), "..", "..")
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestServeIntegration_HealthCheck(t *testing.T) {
	projectRoot := getProjectRoot()
	dir := t.TempDir()
	binary := filepath.Join(dir, "green")

	// Build green first
	buildCmd := exec.Command("go", "build", "-o", binary, "./cmd/green")
	buildCmd.Dir = projectRoot
	output, err := buildCmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(output))

	ca := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(ca, []byte("-----BEGIN CERTIFICATE-----\n"), 0o644))
	port := freePort(t)
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf("ca_path: %s\nport: %d\nassets_path: %s\n", ca, port, dir)), 0o644))

	cmd := exec.Command(binary, "serve", "--config", cfgPath)
	require.NoError(t, cmd.Start())
	defer func() {
		cmd.Process.Kill()
		cmd.Wait()
	}()

	url := fmt.Sprintf("http://127.0.0.1:%d/healthcheck", port)
	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, _ := io.ReadAll(resp.Body)
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 100*time.Millisecond)

	assert.Contains(t, body, "SYSTEM STATUS: ONLINE")
}
