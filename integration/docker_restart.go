//go:build integration
// +build integration

package integration

import (
	"context"
	"os/exec"
	"testing"
)

// restartServices bounces the named compose services and waits until the
// gateway reports every upstream ready again.
func restartServices(t *testing.T, ctx context.Context, services ...string) {
	t.Helper()

	args := append([]string{"compose"}, composeFileArgs()...)
	args = append(args, "restart")
	args = append(args, services...)

	out, err := exec.CommandContext(ctx, "docker", args...).CombinedOutput()
	if err != nil {
		t.Fatalf("docker %v failed: %v\n%s", args, err, string(out))
	}
	waitReady(t, ctx, baseURL+"/readyz")
}

func composeFileArgs() []string {
	if f := getenv("E2E_COMPOSE_FILE", ""); f != "" {
		return []string{"-f", f}
	}
	return nil
}
