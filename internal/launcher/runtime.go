package launcher

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/local-ai-packaged/orchestrator/internal/procrunner"
)

// DetectRuntime resolves which container engine binary to drive, honoring
// ORCHESTRATOR_RUNTIME (docker|podman|auto, default auto).
func DetectRuntime(ctx context.Context) (string, error) {
	desired := strings.ToLower(strings.TrimSpace(os.Getenv("ORCHESTRATOR_RUNTIME")))

	switch desired {
	case "docker":
		if runtimeAvailable(ctx, "docker") {
			return "docker", nil
		}
		return "", fmt.Errorf("launcher: docker requested via ORCHESTRATOR_RUNTIME but not available")
	case "podman":
		if runtimeAvailable(ctx, "podman") {
			return "podman", nil
		}
		return "", fmt.Errorf("launcher: podman requested via ORCHESTRATOR_RUNTIME but not available")
	case "", "auto":
		if runtimeAvailable(ctx, "docker") {
			return "docker", nil
		}
		if runtimeAvailable(ctx, "podman") {
			return "podman", nil
		}
		return "", fmt.Errorf("launcher: no container runtime detected (docker or podman required)")
	default:
		return "", fmt.Errorf("launcher: unknown ORCHESTRATOR_RUNTIME %q (expected docker|podman|auto)", desired)
	}
}

func runtimeAvailable(ctx context.Context, binary string) bool {
	status, err := procrunner.Run(ctx, []string{binary, "info"}, procrunner.Options{Capture: true})
	return err == nil && status.ExitCode == 0
}
