// Package launcher resolves compose invocations and drives the two
// interdependent stacks up in order under a shared project identity.
package launcher

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/local-ai-packaged/orchestrator/internal/logging"
	"github.com/local-ai-packaged/orchestrator/internal/procrunner"
)

// Profile is the closed set of acceleration profiles.
type Profile string

const (
	ProfileGPUNvidia Profile = "gpu-nvidia"
	ProfileGPUAMD    Profile = "gpu-amd"
	ProfileCPU       Profile = "cpu"
	ProfileNone      Profile = "none"
)

// DefaultPauseBetweenStacks is how long BringUp waits between the infra
// stack becoming ready and the ai stack being brought up.
const DefaultPauseBetweenStacks = 10 * time.Second

// Stack describes one of the two compose projects.
type Stack struct {
	Name             string
	ComposeFiles     []string
	Project          string
	ProfileFlag      bool
	OverlayIfPresent string
}

// StackLaunchFailed identifies which stack in a BringUp sequence failed.
type StackLaunchFailed struct {
	Stack string
	Err   error
}

func (e *StackLaunchFailed) Error() string {
	return fmt.Sprintf("launcher: %s stack failed to launch: %v", e.Stack, e.Err)
}

func (e *StackLaunchFailed) Unwrap() error { return e.Err }

// BringUp tears down the combined project unconditionally, then brings each
// stack up in order, pausing pauseBetween after the first stack.
func BringUp(ctx context.Context, runtimeBinary, project string, stacks []Stack, profile Profile, pauseBetween time.Duration, logger *logging.Logger) error {
	if err := tearDown(ctx, runtimeBinary, project, stacks, logger); err != nil {
		logger.Warn("launcher.teardown.failed", "pre-launch tear-down failed, continuing", map[string]interface{}{
			"error": err.Error(),
		})
	}

	for i, stack := range stacks {
		logger.Info("launcher.stack.start", "bringing up stack", map[string]interface{}{
			"stack": stack.Name,
		})

		if err := upOne(ctx, runtimeBinary, project, stack, profile); err != nil {
			logger.Error("launcher.stack.failed", "stack launch failed", map[string]interface{}{
				"stack": stack.Name,
				"error": err.Error(),
			})
			return &StackLaunchFailed{Stack: stack.Name, Err: err}
		}

		logger.Info("launcher.stack.running", "stack is up", map[string]interface{}{
			"stack": stack.Name,
		})

		if i == 0 && len(stacks) > 1 {
			logger.Info("launcher.pause", "pausing between stacks", map[string]interface{}{
				"seconds": pauseBetween.Seconds(),
			})
			select {
			case <-time.After(pauseBetween):
			case <-ctx.Done():
				return &StackLaunchFailed{Stack: stack.Name, Err: ctx.Err()}
			}
		}
	}

	return nil
}

func tearDown(ctx context.Context, runtimeBinary, project string, stacks []Stack, logger *logging.Logger) error {
	args := []string{runtimeBinary, "compose", "-p", project}
	for _, stack := range stacks {
		for _, f := range stack.ComposeFiles {
			args = append(args, "-f", f)
		}
		if stack.OverlayIfPresent != "" {
			if _, err := os.Stat(stack.OverlayIfPresent); err == nil {
				args = append(args, "-f", stack.OverlayIfPresent)
			}
		}
	}
	args = append(args, "down")

	logger.Info("launcher.teardown.start", "tearing down combined project", map[string]interface{}{
		"project": project,
	})

	_, err := procrunner.Run(ctx, args, procrunner.Options{Capture: false, Check: true})
	return err
}

func upOne(ctx context.Context, runtimeBinary, project string, stack Stack, profile Profile) error {
	args := []string{runtimeBinary, "compose", "-p", project}
	for _, f := range stack.ComposeFiles {
		args = append(args, "-f", f)
	}
	if stack.OverlayIfPresent != "" {
		if _, err := os.Stat(stack.OverlayIfPresent); err == nil {
			args = append(args, "-f", stack.OverlayIfPresent)
		}
	}

	args = append(args, "up", "-d")

	if profile != ProfileNone && stack.ProfileFlag {
		args = append(args, "--profile", string(profile))
	}
	args = append(args, "--build")

	// DOCKER_BUILDKIT is set only on the child's environment; the
	// orchestrator's own process environment is never mutated.
	_, err := procrunner.Run(ctx, args, procrunner.Options{
		Capture:      false,
		Check:        true,
		EnvOverrides: map[string]string{"DOCKER_BUILDKIT": "1"},
	})
	return err
}
