package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/local-ai-packaged/orchestrator/internal/certs"
	"github.com/local-ai-packaged/orchestrator/internal/composeconfig"
	"github.com/local-ai-packaged/orchestrator/internal/dotenv"
	"github.com/local-ai-packaged/orchestrator/internal/gpu"
	"github.com/local-ai-packaged/orchestrator/internal/hostsfile"
	"github.com/local-ai-packaged/orchestrator/internal/launcher"
	"github.com/local-ai-packaged/orchestrator/internal/logging"
	"github.com/local-ai-packaged/orchestrator/internal/remoteaccess"
	"github.com/local-ai-packaged/orchestrator/internal/runlock"
	"github.com/local-ai-packaged/orchestrator/internal/settings"
	"github.com/local-ai-packaged/orchestrator/internal/subrepo"
)

const version = "0.1.0-dev"

const (
	exitOK                = 0
	exitUsage             = 2
	exitConfigMissing     = 10
	exitCertificateFailed = 11
	exitSubRepoFailed     = 12
	exitHostsUnwritable   = 13
	exitInfraStackFailed  = 20
	exitAIStackFailed     = 21
	exitLockUnavailable   = 70
	exitSettingsInvalid   = 71
	exitInterrupted       = 130
)

func main() {
	if len(os.Args) <= 1 {
		printUsage()
		os.Exit(exitUsage)
	}

	switch os.Args[1] {
	case "launch":
		os.Exit(runLaunch(os.Args[2:]))
	case "plan-remote-access":
		os.Exit(runPlanRemoteAccess(os.Args[2:]))
	case "gpu-check":
		os.Exit(runGPUCheck(os.Args[2:]))
	case "version":
		fmt.Printf("orchestrator version %s\n", version)
		os.Exit(exitOK)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(exitOK)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(exitUsage)
	}
}

func printUsage() {
	fmt.Printf(`orchestrator - Local AI stack host orchestrator (version %s)

Usage:
  orchestrator launch --profile {gpu-nvidia|gpu-amd|cpu|none} [--project <name>]
  orchestrator plan-remote-access [--server-address <ipv4>] [--dns] [--update-local]
  orchestrator gpu-check [--save <path>]
  orchestrator version
  orchestrator help
`, version)
}

func stateDir() string {
	if dir := strings.TrimSpace(os.Getenv("ORCHESTRATOR_STATE_DIR")); dir != "" {
		return dir
	}
	return "."
}

func loadSettings() (settings.Settings, error) {
	return settings.Load(strings.TrimSpace(os.Getenv("ORCHESTRATOR_CONFIG")))
}

func newLogger(cfg settings.Settings) *logging.Logger {
	level := logging.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	return logging.NewLogger(level)
}

// runLaunch implements the launch mode: parse flags, acquire the run lock,
// then orchestrate C3 -> C4 -> C6 -> C7 -> C5 -> C8 in order.
func runLaunch(args []string) int {
	profile, project, err := parseLaunchArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		return exitUsage
	}

	if profile == launcher.ProfileGPUAMD && !gpu.HostSupportsAMD() {
		fmt.Fprintln(os.Stderr, "gpu-amd profile is only supported on Linux-family hosts")
		return exitUsage
	}

	cfg, err := loadSettings()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSettingsInvalid
	}
	logger := newLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	forwardSignals(ctx, cancel, logger)

	root := stateDir()
	lockPath := filepath.Join(root, runlock.LockFileName)
	lock, err := runlock.Acquire(ctx, lockPath, runlock.DefaultWait)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitLockUnavailable
	}
	defer lock.Release()

	envPath := filepath.Join(root, ".env")
	doc, err := dotenv.Load(envPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigMissing
	}
	doc.EnsurePoolerTenantID()
	if err := doc.Save(envPath, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitConfigMissing
	}

	if profile == launcher.ProfileGPUNvidia {
		detector := gpu.NewDetector(logger)
		if report := detector.DetectGPUs(); !report.NVMLOk {
			logger.Warn("gpu.preflight.absent", "NVML unavailable, continuing anyway", map[string]interface{}{
				"error": report.ErrorMessage,
			})
		}
	}

	certDir := filepath.Join(root, "certs")
	if _, err := certs.EnsureCertificates(certDir, cfg.CertValidityDays, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCertificateFailed
	}

	subrepoDir := filepath.Join(root, "supabase")
	if err := subrepo.EnsureSubRepo(ctx, cfg.SubRepo.URL, subrepoDir, cfg.SubRepo.Subtree, cfg.SubRepo.Ref, logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSubRepoFailed
	}

	subrepoDockerDir := filepath.Join(subrepoDir, "docker")
	if err := composeconfig.CopyEnvToSubRepo(envPath, subrepoDockerDir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSubRepoFailed
	}
	if err := composeconfig.PatchSubRepoCompose(filepath.Join(subrepoDockerDir, "docker-compose.yml"), logger); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitSubRepoFailed
	}

	hostsPath := "/etc/hosts"
	if err := hostsfile.Reconcile(hostsPath, "127.0.0.1", logger); err != nil {
		logger.Warn("hostsfile.reconcile.skipped", "hosts file mapping unavailable, continuing without it", map[string]interface{}{
			"error": err.Error(),
		})
	}

	runtimeBinary, err := launcher.DetectRuntime(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitInfraStackFailed
	}

	stacks := []launcher.Stack{
		{
			Name:         "infra",
			ComposeFiles: []string{filepath.Join(subrepoDockerDir, "docker-compose.yml")},
			Project:      project,
		},
		{
			Name:             "ai",
			ComposeFiles:     []string{"./docker-compose.yml"},
			Project:          project,
			ProfileFlag:      true,
			OverlayIfPresent: "./docker-compose.host-cache.yml",
		},
	}

	pause := time.Duration(cfg.PauseBetweenStacksSeconds) * time.Second
	if err := launcher.BringUp(ctx, runtimeBinary, project, stacks, profile, pause, logger); err != nil {
		if ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "interrupted")
			return exitInterrupted
		}
		var stackErr *launcher.StackLaunchFailed
		if errors.As(err, &stackErr) && stackErr.Stack == "infra" {
			fmt.Fprintln(os.Stderr, err)
			return exitInfraStackFailed
		}
		fmt.Fprintln(os.Stderr, err)
		return exitAIStackFailed
	}

	return exitOK
}

func parseLaunchArgs(args []string) (launcher.Profile, string, error) {
	var profile launcher.Profile
	project := "localai"

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--profile":
			if i+1 >= len(args) {
				return "", "", fmt.Errorf("--profile requires a value")
			}
			i++
			switch args[i] {
			case "gpu-nvidia", "gpu-amd", "cpu", "none":
				profile = launcher.Profile(args[i])
			default:
				return "", "", fmt.Errorf("invalid --profile %q", args[i])
			}
		case "--project":
			if i+1 >= len(args) {
				return "", "", fmt.Errorf("--project requires a value")
			}
			i++
			project = args[i]
		default:
			return "", "", fmt.Errorf("unknown flag %q", args[i])
		}
	}

	if profile == "" {
		return "", "", fmt.Errorf("--profile is required")
	}

	return profile, project, nil
}

// runPlanRemoteAccess implements the plan-remote-access mode.
func runPlanRemoteAccess(args []string) int {
	serverAddress, emitDNS, emitClient, err := parsePlanArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		return exitUsage
	}

	plan, err := remoteaccess.Compute(serverAddress, hostsfile.CanonicalHostnames())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}

	if emitClient {
		logger := logging.NewLogger(logging.LevelInfo)
		if err := hostsfile.Reconcile("/etc/hosts", plan.ServerAddress, logger); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitHostsUnwritable
		}
	}

	fmt.Printf("Server address: %s\n\n", plan.ServerAddress)

	if emitClient || !emitDNS {
		fmt.Println("=== POSIX hosts fragment ===")
		fmt.Print(plan.PosixHostsFragment)
		fmt.Println()
		fmt.Println("=== Windows hosts fragment ===")
		fmt.Print(plan.WindowsHostsFragment)
		fmt.Println()
	}

	if emitDNS {
		fmt.Println("=== DNS zone fragment ===")
		fmt.Print(plan.DNSZoneFragment)
		fmt.Println()
	}

	fmt.Println("=== Instructions ===")
	fmt.Println(plan.Instructions)

	return exitOK
}

func parsePlanArgs(args []string) (serverAddress string, emitDNS, emitClient bool, err error) {
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--server-address":
			if i+1 >= len(args) {
				return "", false, false, fmt.Errorf("--server-address requires a value")
			}
			i++
			serverAddress = args[i]
		case "--dns":
			emitDNS = true
		case "--update-local":
			emitClient = true
		default:
			return "", false, false, fmt.Errorf("unknown flag %q", args[i])
		}
	}
	return serverAddress, emitDNS, emitClient, nil
}

// runGPUCheck runs the standalone GPU/toolkit preflight and prints a
// human-readable summary. It exits 0 whether or not a GPU is present: this is
// informational only. A failed --save write exits 2.
func runGPUCheck(args []string) int {
	logger := logging.NewLogger(logging.LevelInfo)

	fmt.Println("Checking GPU and container-toolkit availability...")
	fmt.Println()

	detector := gpu.NewDetector(logger)
	report := detector.DetectGPUs()

	fmt.Println("=== GPU Detection Report ===")
	if !report.NVMLOk {
		fmt.Printf("NVML status: unavailable (%s)\n", report.ErrorMessage)
	} else {
		fmt.Printf("NVML status: ok\n")
		fmt.Printf("Driver version: %s\n", report.DriverVersion)
		fmt.Printf("CUDA version: %d\n", report.CUDAVersion)
		fmt.Printf("GPU count: %d\n", len(report.GPUs))
		for _, g := range report.GPUs {
			fmt.Printf("  [%d] %s (%s), %d MB\n", g.Index, g.Name, g.UUID, g.MemoryMB)
		}
	}

	fmt.Println()
	toolkitDetector := gpu.NewToolkitDetector(logger)
	toolkitReport := toolkitDetector.DetectContainerToolkit()

	fmt.Println("=== Container Toolkit ===")
	if toolkitReport.DockerSupport {
		fmt.Printf("Docker GPU support: available (toolkit %s)\n", toolkitReport.ToolkitVersion)
	} else {
		fmt.Printf("Docker GPU support: not available (%s)\n", toolkitReport.ErrorMessage)
	}

	for i, arg := range args {
		if arg == "--save" && i+1 < len(args) {
			if err := detector.SaveReport(report, args[i+1]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return exitUsage
			}
			fmt.Printf("\nReport saved to %s\n", args[i+1])
		}
	}

	return exitOK
}

func forwardSignals(ctx context.Context, cancel context.CancelFunc, logger *logging.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("orchestrator.signal.received", "interrupted, stopping", nil)
			cancel()
		case <-ctx.Done():
		}
	}()
}
