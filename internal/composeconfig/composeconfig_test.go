package composeconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/local-ai-packaged/orchestrator/internal/logging"
)

const sampleCompose = `services:
  supavisor:
    image: supabase/supavisor:latest
    ports:
      - "5432:5432"
  studio:
    image: supabase/studio:latest
`

func TestCopyEnvToSubRepo(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	envPath := filepath.Join(srcDir, ".env")
	if err := os.WriteFile(envPath, []byte("FOO=bar\n"), 0o600); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := CopyEnvToSubRepo(envPath, destDir); err != nil {
		t.Fatalf("CopyEnvToSubRepo() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(destDir, ".env"))
	if err != nil {
		t.Fatalf("failed to read copied file: %v", err)
	}
	if string(got) != "FOO=bar\n" {
		t.Errorf("copied content = %q, want %q", got, "FOO=bar\n")
	}
}

func TestCopyEnvToSubRepo_OverwritesExisting(t *testing.T) {
	srcDir := t.TempDir()
	destDir := t.TempDir()

	envPath := filepath.Join(srcDir, ".env")
	if err := os.WriteFile(envPath, []byte("NEW=1\n"), 0o600); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(destDir, ".env"), []byte("OLD=1\n"), 0o600); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := CopyEnvToSubRepo(envPath, destDir); err != nil {
		t.Fatalf("CopyEnvToSubRepo() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(destDir, ".env"))
	if err != nil {
		t.Fatalf("failed to read copied file: %v", err)
	}
	if string(got) != "NEW=1\n" {
		t.Errorf("copied content = %q, want %q", got, "NEW=1\n")
	}
}

func TestPatchSubRepoCompose_InsertsPoolerPort(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewLogger(logging.LevelWarn)

	composePath := filepath.Join(dir, "docker-compose.yml")
	if err := os.WriteFile(composePath, []byte(sampleCompose), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := PatchSubRepoCompose(composePath, logger); err != nil {
		t.Fatalf("PatchSubRepoCompose() error = %v", err)
	}

	got, err := os.ReadFile(composePath)
	if err != nil {
		t.Fatalf("failed to read patched file: %v", err)
	}

	if !strings.Contains(string(got), "6543:6543") {
		t.Errorf("expected pooler port mapping in patched file, got:\n%s", got)
	}
	if !strings.Contains(string(got), "5432:5432") {
		t.Error("expected preexisting port mapping to survive")
	}
	if !strings.Contains(string(got), "studio") {
		t.Error("expected unrelated service to survive")
	}
}

func TestPatchSubRepoCompose_NoOpWhenAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewLogger(logging.LevelWarn)

	composePath := filepath.Join(dir, "docker-compose.yml")
	if err := os.WriteFile(composePath, []byte(sampleCompose), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := PatchSubRepoCompose(composePath, logger); err != nil {
		t.Fatalf("first PatchSubRepoCompose() error = %v", err)
	}
	firstPass, err := os.ReadFile(composePath)
	if err != nil {
		t.Fatalf("failed to read patched file: %v", err)
	}

	if err := PatchSubRepoCompose(composePath, logger); err != nil {
		t.Fatalf("second PatchSubRepoCompose() error = %v", err)
	}
	secondPass, err := os.ReadFile(composePath)
	if err != nil {
		t.Fatalf("failed to read patched file: %v", err)
	}

	if string(firstPass) != string(secondPass) {
		t.Error("expected second patch to be a no-op")
	}
}

func TestPatchSubRepoCompose_ServiceMissing(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewLogger(logging.LevelWarn)

	composePath := filepath.Join(dir, "docker-compose.yml")
	if err := os.WriteFile(composePath, []byte("services:\n  studio:\n    image: x\n"), 0o644); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := PatchSubRepoCompose(composePath, logger); err == nil {
		t.Fatal("expected error when pooler service is missing")
	}
}
