package subrepo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsGitCheckout(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  bool
	}{
		{
			name: "not a checkout when .git is absent",
			setup: func(t *testing.T) string {
				t.Helper()
				return t.TempDir()
			},
			want: false,
		},
		{
			name: "is a checkout when .git directory exists",
			setup: func(t *testing.T) string {
				t.Helper()
				dir := t.TempDir()
				if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o750); err != nil {
					t.Fatalf("setup failed: %v", err)
				}
				return dir
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			if got := isGitCheckout(dir); got != tt.want {
				t.Errorf("isGitCheckout() = %v, want %v", got, tt.want)
			}
		})
	}
}

// EnsureSubRepo itself requires a real git binary and network access; it is
// covered by end-to-end scenarios rather than unit tests here.
