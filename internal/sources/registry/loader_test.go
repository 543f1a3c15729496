package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/pimon/internal/domain"
)

func writeServices(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "services.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}
	return path
}

func TestLoaderLoadPreservesOrder(t *testing.T) {
	path := writeServices(t, `
services:
  - label: SSH
    identifier: ssh
  - label: 3CX SBC
    identifier: 3cxsbc
  - label: Cockpit
    identifier: cockpit.socket
`)

	got, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []domain.ServiceDescriptor{
		{Label: "SSH", Identifier: "ssh"},
		{Label: "3CX SBC", Identifier: "3cxsbc"},
		{Label: "Cockpit", Identifier: "cockpit.socket"},
	}
	if len(got) != len(want) {
		t.Fatalf("Load() returned %d services, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Load()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	_, err := NewLoader("/nonexistent/path/services.yaml").Load()
	if err == nil {
		t.Error("Load() with non-existent file should return error")
	}
}

func TestLoaderLoadInvalidYAML(t *testing.T) {
	path := writeServices(t, "services: [unterminated")
	if _, err := NewLoader(path).Load(); err == nil {
		t.Error("Load() with invalid yaml should return error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		wantErr error
	}{
		{
			name:    "empty list",
			entries: nil,
			wantErr: ErrEmpty,
		},
		{
			name:    "missing identifier",
			entries: []Entry{{Label: "SSH"}},
			wantErr: ErrInvalidEntry,
		},
		{
			name:    "option injection",
			entries: []Entry{{Label: "Evil", Identifier: "--now"}},
			wantErr: ErrInvalidEntry,
		},
		{
			name:    "shell metacharacters",
			entries: []Entry{{Label: "Evil", Identifier: "ssh;reboot"}},
			wantErr: ErrInvalidEntry,
		},
		{
			name:    "duplicate identifier",
			entries: []Entry{{Label: "A", Identifier: "ssh"}, {Label: "B", Identifier: "ssh"}},
			wantErr: ErrDuplicateEntry,
		},
		{
			name:    "duplicate label",
			entries: []Entry{{Label: "A", Identifier: "ssh"}, {Label: "A", Identifier: "sshd"}},
			wantErr: ErrDuplicateEntry,
		},
		{
			name:    "template unit with whitespace trimmed",
			entries: []Entry{{Label: " Getty ", Identifier: " getty@tty1.service "}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.entries)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultsAreValid(t *testing.T) {
	entries := make([]Entry, 0, len(Defaults()))
	for _, d := range Defaults() {
		entries = append(entries, Entry{Label: d.Label, Identifier: d.Identifier})
	}
	if _, err := Validate(entries); err != nil {
		t.Fatalf("Defaults() are not valid: %v", err)
	}
}
