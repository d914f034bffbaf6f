package launcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir(), envMap(nil))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("cfg = %+v, want defaults %+v", cfg, DefaultConfig())
	}
}

func TestLoadConfigFileAndEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
executable: /usr/local/bin/ansible-playbook
playbook: playbooks/main.yml
revisionVar: release_sha
`)

	cfg, err := LoadConfig(dir, envMap(map[string]string{
		EnvPlaybook:       "playbooks/hotfix.yml",
		EnvRevisionSource: "go-git",
	}))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	want := Config{
		Executable:     "/usr/local/bin/ansible-playbook",
		Playbook:       "playbooks/hotfix.yml",
		Inventory:      DefaultConfig().Inventory,
		RevisionVar:    "release_sha",
		RevisionSource: "go-git",
	}
	if cfg != want {
		t.Fatalf("cfg = %+v, want %+v", cfg, want)
	}
}

func TestLoadConfigJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `{"inventory": "inventories/prod"}`)

	cfg, err := LoadConfig(dir, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Inventory != "inventories/prod" {
		t.Fatalf("Inventory = %q", cfg.Inventory)
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	cfg, err := LoadConfig(dir, nil)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "unknown field",
			body:    "playbok: site.yml\n",
			wantErr: `unknown field "playbok"`,
		},
		{
			name:    "non-string value",
			body:    "revisionVar: 42\n",
			wantErr: `field "revisionVar" must be a string`,
		},
		{
			name:    "invalid revision var",
			env:     map[string]string{EnvRevisionVar: "git sha"},
			wantErr: "must not contain",
		},
		{
			name:    "unknown revision source",
			body:    "revisionSource: svn\n",
			wantErr: `unknown revision source "svn"`,
		},
		{
			name:    "explicitly emptied executable",
			body:    "executable: \"\"\n",
			wantErr: "executable must not be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.body != "" {
				writeConfig(t, dir, tt.body)
			}
			_, err := LoadConfig(dir, envMap(tt.env))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}
