package internal

import (
	"strings"
	"testing"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	files := cfg.Board.Files()
	if files.Active != "kanban.md" || files.Archive != "archive.md" {
		t.Errorf("files = %+v", files)
	}
}

func TestBoardConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *BoardConfig)
	}{
		{"empty dir", func(c *BoardConfig) { c.Dir = "" }},
		{"nested active file", func(c *BoardConfig) { c.ActiveFile = "boards/kanban.md" }},
		{"archive not markdown", func(c *BoardConfig) { c.ArchiveFile = "archive.txt" }},
		{"same file twice", func(c *BoardConfig) { c.ArchiveFile = c.ActiveFile }},
		{"prefix with dash", func(c *BoardConfig) { c.IDPrefix = "TASK-" }},
		{"zero width", func(c *BoardConfig) { c.IDWidth = 0 }},
		{"huge width", func(c *BoardConfig) { c.IDWidth = 12 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Board
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBoardConfig_AgentFile(t *testing.T) {
	cfg := BoardConfig{Dir: "/srv/board"}
	if got := cfg.AgentFile("AGENTS.md"); got != "/srv/board/AGENTS.md" {
		t.Errorf("relative = %q", got)
	}
	if got := cfg.AgentFile("/etc/CLAUDE.md"); got != "/etc/CLAUDE.md" {
		t.Errorf("absolute = %q", got)
	}
	if got := cfg.AgentFile(""); got != "" {
		t.Errorf("empty = %q", got)
	}
}
