package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadWithProfile_ProfileInheritance(t *testing.T) {
	configFile := createTempConfig(t, `
active_config: studio

server:
  data_dir: /srv/karaoke

audio:
  sample_rate: 48000

configs:
  default:
    api:
      timeout_seconds: 10
    player:
      default_mix: 70
  studio:
    audio:
      backend: headless
    player:
      default_mix: 0
`)

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("LoadWithProfile failed: %v", err)
	}

	if cfg.Profile != "studio" {
		t.Errorf("Expected profile studio, got %s", cfg.Profile)
	}
	if cfg.Server.DataDir != "/srv/karaoke" {
		t.Errorf("Expected top level data dir, got %s", cfg.Server.DataDir)
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("Expected sample rate 48000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.API.TimeoutSeconds != 10 {
		t.Errorf("Expected timeout inherited from default profile, got %d", cfg.API.TimeoutSeconds)
	}
	if cfg.Audio.Backend != "headless" || cfg.VocalMix() != 0 {
		t.Errorf("Expected studio overrides, got backend=%s mix=%d", cfg.Audio.Backend, cfg.VocalMix())
	}
	if cfg.Server.Port != "8000" {
		t.Errorf("Expected built-in port, got %s", cfg.Server.Port)
	}

	wantSources := map[string]string{
		"server.port":         SourceDefault,
		"server.data_dir":     SourceFile,
		"api.timeout_seconds": SourceInherit,
		"audio.backend":       SourceProfile,
		"player.default_mix":  SourceProfile,
	}
	for key, want := range wantSources {
		if got := cfg.Inheritance[key]; got != want {
			t.Errorf("Expected %s from %s, got %s", key, want, got)
		}
	}
}

func TestLoadWithProfile_FlagOverridesActiveConfig(t *testing.T) {
	configFile := createTempConfig(t, `
active_config: studio
configs:
  studio:
    server:
      port: "9001"
  live:
    server:
      port: "9002"
`)

	cfg, err := LoadWithProfile(configFile, "live")
	if err != nil {
		t.Fatalf("LoadWithProfile failed: %v", err)
	}
	if cfg.Server.Port != "9002" {
		t.Errorf("Expected port 9002, got %s", cfg.Server.Port)
	}
}

func TestLoadWithProfile_MissingProfile(t *testing.T) {
	configFile := createTempConfig(t, `
configs:
  studio:
    server:
      port: "9001"
`)

	_, err := LoadWithProfile(configFile, "nope")
	if err == nil || !strings.Contains(err.Error(), "'nope' not found") {
		t.Errorf("Expected missing profile error, got %v", err)
	}

	// no profiles at all resolves to the file's top level plus defaults
	cfg, err := LoadWithProfile(createTempConfig(t, "api:\n  base_url: http://karaoke.local\n"), "")
	if err != nil {
		t.Fatalf("LoadWithProfile failed: %v", err)
	}
	if cfg.API.BaseURL != "http://karaoke.local" {
		t.Errorf("Expected base url from file, got %s", cfg.API.BaseURL)
	}
}

func TestLoadWithProfile_EnvOverrides(t *testing.T) {
	configFile := createTempConfig(t, `
configs:
  default:
    server:
      port: "9001"
`)
	t.Setenv("SINGALONG_SERVER_PORT", "9100")
	t.Setenv("SINGALONG_PLAYER_DEFAULT_MIX", "25")

	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("LoadWithProfile failed: %v", err)
	}
	if cfg.Server.Port != "9100" {
		t.Errorf("Expected env port 9100, got %s", cfg.Server.Port)
	}
	if cfg.VocalMix() != 25 {
		t.Errorf("Expected env mix 25, got %d", cfg.VocalMix())
	}
	if cfg.Inheritance["server.port"] != SourceEnv {
		t.Errorf("Expected server.port from environment, got %s", cfg.Inheritance["server.port"])
	}
}

func TestLoadWithProfile_NoFile(t *testing.T) {
	if _, err := LoadWithProfile("", ""); err == nil {
		t.Error("Expected error for empty config path")
	}
	if _, err := LoadWithProfile(filepath.Join(t.TempDir(), "missing.yaml"), ""); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidateConfigurationFormat_InvalidProfile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "bad backend",
			content: "configs:\n  live:\n    audio:\n      backend: jack\n",
			want:    "invalid config 'live'",
		},
		{
			name:    "bad mix",
			content: "configs:\n  live:\n    player:\n      default_mix: 150\n",
			want:    "player.default_mix",
		},
		{
			name:    "bad base url",
			content: "configs:\n  live:\n    api:\n      base_url: ftp://x\n",
			want:    "api.base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateConfigurationFormat(createTempConfig(t, tt.content))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestUpdateActiveConfig(t *testing.T) {
	configFile := createTempConfig(t, `
active_config: studio
configs:
  studio:
    server:
      port: "9001"
  live:
    server:
      port: "9002"
`)

	if err := UpdateActiveConfig(configFile, "live"); err != nil {
		t.Fatalf("UpdateActiveConfig failed: %v", err)
	}
	cfg, err := LoadWithProfile(configFile, "")
	if err != nil {
		t.Fatalf("LoadWithProfile failed: %v", err)
	}
	if cfg.Profile != "live" || cfg.Server.Port != "9002" {
		t.Errorf("Expected live profile after update, got %s on %s", cfg.Profile, cfg.Server.Port)
	}
}

// Helper function to create temporary config file for testing
func createTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "singalong-test.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}
