package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Mmx233/ProtoBridge/protocols"
)

// testConfig is a simple struct for testing the generic loader
type testConfig struct {
	Name    string `yaml:"name"`
	Port    int    `yaml:"port"`
	Enabled bool   `yaml:"enabled"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfig_Success(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `name: test-service
port: 8080
enabled: true
`)

	cfg, err := LoadConfig[testConfig](path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Name != "test-service" || cfg.Port != 8080 || !cfg.Enabled {
		t.Errorf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig[testConfig]("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for non-existent file, got nil")
	}
	if !strings.Contains(err.Error(), "read config file") {
		t.Errorf("expected error to contain 'read config file', got: %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", "name: [invalid yaml\nport: not closed")

	_, err := LoadConfig[testConfig](path)
	if err == nil {
		t.Fatal("expected error for invalid YAML, got nil")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Errorf("expected error to contain 'parse config', got: %v", err)
	}
}

func TestLoadProxyConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "proxy.yaml", `listen:
  tcp: "0.0.0.0:25566"
upstream:
  version: "1.16.5"
  servers:
    - "127.0.0.1:25565"
  dial_timeout: 3s
translator:
  fatal_on_drop: true
  cache_size: 64
registries:
  minecraft:block_state: registries/block_state.yaml
admin:
  addr: "127.0.0.1:9100"
`)

	cfg, err := LoadProxyConfig(path)
	if err != nil {
		t.Fatalf("LoadProxyConfig failed: %v", err)
	}
	if cfg.Listen.TCP != "0.0.0.0:25566" {
		t.Errorf("expected tcp listen address to be kept, got %q", cfg.Listen.TCP)
	}
	if cfg.Upstream.Protocol() != protocols.V1_16_5 {
		t.Errorf("expected protocol %d, got %d", protocols.V1_16_5, cfg.Upstream.Protocol())
	}
	if cfg.Upstream.DialTimeout != 3*time.Second {
		t.Errorf("expected dial timeout 3s, got %v", cfg.Upstream.DialTimeout)
	}
	if cfg.Upstream.LoadBalancer != LoadBalancerLeastSessions {
		t.Errorf("expected default balancer, got %q", cfg.Upstream.LoadBalancer)
	}
	if !cfg.Translator.FatalOnDrop || cfg.Translator.CacheSize != 64 {
		t.Errorf("unexpected translator config: %+v", cfg.Translator)
	}
	if cfg.Registries[protocols.RegistryBlockState] != "registries/block_state.yaml" {
		t.Errorf("unexpected registries: %v", cfg.Registries)
	}
	if cfg.Listen.QUIC.Enabled() {
		t.Error("expected quic listener to be disabled")
	}
}

func TestLoadProxyConfig_ValidationError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "proxy.yaml", `upstream:
  version: "1.12.2"
  servers: ["127.0.0.1:25565"]
`)

	_, err := LoadProxyConfig(path)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("expected validation error, got: %v", err)
	}
}
