package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Mmx233/ProtoBridge/config"
	"github.com/Mmx233/ProtoBridge/examples"
	"github.com/Mmx233/ProtoBridge/protocols"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// TestProxyConfigTemplateFields verifies that the embedded proxy.yaml template
// parses without unknown fields and uses the defaults from config/defaults.go.
func TestProxyConfigTemplateFields(t *testing.T) {
	content, err := examples.ProxyConfig()
	require.NoError(t, err, "failed to load proxy config template")

	var cfg config.Proxy
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	require.NoError(t, decoder.Decode(&cfg), "proxy.yaml contains unknown fields or invalid YAML")

	assert.Equal(t, config.DefaultTCPAddr, cfg.Listen.TCP)
	assert.False(t, cfg.Listen.QUIC.Enabled(), "quic should be disabled in the template")
	assert.NotEmpty(t, cfg.Upstream.Servers)
	assert.Equal(t, config.LoadBalancerLeastSessions, cfg.Upstream.LoadBalancer)
	assert.Equal(t, config.DefaultDialTimeout, cfg.Upstream.DialTimeout)
	assert.Equal(t, config.DefaultRetryAfter, cfg.Upstream.RetryAfter)
	assert.Equal(t, config.DefaultMaxIdleTimeout, cfg.Listen.QUIC.MaxIdleTimeout)

	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, protocols.V1_16_5, cfg.Upstream.Protocol())
}

// TestRegistryTemplate verifies the embedded block state mapping is injective.
func TestRegistryTemplate(t *testing.T) {
	content, err := examples.Registry("block_state")
	require.NoError(t, err)

	var rf config.RegistryFile
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	require.NoError(t, decoder.Decode(&rf))
	assert.NotEmpty(t, rf.Mappings)

	seen := make(map[int32]bool)
	for _, current := range rf.Mappings {
		assert.False(t, seen[current], "current id %d mapped twice", current)
		seen[current] = true
	}
}

// TestWriteProxy verifies the generated files load as a complete configuration.
func TestWriteProxy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	require.NoError(t, WriteProxy(path))

	cfg, err := config.LoadProxyConfig(path)
	require.NoError(t, err)
	regs, err := config.LoadRegistries(cfg.Registries, dir)
	require.NoError(t, err)
	require.Contains(t, regs, protocols.RegistryBlockState)

	// second run refuses to overwrite
	assert.Error(t, WriteProxy(path))
	_, err = os.Stat(filepath.Join(dir, "registries", "block_state.yaml"))
	assert.NoError(t, err)
}
