package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Mmx233/ProtoBridge/examples"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configFile string // --config flag value

	Cmd = &cobra.Command{
		Use:   "config",
		Short: "Generate configuration files",
		Args:  cobra.NoArgs,
	}

	// ProxyCmd writes the proxy template and the registry mapping it references.
	ProxyCmd = &cobra.Command{
		Use:   "proxy",
		Short: "Generate proxy configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return WriteProxy(configFile)
		},
	}
)

func init() {
	Cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "output config file path")
	Cmd.AddCommand(ProxyCmd)
}

// WriteProxy writes the proxy template to path and the block state mapping
// next to it. Existing files are never overwritten.
func WriteProxy(path string) error {
	logger := log.With().Str("com", "generate").Logger()

	content, err := examples.ProxyConfig()
	if err != nil {
		return fmt.Errorf("load proxy config template: %w", err)
	}
	registry, err := examples.Registry("block_state")
	if err != nil {
		return fmt.Errorf("load registry template: %w", err)
	}
	registryPath := filepath.Join(filepath.Dir(path), "registries", "block_state.yaml")

	for _, p := range []string{path, registryPath} {
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("file already exists: %s", p)
		}
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	logger.Info().Str("file", path).Msg("generated proxy configuration")

	if err := os.MkdirAll(filepath.Dir(registryPath), 0755); err != nil {
		return fmt.Errorf("create registry directory: %w", err)
	}
	if err := os.WriteFile(registryPath, registry, 0644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	logger.Info().Str("file", registryPath).Msg("generated registry mapping")
	return nil
}
