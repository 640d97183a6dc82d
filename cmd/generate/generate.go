// Package generate writes starter files for a new deployment.
package generate

import (
	"github.com/Mmx233/ProtoBridge/cmd/generate/certs"
	"github.com/Mmx233/ProtoBridge/cmd/generate/config"
	"github.com/spf13/cobra"
)

var Cmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a config template or QUIC certificates",
	Args:  cobra.NoArgs,
}

func init() {
	Cmd.AddCommand(config.Cmd, certs.Cmd)
}
