package run

import (
	"github.com/Mmx233/ProtoBridge/config"
	"github.com/spf13/cobra"
)

var (
	configFile = config.GetenvDefault(config.EnvPrefix+"CONFIG", "config.yaml")
	Cmd        = &cobra.Command{
		Use:   "run",
		Short: "Run the protobridge proxy",
		Args:  cobra.NoArgs,
	}
)

func init() {
	Cmd.PersistentFlags().StringVarP(&configFile, "config", "c", configFile, "path of config file")
	Cmd.AddCommand(proxyCmd)
}
