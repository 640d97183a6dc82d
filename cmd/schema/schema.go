// Package schema prints and checks the built-in protocol definitions.
package schema

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Mmx233/ProtoBridge/protocols"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	asJSON bool

	Cmd = &cobra.Command{
		Use:   "schema",
		Short: "Inspect protocol definitions",
		Args:  cobra.NoArgs,
	}

	listCmd = &cobra.Command{
		Use:   "list [kind]",
		Short: "List message kinds and their variants",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := protocols.Default()
			if err != nil {
				return err
			}
			kind := ""
			if len(args) == 1 {
				kind = args[0]
			}
			return List(cmd.OutOrStdout(), set, kind, asJSON)
		},
	}

	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Verify the definitions cover every version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := protocols.Default()
			if err != nil {
				return err
			}
			if err := set.Check(); err != nil {
				return err
			}
			log.Info().Str("com", "schema").Int("kinds", len(set.Protocol.Table.Kinds())).Msg("definitions are consistent")
			return nil
		},
	}

	versionsCmd = &cobra.Command{
		Use:   "versions",
		Short: "List supported protocol versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Versions(cmd.OutOrStdout())
		},
	}
)

func init() {
	listCmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	Cmd.AddCommand(listCmd, checkCmd, versionsCmd)
}

// List writes the kinds of set, or only kind when it is not empty.
func List(w io.Writer, set *protocols.Set, kind string, asJSON bool) error {
	kinds := set.Describe()
	if kind != "" {
		var found []protocols.KindInfo
		for _, info := range kinds {
			if string(info.Kind) == kind {
				found = append(found, info)
			}
		}
		if len(found) == 0 {
			return fmt.Errorf("unknown kind %q", kind)
		}
		kinds = found
	}

	if asJSON {
		out, err := jsoniter.MarshalIndent(kinds, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tFROM\tTO\tFIELDS\tCLIENTBOUND\tSERVERBOUND")
	for _, info := range kinds {
		for _, v := range info.Variants {
			to := v.To
			if to == "" {
				to = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
				info.Kind, v.From, to, len(v.Fields), len(v.Clientbound), len(v.Serverbound))
		}
	}
	return tw.Flush()
}

// Versions writes the supported protocol versions.
func Versions(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPROTOCOL\tDATA VERSION")
	for _, v := range protocols.Versions() {
		marker := ""
		if v.Protocol == protocols.Current {
			marker = " (current)"
		}
		fmt.Fprintf(tw, "%s%s\t%d\t%d\n", v.Name, marker, v.Protocol, v.DataVersion)
	}
	return tw.Flush()
}
