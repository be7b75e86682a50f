package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newProtocolsCmd(opts *rootOptions) *cobra.Command {
	var namesOnly bool

	cmd := &cobra.Command{
		Use:   "protocols",
		Short: "List protocols in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := opts.loadRegistry(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if namesOnly {
				for _, name := range reg.Names() {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROTOCOL\tDEVICES\tOPTIONS")
			for _, name := range reg.Names() {
				v, _ := reg.Lookup(name)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name,
					strings.Join(v.Devices(), ","),
					strings.Join(v.Options(), ","))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&namesOnly, "names", false, "print protocol names only")
	return cmd
}
