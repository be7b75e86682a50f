package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/pilight-gateway/internal/protocol"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	catalog string
	format  string
	strict  bool
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "pilight-schema",
		Short: "Inspect pilight protocol catalogs and validate payloads",
		Long: `Inspect a pilight protocol catalog and validate JSON payloads against it.

Without --catalog the catalog compiled into the gateway is used.

Examples:
  # List protocols in the embedded catalog
  pilight-schema protocols

  # Show one protocol from a YAML catalog
  pilight-schema show arctech_switch --catalog protocols.yaml

  # Validate payloads read from stdin, one JSON object after another
  echo '{"protocol":"daycom","id":1}' | pilight-schema validate`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&opts.catalog, "catalog", "c", "",
		"catalog file (JSON, YAML or TOML; default: embedded catalog)")
	root.PersistentFlags().StringVar(&opts.format, "format", "auto",
		"catalog format: auto, json, yaml or toml")
	root.PersistentFlags().BoolVar(&opts.strict, "strict", false,
		"reject catalogs with unknown type tags or duplicate protocol names")

	root.AddCommand(
		newProtocolsCmd(opts),
		newShowCmd(opts),
		newValidateCmd(opts),
		newTokenCmd(),
	)
	return root
}

// loadRegistry compiles the catalog selected by the persistent flags.
func (o *rootOptions) loadRegistry(cmd *cobra.Command) (*protocol.Registry, error) {
	var opts []protocol.Option
	opts = append(opts, protocol.WithStrict(o.strict))

	if o.catalog != "" {
		format, err := protocol.ParseFormat(o.format)
		if err != nil {
			return nil, err
		}
		opts = append(opts, protocol.WithDefaultLoader(protocol.FileLoader{Path: o.catalog, Format: format}))
	}

	reg, err := protocol.NewRegistry(cmd.Context(), nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return reg, nil
}
